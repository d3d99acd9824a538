package cmd

import (
	"github.com/sirupsen/logrus"

	"github.com/etmc-sim/etmc/sim"
	"github.com/etmc-sim/etmc/sim/cache"
)

// openStore returns the configured result store and a function releasing it.
// An empty cache directory with no database disables caching.
func openStore() (sim.ResultStore, func(), error) {
	if cacheDB != "" {
		s, err := cache.NewSQLiteStore(cacheDB)
		if err != nil {
			return nil, nil, err
		}
		logrus.Debugf("using sqlite cache %s", cacheDB)
		return s, func() {
			if err := s.Close(); err != nil {
				logrus.Warnf("closing cache: %v", err)
			}
		}, nil
	}
	if cacheDir == "" {
		return nil, func() {}, nil
	}
	logrus.Debugf("using cache directory %s", cacheDir)
	return cache.NewDirStore(cacheDir), func() {}, nil
}
