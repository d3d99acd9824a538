package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/etmc-sim/etmc/sim"
)

const entryExt = ".json"

var _ sim.ResultStore = (*DirStore)(nil)

// DirStore keeps one JSON file per entry in a directory. Files are written
// to a temporary name and renamed into place, so readers never observe a
// partial entry and no existing file is ever rewritten.
type DirStore struct {
	dir string

	mu   sync.Mutex
	last time.Time
}

// NewDirStore returns a store rooted at dir. The directory is created on first write.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Dir returns the store's directory.
func (s *DirStore) Dir() string { return s.dir }

// writeTime returns a strictly increasing write timestamp, so two writes from
// this store within one clock tick still name their files in write order.
func (s *DirStore) writeTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}

// names returns entry file names oldest first.
func (s *DirStore) names() ([]string, error) {
	des, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing cache directory: %w", err)
	}
	var names []string
	for _, de := range des {
		if de.Type().IsRegular() && strings.HasSuffix(de.Name(), entryExt) {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *DirStore) load(name string) (*sim.SimulationResult, int64, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", sim.ErrCacheCorrupt, name, err)
	}
	r, err := decodeEntry(data)
	if err != nil {
		return nil, int64(len(data)), fmt.Errorf("%s: %w", name, err)
	}
	return r, int64(len(data)), nil
}

// Read implements sim.ResultStore.
func (s *DirStore) Read(key sim.SimulationKey) (*sim.SimulationResult, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}
	want := key.Canonical()
	unreadable := 0
	var first error
	for i := len(names) - 1; i >= 0; i-- {
		r, _, err := s.load(names[i])
		if err != nil {
			logrus.Warnf("skipping cache entry: %v", err)
			if first == nil {
				first = err
			}
			unreadable++
			continue
		}
		if r.Key.Canonical() == want {
			return r, nil
		}
	}
	return nil, missError(key, unreadable, first)
}

// Write implements sim.ResultStore.
func (s *DirStore) Write(result *sim.SimulationResult) error {
	result = stamp(result)
	data, err := encodeEntry(result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".entry-*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing cache entry: %w", err)
	}
	final := filepath.Join(s.dir, entryName(s.writeTime(), result.Key)+entryExt)
	if _, err := os.Stat(final); err == nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache entry %s already exists", final)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publishing cache entry: %w", err)
	}
	logrus.Debugf("wrote cache entry %s (%d bytes)", filepath.Base(final), len(data))
	return nil
}

// List implements sim.ResultStore.
func (s *DirStore) List() ([]sim.EntryInfo, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}
	infos := make([]sim.EntryInfo, len(names))
	for i, name := range names {
		infos[i] = sim.EntryInfo{Index: i, Name: name}
		r, size, err := s.load(name)
		infos[i].Size = size
		if err != nil {
			infos[i].Err = err
			continue
		}
		infos[i].Key = r.Key
		infos[i].CreatedAt = r.CreatedAt
	}
	return infos, nil
}

// Delete implements sim.ResultStore.
func (s *DirStore) Delete(index int) error {
	names, err := s.names()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(names) {
		return fmt.Errorf("cache index %d out of range [0, %d)", index, len(names))
	}
	if err := os.Remove(filepath.Join(s.dir, names[index])); err != nil {
		return fmt.Errorf("removing cache entry: %w", err)
	}
	return nil
}

// Clear implements sim.ResultStore.
func (s *DirStore) Clear() (int, error) {
	names, err := s.names()
	if err != nil {
		return 0, err
	}
	for i, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return i, fmt.Errorf("removing cache entry: %w", err)
		}
	}
	return len(names), nil
}
