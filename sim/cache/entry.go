// Package cache provides append-only sim.ResultStore implementations: one
// JSON file per entry in a directory, or one row per entry in SQLite.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/etmc-sim/etmc/sim"
)

// timestampLayout sorts lexically in chronological order.
const timestampLayout = "20060102T150405.000000000Z"

// entry is the persisted form of a sim.SimulationResult.
type entry struct {
	Key       sim.SimulationKey `json:"key"`
	CreatedAt string            `json:"created_at"` // RFC 3339 with nanoseconds
	Sums      []float64         `json:"interaction_sums"`
}

func encodeEntry(r *sim.SimulationResult) ([]byte, error) {
	if err := r.CheckShape(); err != nil {
		return nil, fmt.Errorf("refusing to write: %w", err)
	}
	return json.Marshal(entry{
		Key:       r.Key,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339Nano),
		Sums:      r.Sums,
	})
}

func decodeEntry(data []byte) (*sim.SimulationResult, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", sim.ErrCacheCorrupt, err)
	}
	created, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: created_at: %v", sim.ErrCacheCorrupt, err)
	}
	r := &sim.SimulationResult{Key: e.Key, Sums: e.Sums, CreatedAt: created}
	if err := r.CheckShape(); err != nil {
		return nil, err
	}
	return r, nil
}

// stamp returns r with CreatedAt set, copying rather than mutating r.
func stamp(r *sim.SimulationResult) *sim.SimulationResult {
	if !r.CreatedAt.IsZero() {
		return r
	}
	c := *r
	c.CreatedAt = time.Now().UTC()
	return &c
}

// entryName returns a unique name for an entry written at written. Names sort
// in write order; the result's CreatedAt is provenance only and never orders
// entries.
func entryName(written time.Time, key sim.SimulationKey) string {
	return fmt.Sprintf("%s-%s-%s", written.UTC().Format(timestampLayout), key.Process, uuid.New().String()[:8])
}

// missError reports a miss, folding in the first unreadable entry if any.
func missError(key sim.SimulationKey, unreadable int, first error) error {
	if unreadable == 0 {
		return fmt.Errorf("%w: %s", sim.ErrCacheMiss, key.Canonical())
	}
	return errors.Join(
		fmt.Errorf("%w: %s", sim.ErrCacheMiss, key.Canonical()),
		fmt.Errorf("%d unreadable entries, first: %w", unreadable, first),
	)
}
