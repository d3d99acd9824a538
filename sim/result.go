package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Cache outcomes. A clean miss wraps ErrCacheMiss only; a miss where one or
// more entries could not be read or decoded wraps both ErrCacheMiss and
// ErrCacheCorrupt so callers can log the two cases differently.
var (
	ErrCacheMiss    = errors.New("simulation cache miss")
	ErrCacheCorrupt = errors.New("malformed simulation cache entry")
)

// SimulationKey identifies exactly one cached interaction-sum vector.
type SimulationKey struct {
	Process       string          `json:"process"`
	Fingerprint   string          `json:"fingerprint"`
	Radius        float64         `json:"radius"`
	Concentration float64         `json:"concentration"` // percent, as supplied by the caller
	Interaction   InteractionType `json:"interaction"`
	Iterations    int             `json:"iterations"`
	Intrinsic     bool            `json:"intrinsic"`
}

// canonicalKey fixes field order and float formatting for Canonical.
type canonicalKey struct {
	Process       string `json:"process"`
	Fingerprint   string `json:"fingerprint"`
	Radius        string `json:"radius"`
	Concentration string `json:"concentration"`
	Interaction   string `json:"interaction"`
	Iterations    int    `json:"iterations"`
	Intrinsic     bool   `json:"intrinsic"`
}

// Canonical returns an unambiguous encoding of the key. Floats are written in
// shortest round-trip form, so 2 and 2.0 encode identically while 2 and 2.05
// never collide. Two keys are equal iff their canonical encodings are equal.
func (k SimulationKey) Canonical() string {
	b, _ := json.Marshal(canonicalKey{
		Process:       k.Process,
		Fingerprint:   k.Fingerprint,
		Radius:        strconv.FormatFloat(k.Radius, 'g', -1, 64),
		Concentration: strconv.FormatFloat(k.Concentration, 'g', -1, 64),
		Interaction:   string(k.Interaction),
		Iterations:    k.Iterations,
		Intrinsic:     k.Intrinsic,
	})
	return string(b)
}

// Validate checks the key describes a runnable simulation.
func (k SimulationKey) Validate() error {
	if k.Process == "" {
		return fmt.Errorf("process name is required")
	}
	if k.Fingerprint == "" {
		return fmt.Errorf("geometry fingerprint is required")
	}
	if _, err := k.Interaction.Exponent(); err != nil {
		return err
	}
	if k.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", k.Iterations)
	}
	return nil
}

// SimulationResult is an immutable interaction-sum vector and its provenance.
type SimulationResult struct {
	Key       SimulationKey
	Sums      []float64
	CreatedAt time.Time
}

// CheckShape reports ErrCacheCorrupt when the vector length disagrees with the key.
func (r *SimulationResult) CheckShape() error {
	if len(r.Sums) != r.Key.Iterations {
		return fmt.Errorf("%w: %d sums for %d iterations", ErrCacheCorrupt, len(r.Sums), r.Key.Iterations)
	}
	return nil
}

// EntryInfo describes one persisted cache entry for listing.
type EntryInfo struct {
	Index     int
	Name      string
	Key       SimulationKey
	CreatedAt time.Time
	Size      int64 // bytes on disk, 0 if unknown
	Err       error // non-nil when the entry could not be decoded
}

// ResultStore persists SimulationResults. Writes are append-only: every
// Write creates a new entry and nothing is overwritten. Read consults entries
// newest first and returns the first exact key match, so a newer duplicate
// shadows older ones.
type ResultStore interface {
	Read(key SimulationKey) (*SimulationResult, error)
	Write(result *SimulationResult) error
	// List returns entries oldest first; Index matches the argument of Delete.
	List() ([]EntryInfo, error)
	Delete(index int) error
	// Clear removes every entry and reports how many were removed.
	Clear() (int, error)
}
