package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// ProcessSingleCross names the single cross-relaxation process in cache keys.
const ProcessSingleCross = "singlecross"

// SingleCrossRequest holds the user-facing parameters of one simulation.
type SingleCrossRequest struct {
	Radius           float64
	ConcentrationPct float64 // acceptor concentration in percent, [0, 100]
	Interaction      InteractionType
	Iterations       int
	Intrinsic        bool
}

// Interaction runs cache-checked Monte Carlo simulations around the central
// ion of one geometry.
type Interaction struct {
	geometry GeometryProvider
	store    ResultStore
	sampler  *Sampler
}

// NewInteraction wires a geometry, a result store and a sampler together.
// store may be nil to disable caching.
func NewInteraction(geometry GeometryProvider, store ResultStore, sampler *Sampler) *Interaction {
	return &Interaction{geometry: geometry, store: store, sampler: sampler}
}

// Key builds the cache key for req against this interaction's geometry.
func (in *Interaction) Key(req SingleCrossRequest) SimulationKey {
	return SimulationKey{
		Process:       ProcessSingleCross,
		Fingerprint:   in.geometry.Fingerprint(),
		Radius:        req.Radius,
		Concentration: req.ConcentrationPct,
		Interaction:   req.Interaction,
		Iterations:    req.Iterations,
		Intrinsic:     req.Intrinsic,
	}
}

// SimSingleCross returns the interaction sums for req, reading them from the
// store when an identical key exists and otherwise simulating and appending a
// new entry.
func (in *Interaction) SimSingleCross(ctx context.Context, req SingleCrossRequest) (*SimulationResult, error) {
	if math.IsNaN(req.ConcentrationPct) || req.ConcentrationPct < 0 || req.ConcentrationPct > 100 {
		return nil, fmt.Errorf("concentration must be a percentage in [0, 100], got %v", req.ConcentrationPct)
	}
	key := in.Key(req)
	if err := key.Validate(); err != nil {
		return nil, err
	}

	if in.store != nil {
		cached, err := in.store.Read(key)
		switch {
		case err == nil:
			logrus.Infof("cache hit for %s r=%v c=%v%% %s n=%d", key.Fingerprint, key.Radius, key.Concentration, key.Interaction, key.Iterations)
			return cached, nil
		case errors.Is(err, ErrCacheCorrupt):
			logrus.Warnf("cache read skipped malformed entries, recomputing: %v", err)
		case errors.Is(err, ErrCacheMiss):
			logrus.Debugf("cache miss for %s", key.Canonical())
		default:
			return nil, fmt.Errorf("reading simulation cache: %w", err)
		}
	}

	shell, err := NewCandidateShell(in.geometry, req.Radius)
	if err != nil {
		return nil, err
	}
	logrus.Infof("simulating %d iterations over %d %s sites within %v (r0=%v)",
		req.Iterations, len(shell.Sites), shell.Species, req.Radius, shell.R0)
	sums, err := in.sampler.Simulate(ctx, SampleRequest{
		Shell:       shell,
		Probability: req.ConcentrationPct / 100,
		Interaction: req.Interaction,
		Iterations:  req.Iterations,
		Intrinsic:   req.Intrinsic,
	})
	if err != nil {
		return nil, err
	}
	result := &SimulationResult{Key: key, Sums: sums, CreatedAt: time.Now().UTC()}
	if in.store != nil {
		if err := in.store.Write(result); err != nil {
			return nil, fmt.Errorf("writing simulation cache: %w", err)
		}
	}
	return result, nil
}
