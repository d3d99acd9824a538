package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === Seed ===

// Seed identifies a reproducible random stream family.
// Two runs with the same Seed and identical inputs MUST produce
// bit-for-bit identical results.
type Seed int64

// NewSeed creates a Seed from a raw value.
func NewSeed(v int64) Seed {
	return Seed(v)
}

// === Subsystem Constants ===

const (
	// SubsystemSampler is the RNG subsystem for one-off configuration draws.
	// Uses master seed directly.
	SubsystemSampler = "sampler"

	// SubsystemNoise is the RNG subsystem for synthetic trace noise.
	SubsystemNoise = "noise"
)

// SubsystemChunk returns the subsystem name for Monte Carlo chunk N.
func SubsystemChunk(id int) string {
	return fmt.Sprintf("chunk_%d", id)
}

// SubsystemSolver returns the subsystem name for a stochastic solver.
func SubsystemSolver(name string) string {
	return "solver_" + name
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula:
//   - For SubsystemSampler: uses masterSeed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Derive seeds up front with DeriveSeed and
// hand each goroutine its own *rand.Rand.
type PartitionedRNG struct {
	seed       Seed
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a Seed.
func NewPartitionedRNG(seed Seed) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.DeriveSeed(name)))
	p.subsystems[name] = rng
	return rng
}

// DeriveSeed returns the seed ForSubsystem would use for name without
// creating or caching a generator. Safe for concurrent use.
func (p *PartitionedRNG) DeriveSeed(name string) int64 {
	if name == SubsystemSampler {
		return int64(p.seed)
	}
	return int64(p.seed) ^ fnv1a64(name)
}

// Seed returns the Seed used to create this PartitionedRNG.
func (p *PartitionedRNG) Seed() Seed {
	return p.seed
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
