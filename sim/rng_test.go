package sim

import (
	"math"
	"math/rand"
	"testing"
)

// === PartitionedRNG Tests ===

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// BDD: Same seed+name produces same sequence
	rng1 := NewPartitionedRNG(NewSeed(42))
	rng2 := NewPartitionedRNG(NewSeed(42))

	for i := 0; i < 3; i++ {
		a := rng1.ForSubsystem(SubsystemNoise).Float64()
		b := rng2.ForSubsystem(SubsystemNoise).Float64()
		if a != b {
			t.Errorf("Value %d: got %v and %v, want identical", i, a, b)
		}
	}
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// BDD: Drawing from subsystem A doesn't affect subsystem B
	rngA := NewPartitionedRNG(NewSeed(42))
	for i := 0; i < 10; i++ {
		rngA.ForSubsystem(SubsystemSampler).Float64()
	}
	aNoiseFirst := rngA.ForSubsystem(SubsystemNoise).Float64()

	fresh := NewPartitionedRNG(NewSeed(42))
	if want := fresh.ForSubsystem(SubsystemNoise).Float64(); aNoiseFirst != want {
		t.Errorf("noise first value = %v, want %v (isolation broken)", aNoiseFirst, want)
	}
}

func TestPartitionedRNG_SamplerUsesMasterSeed(t *testing.T) {
	// BDD: "sampler" subsystem uses master seed directly
	rng := NewPartitionedRNG(NewSeed(7))
	sampler := rng.ForSubsystem(SubsystemSampler)
	direct := newRandFromSeed(7)

	for i := 0; i < 10; i++ {
		if got, want := sampler.Float64(), direct.Float64(); got != want {
			t.Errorf("Value %d: sampler RNG = %v, direct RNG = %v", i, got, want)
		}
	}
}

func TestPartitionedRNG_CachesInstance(t *testing.T) {
	rng := NewPartitionedRNG(NewSeed(42))
	if rng.ForSubsystem(SubsystemNoise) != rng.ForSubsystem(SubsystemNoise) {
		t.Error("ForSubsystem returned different instances for same name")
	}
}

func TestPartitionedRNG_DeriveSeedMatchesForSubsystem(t *testing.T) {
	// BDD: a generator built from DeriveSeed replays ForSubsystem's stream
	rng := NewPartitionedRNG(NewSeed(99))
	name := SubsystemChunk(3)

	direct := newRandFromSeed(rng.DeriveSeed(name))
	cached := rng.ForSubsystem(name)
	for i := 0; i < 5; i++ {
		if got, want := direct.Int63(), cached.Int63(); got != want {
			t.Errorf("Value %d: derived = %v, cached = %v", i, got, want)
		}
	}
}

func TestPartitionedRNG_DeriveSeedDoesNotCache(t *testing.T) {
	rng := NewPartitionedRNG(NewSeed(42))
	rng.DeriveSeed(SubsystemChunk(0))
	if len(rng.subsystems) != 0 {
		t.Errorf("DeriveSeed cached %d subsystems, want 0", len(rng.subsystems))
	}
}

func TestPartitionedRNG_ExtremeSeeds(t *testing.T) {
	for _, seed := range []int64{0, -1, math.MinInt64, math.MaxInt64} {
		rng := NewPartitionedRNG(NewSeed(seed))
		if rng.Seed() != Seed(seed) {
			t.Errorf("Seed() = %v, want %v", rng.Seed(), seed)
		}
		v := rng.ForSubsystem(SubsystemChunk(0)).Float64()
		if v < 0 || v >= 1 {
			t.Errorf("seed %d: Float64() returned %v, want [0, 1)", seed, v)
		}
	}
}

// === fnv1a64 Tests ===

func TestFnv1a64_Collision(t *testing.T) {
	names := []string{
		SubsystemSampler,
		SubsystemNoise,
		SubsystemChunk(0),
		SubsystemChunk(1),
		SubsystemChunk(100),
		SubsystemSolver("basinhopping"),
		"",
	}

	hashes := make(map[int64]string)
	for _, name := range names {
		h := fnv1a64(name)
		if existing, ok := hashes[h]; ok {
			t.Errorf("Hash collision: %q and %q both hash to %d", name, existing, h)
		}
		hashes[h] = name
	}
}

func TestSubsystemNames(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{SubsystemChunk(0), "chunk_0"},
		{SubsystemChunk(12), "chunk_12"},
		{SubsystemSolver("dualannealing"), "solver_dualannealing"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("subsystem name = %q, want %q", tt.got, tt.want)
		}
	}
}

// === Benchmark ===

func BenchmarkPartitionedRNG_DeriveSeed(b *testing.B) {
	rng := NewPartitionedRNG(NewSeed(42))
	for i := 0; i < b.N; i++ {
		rng.DeriveSeed(SubsystemChunk(i % 64))
	}
}

// === Helper ===

// newRandFromSeed creates a *rand.Rand with the given seed
func newRandFromSeed(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
