package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultChunkSize is the number of Monte Carlo iterations drawn from one RNG stream.
const DefaultChunkSize = 4096

// SampleRequest describes one Monte Carlo run over a candidate shell.
type SampleRequest struct {
	Shell       *CandidateShell
	Probability float64 // doping probability in [0, 1]
	Interaction InteractionType
	Iterations  int
	Intrinsic   bool // normalise with 1 instead of the shell's r0
}

// Validate checks every field of the request.
func (r SampleRequest) Validate() error {
	if r.Shell == nil {
		return fmt.Errorf("candidate shell is required")
	}
	if err := r.Shell.Validate(); err != nil {
		return err
	}
	if math.IsNaN(r.Probability) || r.Probability < 0 || r.Probability > 1 {
		return fmt.Errorf("doping probability must be in [0, 1], got %v", r.Probability)
	}
	if r.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", r.Iterations)
	}
	if _, err := r.Interaction.Exponent(); err != nil {
		return err
	}
	return nil
}

// Sampler draws random dopant configurations and reduces each one to an
// interaction sum. Iterations are split into fixed-size chunks, each with its
// own seeded stream, so the output depends only on the seed and never on the
// number of workers.
type Sampler struct {
	rng       *PartitionedRNG
	workers   int
	chunkSize int
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithWorkers bounds the number of goroutines used by Simulate.
func WithWorkers(n int) SamplerOption {
	return func(s *Sampler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithChunkSize sets the iterations per RNG stream.
func WithChunkSize(n int) SamplerOption {
	return func(s *Sampler) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// NewSampler creates a Sampler seeded with seed.
func NewSampler(seed Seed, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		rng:       NewPartitionedRNG(seed),
		workers:   runtime.NumCPU(),
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed returns the sampler's master seed.
func (s *Sampler) Seed() Seed { return s.rng.Seed() }

// siteTerms precomputes (norm/d)^s for every site in the shell.
func siteTerms(shell *CandidateShell, exponent int, intrinsic bool) []float64 {
	norm := shell.R0
	if intrinsic {
		norm = 1
	}
	terms := make([]float64, len(shell.Sites))
	for i, site := range shell.Sites {
		terms[i] = math.Pow(norm/site.Distance, float64(exponent))
	}
	return terms
}

// Simulate returns req.Iterations independent interaction sums. Each entry is
// the sum of (norm/d)^s over the sites flipped to acceptors in that iteration,
// or 0 when no site was flipped.
func (s *Sampler) Simulate(ctx context.Context, req SampleRequest) ([]float64, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	exponent, _ := req.Interaction.Exponent()
	terms := siteTerms(req.Shell, exponent, req.Intrinsic)

	out := make([]float64, req.Iterations)
	nChunks := (req.Iterations + s.chunkSize - 1) / s.chunkSize
	logrus.Debugf("sampling %d iterations over %d sites (p=%v, s=%d) in %d chunks on %d workers",
		req.Iterations, len(terms), req.Probability, exponent, nChunks, s.workers)

	// Seeds are derived before any goroutine starts; PartitionedRNG is not thread-safe.
	seeds := make([]int64, nChunks)
	for c := range seeds {
		seeds[c] = s.rng.DeriveSeed(SubsystemChunk(c))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for c := 0; c < nChunks; c++ {
		lo := c * s.chunkSize
		hi := min(lo+s.chunkSize, req.Iterations)
		seed := seeds[c]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seed))
			sampleChunk(rng, terms, req.Probability, out[lo:hi])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// sampleChunk fills dst with one interaction sum per iteration.
func sampleChunk(rng *rand.Rand, terms []float64, p float64, dst []float64) {
	for j := range dst {
		sum := 0.0
		for _, t := range terms {
			if rng.Float64() < p {
				sum += t
			}
		}
		dst[j] = sum
	}
}

// Dope draws a single configuration and returns the sites flipped to acceptors.
func (s *Sampler) Dope(shell *CandidateShell, p float64) []Site {
	rng := s.rng.ForSubsystem(SubsystemSampler)
	var doped []Site
	for _, site := range shell.Sites {
		if rng.Float64() < p {
			doped = append(doped, site)
		}
	}
	return doped
}

// FullShellSum is the interaction sum with every site doped.
func FullShellSum(shell *CandidateShell, interaction InteractionType, intrinsic bool) (float64, error) {
	exponent, err := interaction.Exponent()
	if err != nil {
		return 0, err
	}
	return floats.Sum(siteTerms(shell, exponent, intrinsic)), nil
}

// SumStats summarises a vector of interaction sums.
type SumStats struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	StdErr float64 `json:"std_err"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Zeros  int     `json:"zeros"` // iterations with no doped site
}

// Summarize computes SumStats for sums. An empty input yields the zero value.
func Summarize(sums []float64) SumStats {
	if len(sums) == 0 {
		return SumStats{}
	}
	mean, std := stat.MeanStdDev(sums, nil)
	if len(sums) < 2 {
		std = 0
	}
	zeros := 0
	for _, v := range sums {
		if v == 0 {
			zeros++
		}
	}
	return SumStats{
		N:      len(sums),
		Mean:   mean,
		StdDev: std,
		StdErr: std / math.Sqrt(float64(len(sums))),
		Min:    floats.Min(sums),
		Max:    floats.Max(sums),
		Zeros:  zeros,
	}
}
