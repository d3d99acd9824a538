package fit

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// differentialEvolution is DE/best/1/bin with per-generation dithered
// mutation and immediate updating. The population is Latin-hypercube
// initialised with the guess as one member. It converges when
// std(energies) <= tol·|mean(energies)|, then polishes the best member with a
// bounded Nelder-Mead search unless opts.NoPolish is set.
func differentialEvolution(p *problem, x0 []float64, opts Options, rng *rand.Rand) (outcome, error) {
	dim := len(x0)
	lower, upper := p.lower, p.upper
	size := max(opts.PopSize*dim, 5)

	pop := latinHypercube(size, lower, upper, rng)
	copy(pop[0], x0)
	clip(pop[0], lower, upper)

	// Members left unevaluated when the cap runs out stay at +Inf and are
	// never selected as best.
	energies := make([]float64, size)
	for i := range pop {
		if p.exhausted() {
			energies[i] = math.Inf(1)
			continue
		}
		energies[i] = p.eval(pop[i])
	}
	bestIdx := floats.MinIdx(energies)

	trial := make([]float64, dim)
	converged := false
	gen := 0
	for gen < opts.MaxIterations && !p.exhausted() {
		if err := p.ctx.Err(); err != nil {
			return outcome{}, err
		}
		gen++
		scale := opts.Mutation[0] + rng.Float64()*(opts.Mutation[1]-opts.Mutation[0])
		for i := 0; i < size && !p.exhausted(); i++ {
			r0, r1 := pickTwo(size, i, rng)
			copy(trial, pop[i])
			fill := rng.Intn(dim)
			for k := 0; k < dim; k++ {
				if k == fill || rng.Float64() < opts.Recombination {
					trial[k] = pop[bestIdx][k] + scale*(pop[r0][k]-pop[r1][k])
				}
				if trial[k] < lower[k] || trial[k] > upper[k] {
					trial[k] = lower[k] + rng.Float64()*(upper[k]-lower[k])
				}
			}
			e := p.eval(trial)
			if e <= energies[i] {
				copy(pop[i], trial)
				energies[i] = e
				if e < energies[bestIdx] {
					bestIdx = i
				}
			}
		}
		mean, std := stat.PopMeanStdDev(energies, nil)
		if std <= opts.Tolerance*math.Abs(mean) {
			converged = true
			break
		}
	}
	logrus.Debugf("differential evolution: %d generations, best wrss %g", gen, energies[bestIdx])

	out := outcome{
		x:          append([]float64(nil), pop[bestIdx]...),
		f:          energies[bestIdx],
		iterations: gen,
		success:    converged,
		message:    msgConverged,
	}
	switch {
	case p.exhausted():
		out.success, out.message = false, msgEvalLimit
	case !converged:
		out.message = msgIterationLimit
	}

	if !opts.NoPolish && !p.exhausted() {
		polished, err := p.localSearch(out.x, opts.LocalMaxIterations, 1e-12)
		if err != nil {
			return outcome{}, err
		}
		out.iterations += polished.iterations
		if polished.f < out.f {
			out.x, out.f = polished.x, polished.f
		}
	}
	return out, nil
}

// latinHypercube draws n points with one sample per stratum in every dimension.
func latinHypercube(n int, lower, upper []float64, rng *rand.Rand) [][]float64 {
	dim := len(lower)
	pop := make([][]float64, n)
	for i := range pop {
		pop[i] = make([]float64, dim)
	}
	for k := 0; k < dim; k++ {
		perm := rng.Perm(n)
		for i := range pop {
			u := (float64(perm[i]) + rng.Float64()) / float64(n)
			pop[i][k] = lower[k] + u*(upper[k]-lower[k])
		}
	}
	return pop
}

// pickTwo returns two distinct indices in [0, n) that differ from skip.
func pickTwo(n, skip int, rng *rand.Rand) (int, int) {
	a := rng.Intn(n - 1)
	if a >= skip {
		a++
	}
	b := rng.Intn(n - 2)
	lo, hi := min(a, skip), max(a, skip)
	if b >= lo {
		b++
	}
	if b >= hi {
		b++
	}
	return a, b
}
