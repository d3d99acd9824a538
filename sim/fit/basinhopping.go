package fit

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/optimize"
)

// basinHopping alternates random displacement, local Nelder-Mead and a
// Metropolis test at opts.Temperature. Displacements are relative to the
// magnitude of each guess coordinate, since parameters differ by orders of
// magnitude.
func basinHopping(p *problem, x0 []float64, opts Options, rng *rand.Rand) (outcome, error) {
	scale := make([]float64, len(x0))
	for i, v := range x0 {
		scale[i] = math.Abs(v)
		if scale[i] == 0 {
			scale[i] = 1
		}
	}

	cur, err := p.localSearch(x0, opts.LocalMaxIterations, opts.Tolerance)
	if err != nil {
		return outcome{}, err
	}
	best := cur
	iterations := cur.iterations
	accepted := 0
	hops := 0

	trial := make([]float64, len(x0))
	for hops < opts.MaxIterations && !p.exhausted() {
		if err := p.ctx.Err(); err != nil {
			return outcome{}, err
		}
		hops++
		for i := range trial {
			trial[i] = cur.x[i] + opts.StepSize*scale[i]*(2*rng.Float64()-1)
		}
		if p.bounded() {
			clip(trial, p.lower, p.upper)
		}
		next, err := p.localSearch(trial, opts.LocalMaxIterations, opts.Tolerance)
		if err != nil {
			return outcome{}, err
		}
		iterations += next.iterations

		if metropolis(next.f, cur.f, opts.Temperature, rng) {
			cur = next
			accepted++
		}
		if next.f < best.f {
			best = next
			logrus.Debugf("basinhopping hop %d: new best wrss %g", hops, best.f)
		}
	}
	logrus.Debugf("basinhopping: %d hops, %d accepted", hops, accepted)

	ok, msg := describeStatus(best.status)
	switch {
	case p.exhausted():
		ok, msg = false, msgEvalLimit
	case ok:
		msg = "requested number of basinhopping iterations completed successfully"
	case best.status == optimize.IterationLimit:
		msg = "lowest minimum did not converge: " + msgIterationLimit
	}
	return outcome{x: best.x, f: best.f, iterations: iterations, success: ok, message: msg}, nil
}

// metropolis accepts downhill moves always and uphill moves with
// probability exp(-(fNew-fOld)/T). T = 0 accepts only downhill moves.
func metropolis(fNew, fOld, temperature float64, rng *rand.Rand) bool {
	if fNew <= fOld {
		return true
	}
	if temperature <= 0 || math.IsInf(fNew, 1) {
		return false
	}
	return rng.Float64() < math.Exp(-(fNew-fOld)/temperature)
}
