package fit

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// tailLimit clamps the heavy-tailed visiting steps.
const tailLimit = 1e8

// visitor draws steps from the generalised (Tsallis) visiting distribution.
type visitor struct {
	qv       float64
	factor4p float64
	factor6  float64
	rng      *rand.Rand
}

func newVisitor(qv float64, rng *rand.Rand) *visitor {
	f2 := math.Exp((4 - qv) * math.Log(qv-1))
	f3 := math.Exp((2 - qv) * math.Ln2 / (qv - 1))
	f5 := 1/(qv-1) - 0.5
	d1 := 2 - f5
	lg, _ := math.Lgamma(d1)
	return &visitor{
		qv:       qv,
		factor4p: math.Sqrt(math.Pi) * f2 / (f3 * (3 - qv)),
		factor6:  math.Pi * (1 - f5) / math.Sin(math.Pi*(1-f5)) / math.Exp(lg),
		rng:      rng,
	}
}

// step returns one visiting displacement at temperature t.
func (v *visitor) step(t float64) float64 {
	x, y := v.rng.NormFloat64(), v.rng.NormFloat64()
	factor1 := math.Exp(math.Log(t) / (v.qv - 1))
	factor4 := v.factor4p * factor1
	x *= math.Exp(-(v.qv - 1) * math.Log(v.factor6/factor4) / (3 - v.qv))
	den := math.Exp((v.qv - 1) * math.Log(math.Abs(y)) / (3 - v.qv))
	s := x / den
	switch {
	case s > tailLimit:
		s = tailLimit * v.rng.Float64()
	case s < -tailLimit:
		s = -tailLimit * v.rng.Float64()
	case math.IsNaN(s):
		s = 0
	}
	return s
}

// wrap folds xi back into [lo, hi) periodically.
func wrap(xi, lo, hi float64) float64 {
	span := hi - lo
	a := math.Mod(xi-lo, span) + span
	out := math.Mod(a, span) + lo
	if math.Abs(out-lo) < 1e-10 {
		out += 1e-10
	}
	return out
}

// dualAnnealing is generalised simulated annealing: a Markov chain of 2·dim
// visits per temperature step (all coordinates for the first half, one
// coordinate at a time for the second), generalised Metropolis acceptance,
// a restart from a random point when the temperature falls below
// opts.RestartTempRatio·T0, and a bounded Nelder-Mead search whenever the
// chain improves the best point.
func dualAnnealing(p *problem, x0 []float64, opts Options, rng *rand.Rand) (outcome, error) {
	dim := len(x0)
	lower, upper := p.lower, p.upper
	qv, qa := opts.Visit, opts.Accept
	t0 := opts.InitialTemp
	vis := newVisitor(qv, rng)

	cur := append([]float64(nil), x0...)
	clip(cur, lower, upper)
	eCur := p.eval(cur)
	best := append([]float64(nil), cur...)
	eBest := eCur

	t1 := math.Exp((qv-1)*math.Ln2) - 1
	cand := make([]float64, dim)
	iteration, localIters, restarts := 0, 0, 0

	for iteration < opts.MaxIterations && !p.exhausted() {
		for i := 0; iteration < opts.MaxIterations && !p.exhausted(); i++ {
			if err := p.ctx.Err(); err != nil {
				return outcome{}, err
			}
			t2 := math.Exp((qv-1)*math.Log(float64(i)+2)) - 1
			temp := t0 * t1 / t2
			if temp < t0*opts.RestartTempRatio {
				restarts++
				for k := range cur {
					cur[k] = lower[k] + rng.Float64()*(upper[k]-lower[k])
				}
				eCur = p.eval(cur)
				if eCur < eBest {
					copy(best, cur)
					eBest = eCur
				}
				break
			}
			stepTemp := temp / float64(i+1)

			improved := false
			for j := 0; j < 2*dim && !p.exhausted(); j++ {
				copy(cand, cur)
				if j < dim {
					for k := range cand {
						cand[k] = wrap(cur[k]+vis.step(temp), lower[k], upper[k])
					}
				} else {
					k := j - dim
					cand[k] = wrap(cur[k]+vis.step(temp), lower[k], upper[k])
				}
				e := p.eval(cand)
				if e < eCur || acceptGeneralised(e, eCur, stepTemp, qa, rng) {
					copy(cur, cand)
					eCur = e
				}
				if e < eBest {
					copy(best, cand)
					eBest = e
					improved = true
				}
			}

			if improved && !opts.NoLocalSearch && !p.exhausted() {
				local, err := p.localSearch(best, opts.LocalMaxIterations, opts.Tolerance)
				if err != nil {
					return outcome{}, err
				}
				localIters += local.iterations
				if local.f < eBest {
					copy(best, local.x)
					eBest = local.f
					copy(cur, best)
					eCur = eBest
				}
			}
			iteration++
		}
	}
	logrus.Debugf("dual annealing: %d iterations, %d restarts, best wrss %g", iteration, restarts, eBest)

	out := outcome{
		x:          best,
		f:          eBest,
		iterations: iteration + localIters,
		success:    !math.IsInf(eBest, 1),
		message:    "maximum number of annealing iterations reached",
	}
	if p.exhausted() {
		out.success, out.message = false, msgEvalLimit
	}
	return out, nil
}

// acceptGeneralised is the generalised Metropolis criterion with parameter qa.
func acceptGeneralised(eNew, eCur, stepTemp, qa float64, rng *rand.Rand) bool {
	if math.IsInf(eNew, 1) {
		return false
	}
	pqvTemp := 1 - (1-qa)*(eNew-eCur)/stepTemp
	if pqvTemp <= 0 {
		return false
	}
	pqv := math.Exp(math.Log(pqvTemp) / (1 - qa))
	return rng.Float64() <= pqv
}
