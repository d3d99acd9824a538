package fit

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/optimize"
)

// nmRestarts bounds how often a converged simplex is rebuilt around its best
// vertex; each restart must improve the objective to continue.
const nmRestarts = 3

// localResult is one gonum Nelder-Mead run mapped back to parameter space.
type localResult struct {
	x          []float64
	f          float64
	iterations int
	status     optimize.Status
}

// localSearch runs gonum's Nelder-Mead in coordinates scaled by |x0|, so the
// initial simplex is a relative perturbation of every parameter.
func (p *problem) localSearch(x0 []float64, maxIter int, tol float64) (localResult, error) {
	dim := len(x0)
	scale := make([]float64, dim)
	u0 := make([]float64, dim)
	for i, v := range x0 {
		scale[i] = math.Abs(v)
		if scale[i] == 0 {
			scale[i] = 1
		}
		u0[i] = v / scale[i]
	}
	xs := make([]float64, dim)
	fn := func(u []float64) float64 {
		for i := range u {
			xs[i] = u[i] * scale[i]
		}
		return p.eval(xs)
	}

	settings := &optimize.Settings{
		MajorIterations: maxIter,
		Converger: &optimize.FunctionConverge{
			Relative:   tol,
			Iterations: 100,
		},
	}
	if p.maxEvals > 0 {
		rem := p.remaining()
		if rem <= 0 {
			return localResult{x: append([]float64(nil), x0...), f: math.Inf(1), status: optimize.FunctionEvaluationLimit}, nil
		}
		settings.FuncEvaluations = rem
	}

	res, err := optimize.Minimize(optimize.Problem{Func: fn, Status: p.status}, u0, settings, &optimize.NelderMead{})
	if err != nil {
		if ctxErr := p.ctx.Err(); ctxErr != nil {
			return localResult{}, ctxErr
		}
		return localResult{}, err
	}
	x := make([]float64, dim)
	for i := range x {
		x[i] = res.X[i] * scale[i]
	}
	if p.bounded() {
		clip(x, p.lower, p.upper)
	}
	return localResult{x: x, f: res.F, iterations: res.MajorIterations, status: res.Status}, nil
}

// nelderMead is the local solver: a Nelder-Mead search restarted from its own
// optimum while restarts keep improving the objective.
func nelderMead(p *problem, x0 []float64, opts Options) (outcome, error) {
	best, err := p.localSearch(x0, opts.MaxIterations, opts.Tolerance)
	if err != nil {
		return outcome{}, err
	}
	iterations := best.iterations
	for r := 0; r < nmRestarts && best.status != optimize.IterationLimit && !p.exhausted(); r++ {
		left := opts.MaxIterations - iterations
		if left <= 0 {
			break
		}
		next, err := p.localSearch(best.x, left, opts.Tolerance)
		if err != nil {
			return outcome{}, err
		}
		iterations += next.iterations
		improved := next.f < best.f-opts.Tolerance*math.Abs(best.f)
		if next.f <= best.f {
			best = next
		}
		if !improved {
			break
		}
		logrus.Debugf("nelder-mead restart %d improved wrss to %g", r+1, best.f)
	}
	ok, msg := describeStatus(best.status)
	if p.exhausted() {
		ok, msg = false, msgEvalLimit
	}
	return outcome{x: best.x, f: best.f, iterations: iterations, success: ok, message: msg}, nil
}
