package fit

import (
	"context"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// problem wraps the objective with evaluation counting, an optional
// evaluation cap, box projection and cancellation.
type problem struct {
	ctx       context.Context
	objective func(x []float64) float64
	lower     []float64 // nil when unbounded
	upper     []float64
	maxEvals  int
	evals     int
	buf       []float64
}

func newProblem(ctx context.Context, objective func([]float64) float64, lower, upper []float64, maxEvals int) *problem {
	return &problem{
		ctx:       ctx,
		objective: objective,
		lower:     lower,
		upper:     upper,
		maxEvals:  maxEvals,
	}
}

func (p *problem) bounded() bool { return p.lower != nil }

// eval returns the objective at x, projected into the box when bounded.
// NaN is reported as +Inf so simplex ordering stays well defined.
func (p *problem) eval(x []float64) float64 {
	p.evals++
	if p.bounded() {
		if len(p.buf) != len(x) {
			p.buf = make([]float64, len(x))
		}
		copy(p.buf, x)
		clip(p.buf, p.lower, p.upper)
		x = p.buf
	}
	f := p.objective(x)
	if math.IsNaN(f) {
		return math.Inf(1)
	}
	return f
}

func (p *problem) exhausted() bool {
	return p.maxEvals > 0 && p.evals >= p.maxEvals
}

func (p *problem) remaining() int {
	if p.maxEvals == 0 {
		return 0
	}
	return p.maxEvals - p.evals
}

// status lets gonum stop on cancellation.
func (p *problem) status() (optimize.Status, error) {
	if err := p.ctx.Err(); err != nil {
		return optimize.Failure, err
	}
	return optimize.NotTerminated, nil
}

// outcome is what every solver hands back to Fit.
type outcome struct {
	x          []float64
	f          float64
	iterations int
	success    bool
	message    string
}

// Solver messages.
const (
	msgConverged      = "optimization terminated successfully"
	msgIterationLimit = "maximum number of iterations has been exceeded"
	msgEvalLimit      = "maximum number of function evaluations has been exceeded"
)

// describeStatus maps a gonum termination status to success and a message.
func describeStatus(s optimize.Status) (bool, string) {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge,
		optimize.FunctionThreshold, optimize.StepConvergence, optimize.GradientThreshold:
		return true, msgConverged
	case optimize.IterationLimit:
		return false, msgIterationLimit
	case optimize.FunctionEvaluationLimit:
		return false, msgEvalLimit
	default:
		return false, "terminated with status " + s.String()
	}
}
