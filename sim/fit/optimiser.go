package fit

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/etmc-sim/etmc/sim"
	"github.com/etmc-sim/etmc/sim/fitlog"
)

// Optimiser fits several traces jointly. Each trace evaluates the decay model
// with the parameters named by its Binding; parameters shared between
// bindings are one degree of freedom.
type Optimiser struct {
	traces   []*Trace
	bindings []Binding
	roles    [][4]int
	registry *Registry
	model    sim.ModelFunc
	sinks    []fitlog.Sink
	weighted bool
	autoW    bool
	err      error
}

// OptimiserOption configures an Optimiser.
type OptimiserOption func(*Optimiser)

// WithAutoWeights rescales trace weights at construction, see AdjustWeights.
func WithAutoWeights() OptimiserOption {
	return func(o *Optimiser) { o.autoW = true }
}

// WithModel selects the model evaluator.
func WithModel(kind sim.ModelKind) OptimiserOption {
	return func(o *Optimiser) { o.model, o.err = kind.Func() }
}

// WithSink adds a destination for fit records.
func WithSink(s fitlog.Sink) OptimiserOption {
	return func(o *Optimiser) { o.sinks = append(o.sinks, s) }
}

// NewOptimiser pairs traces with bindings by position.
func NewOptimiser(traces []*Trace, bindings []Binding, opts ...OptimiserOption) (*Optimiser, error) {
	if len(traces) == 0 {
		return nil, fmt.Errorf("at least one trace is required")
	}
	if len(traces) != len(bindings) {
		return nil, fmt.Errorf("%w: %d traces, %d bindings", ErrTraceBindingLength, len(traces), len(bindings))
	}
	for i, b := range bindings {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("binding %d (%s): %w", i, traces[i].Name, err)
		}
	}
	o := &Optimiser{
		traces:   traces,
		bindings: append([]Binding(nil), bindings...),
		registry: NewRegistry(bindings),
		model:    sim.EnergyTransfer,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.err != nil {
		return nil, o.err
	}
	o.roles = make([][4]int, len(bindings))
	for i, b := range o.bindings {
		o.roles[i] = o.registry.roles(b)
	}
	if o.autoW {
		o.AdjustWeights()
	}
	return o, nil
}

// AdjustWeights multiplies each trace's weight by maxLen/len so traces
// contribute equally regardless of sample count. Applied at most once.
func (o *Optimiser) AdjustWeights() {
	if o.weighted {
		return
	}
	longest := 0
	for _, t := range o.traces {
		longest = max(longest, t.Len())
	}
	for _, t := range o.traces {
		t.Weight *= float64(longest) / float64(t.Len())
	}
	o.weighted = true
	logrus.Debugf("auto-weighted %d traces against longest length %d", len(o.traces), longest)
}

// Registry returns the global parameter order.
func (o *Optimiser) Registry() *Registry { return o.registry }

// Traces returns the fitted traces.
func (o *Optimiser) Traces() []*Trace { return o.traces }

// WRSS is the weighted residual sum of squares at ps:
// Σ_traces weight · Σ_i (intensity_i − model_i)².
func (o *Optimiser) WRSS(ps ParameterSet) (float64, error) {
	x, err := o.registry.Flatten(ps)
	if err != nil {
		return 0, err
	}
	return o.wrss(x), nil
}

func (o *Optimiser) wrss(x []float64) float64 {
	total := 0.0
	for i, t := range o.traces {
		curve := o.model(t.Time, t.Radial, paramsAt(x, o.roles[i]))
		sum := 0.0
		for k, y := range t.Intensity {
			r := y - curve[k]
			sum += r * r
		}
		total += t.Weight * sum
	}
	return total
}

// Curves evaluates the model for every trace at ps, in trace order.
func (o *Optimiser) Curves(ps ParameterSet) ([][]float64, error) {
	x, err := o.registry.Flatten(ps)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(o.traces))
	for i, t := range o.traces {
		out[i] = o.model(t.Time, t.Radial, paramsAt(x, o.roles[i]))
	}
	return out, nil
}

// Request describes one optimisation.
type Request struct {
	Guess   ParameterSet
	Bounds  Bounds // required for DifferentialEvolution and DualAnnealing
	Solver  Solver
	Options Options
}

// Result is the outcome of Fit. A solver that stops without converging still
// returns its best point with Success false.
type Result struct {
	Params             ParameterSet
	Success            bool
	WRSS               float64
	Iterations         int
	Evaluations        int
	Message            string
	Solver             Solver
	Uncertainties      map[string]float64
	UncertaintyDetails map[string]UncertaintyDetail
	RecordID           string
}

// Fit minimises WRSS over the registry's parameters starting from req.Guess.
// Bounds, when given, confine every solver; bounded solvers fail with
// ErrBoundsRequired without them. The random stream for stochastic solvers
// is derived from Options.Seed, so equal requests give equal results.
func (o *Optimiser) Fit(ctx context.Context, req Request) (*Result, error) {
	started := time.Now().UTC()
	if _, ok := solverNames[req.Solver]; !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownSolver, int(req.Solver))
	}
	if err := req.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	opts := req.Options.withDefaults(req.Solver)

	x0, err := o.registry.Flatten(req.Guess)
	if err != nil {
		return nil, fmt.Errorf("initial guess: %w", err)
	}
	var lower, upper []float64
	if req.Solver.RequiresBounds() || len(req.Bounds) > 0 {
		lower, upper, err = o.registry.FlattenBounds(req.Bounds)
		if err != nil {
			return nil, fmt.Errorf("solver %s: %w", req.Solver, err)
		}
		clip(x0, lower, upper)
	}

	p := newProblem(ctx, o.wrss, lower, upper, opts.MaxEvaluations)
	rng := rand.New(rand.NewSource(
		sim.NewPartitionedRNG(sim.Seed(opts.Seed)).DeriveSeed(sim.SubsystemSolver(req.Solver.String())),
	))
	logrus.Infof("fitting %d parameters across %d traces with %s", o.registry.Len(), len(o.traces), req.Solver)

	var out outcome
	switch req.Solver {
	case NelderMead:
		out, err = nelderMead(p, x0, opts)
	case BasinHopping:
		out, err = basinHopping(p, x0, opts, rng)
	case DifferentialEvolution:
		out, err = differentialEvolution(p, x0, opts, rng)
	case DualAnnealing:
		out, err = dualAnnealing(p, x0, opts, rng)
	}
	if err != nil {
		return nil, fmt.Errorf("solver %s: %w", req.Solver, err)
	}

	res := &Result{
		Params:      o.registry.Unflatten(out.x),
		Success:     out.success,
		WRSS:        o.wrss(out.x),
		Iterations:  out.iterations,
		Evaluations: p.evals,
		Message:     out.message,
		Solver:      req.Solver,
	}
	if !opts.SkipUncertainty {
		res.Uncertainties, res.UncertaintyDetails = EstimateUncertainties(o.wrss, out.x, o.registry, opts.Uncertainty)
	}
	if math.IsInf(res.WRSS, 1) || math.IsNaN(res.WRSS) {
		logrus.Warnf("%s finished with a non-finite objective", req.Solver)
	}

	if len(o.sinks) > 0 {
		rec := o.record(req, opts, res, started)
		res.RecordID = rec.ID
		for _, s := range o.sinks {
			if err := s.Record(rec); err != nil {
				logrus.Warnf("fit record %s not stored: %v", rec.ID, err)
			}
		}
	}
	logrus.Infof("%s: success=%t wrss=%g iterations=%d evaluations=%d (%s)",
		req.Solver, res.Success, res.WRSS, res.Iterations, res.Evaluations, res.Message)
	return res, nil
}

func (o *Optimiser) record(req Request, opts Options, res *Result, started time.Time) fitlog.Record {
	rec := fitlog.Record{
		ID:            uuid.NewString(),
		InitialisedAt: started,
		FinishedAt:    time.Now().UTC(),
		Solver:        req.Solver.String(),
		Options:       opts,
		Guess:         req.Guess.Clone(),
		Params:        res.Params.Clone(),
		Success:       res.Success,
		Message:       res.Message,
		WRSS:          res.WRSS,
		Iterations:    res.Iterations,
		Evaluations:   res.Evaluations,
	}
	if len(req.Bounds) > 0 {
		rec.Bounds = make(map[string]fitlog.Interval, len(req.Bounds))
		for n, b := range req.Bounds {
			rec.Bounds[n] = fitlog.Interval{Lower: b.Lower, Upper: b.Upper}
		}
	}
	for i, t := range o.traces {
		names := o.bindings[i].Names()
		rec.Traces = append(rec.Traces, fitlog.TraceInfo{
			Name:       t.Name,
			Samples:    t.Len(),
			Weight:     t.Weight,
			Decimation: t.Decimation,
			Source:     t.Source,
			Binding:    names[:],
		})
	}
	if res.UncertaintyDetails != nil {
		rec.Uncertainties = make(map[string]fitlog.UncertaintyInfo, len(res.UncertaintyDetails))
		for n, d := range res.UncertaintyDetails {
			rec.Uncertainties[n] = fitlog.UncertaintyInfo{
				Uncertainty: d.Uncertainty,
				Factor:      d.Factor,
				RelChange:   d.RelChange,
				Iterations:  d.Iterations,
				Converged:   d.Converged,
				Reason:      d.Reason,
			}
		}
	}
	return rec
}
