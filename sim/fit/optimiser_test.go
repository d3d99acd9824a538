package fit

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etmc-sim/etmc/sim"
	"github.com/etmc-sim/etmc/sim/fitlog"
	"github.com/etmc-sim/etmc/sim/internal/testutil"
)

var (
	fixtureRadial = []float64{0, 0.3, 0.7, 1.4, 2.2, 3.5}
	fixtureTruth  = sim.TransferParams{Amplitude: 50, CrossRelaxation: 0.6, Radiative: 0.25, Offset: 1.5}
	fixtureNames  = Binding{Amplitude: "A", CrossRelaxation: "cr", Radiative: "rad", Offset: "c"}
	fixtureBounds = Bounds{"A": {10, 200}, "cr": {0.05, 3}, "rad": {0.01, 1}, "c": {0, 5}}
)

// syntheticTrace evaluates the model at truth. noise, when non-nil, is added
// to each sample.
func syntheticTrace(t *testing.T, name string, n int, radial []float64, truth sim.TransferParams, noise func(i int) float64) *Trace {
	t.Helper()
	time := testutil.Linspace(0, 8, n)
	intensity := sim.EnergyTransfer(time, radial, truth)
	if noise != nil {
		for i := range intensity {
			intensity[i] += noise(i)
		}
	}
	tr, err := NewTrace(name, time, intensity, radial)
	require.NoError(t, err)
	return tr
}

func fixtureOptimiser(t *testing.T, opts ...OptimiserOption) *Optimiser {
	t.Helper()
	tr := syntheticTrace(t, "fixture", 120, fixtureRadial, fixtureTruth, nil)
	o, err := NewOptimiser([]*Trace{tr}, []Binding{fixtureNames}, opts...)
	require.NoError(t, err)
	return o
}

func truthSet(p sim.TransferParams) ParameterSet {
	return ParameterSet{"A": p.Amplitude, "cr": p.CrossRelaxation, "rad": p.Radiative, "c": p.Offset}
}

func TestOptimiser_WRSS_ZeroAtTruth(t *testing.T) {
	o := fixtureOptimiser(t)

	w, err := o.WRSS(truthSet(fixtureTruth))
	require.NoError(t, err)
	assert.Equal(t, 0.0, w)

	shifted := truthSet(fixtureTruth)
	shifted["c"] += 1
	w, err = o.WRSS(shifted)
	require.NoError(t, err)
	// every sample is off by exactly one
	assert.InDelta(t, 120.0, w, 1e-9)

	_, err = o.WRSS(ParameterSet{"A": 1})
	assert.ErrorIs(t, err, ErrParameterMismatch)
}

func TestOptimiser_NelderMead_RecoversNoiselessParameters(t *testing.T) {
	// GIVEN noiseless data and a guess 20-30% away from the truth
	o := fixtureOptimiser(t)
	guess := ParameterSet{"A": 40, "cr": 0.75, "rad": 0.2, "c": 1.9}

	// WHEN fitted with Nelder-Mead
	res, err := o.Fit(context.Background(), Request{
		Guess:   guess,
		Solver:  NelderMead,
		Options: Options{SkipUncertainty: true},
	})
	require.NoError(t, err)

	// THEN every parameter is recovered to 1e-6 relative
	assert.True(t, res.Success, res.Message)
	for name, want := range truthSet(fixtureTruth) {
		testutil.AssertFloat64Equal(t, name, want, res.Params[name], 1e-6)
	}
	assert.Less(t, res.WRSS, 1e-10)
	assert.Positive(t, res.Evaluations)
	assert.Nil(t, res.Uncertainties)
	// the guess is not modified
	assert.Equal(t, 40.0, guess["A"])
}

func TestOptimiser_SharedParameters_JointFit(t *testing.T) {
	// GIVEN two traces from different radial distributions that share the
	// cross-relaxation and radiative rates but not amplitude or offset
	second := sim.TransferParams{Amplitude: 20, CrossRelaxation: fixtureTruth.CrossRelaxation, Radiative: fixtureTruth.Radiative, Offset: 0.5}
	t1 := syntheticTrace(t, "low", 100, fixtureRadial, fixtureTruth, nil)
	t2 := syntheticTrace(t, "high", 100, []float64{0.5, 1.5, 2.5, 4.5}, second, nil)
	bindings := []Binding{
		fixtureNames,
		{Amplitude: "A2", CrossRelaxation: "cr", Radiative: "rad", Offset: "c2"},
	}
	o, err := NewOptimiser([]*Trace{t1, t2}, bindings)
	require.NoError(t, err)
	require.Equal(t, 6, o.Registry().Len())

	// WHEN fitted jointly
	res, err := o.Fit(context.Background(), Request{
		Guess:   ParameterSet{"A": 45, "cr": 0.7, "rad": 0.22, "c": 1.2, "A2": 24, "c2": 0.7},
		Solver:  NelderMead,
		Options: Options{SkipUncertainty: true},
	})
	require.NoError(t, err)

	// THEN both the shared and the per-trace parameters are recovered
	want := ParameterSet{"A": 50, "cr": 0.6, "rad": 0.25, "c": 1.5, "A2": 20, "c2": 0.5}
	for name, v := range want {
		testutil.AssertFloat64Equal(t, name, v, res.Params[name], 1e-4)
	}
	curves, err := o.Curves(res.Params)
	require.NoError(t, err)
	require.Len(t, curves, 2)
	testutil.AssertSliceEqual(t, "high curve", t2.Intensity, curves[1], 1e-4)
}

func TestOptimiser_GlobalSolvers_FindMinimumInBounds(t *testing.T) {
	guess := ParameterSet{"A": 120, "cr": 1.5, "rad": 0.6, "c": 3}
	tests := []struct {
		solver Solver
		opts   Options
	}{
		{BasinHopping, Options{MaxIterations: 5, Seed: 3}},
		{DifferentialEvolution, Options{MaxIterations: 200, PopSize: 10, Seed: 3}},
		{DualAnnealing, Options{MaxIterations: 40, Seed: 3}},
	}
	for _, tc := range tests {
		t.Run(tc.solver.String(), func(t *testing.T) {
			o := fixtureOptimiser(t)
			tc.opts.SkipUncertainty = true

			res, err := o.Fit(context.Background(), Request{
				Guess: guess, Bounds: fixtureBounds, Solver: tc.solver, Options: tc.opts,
			})
			require.NoError(t, err)

			for name, want := range truthSet(fixtureTruth) {
				testutil.AssertFloat64Equal(t, name, want, res.Params[name], 1e-4)
				b := fixtureBounds[name]
				assert.GreaterOrEqual(t, res.Params[name], b.Lower, name)
				assert.LessOrEqual(t, res.Params[name], b.Upper, name)
			}
			assert.Equal(t, tc.solver, res.Solver)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestOptimiser_SameSeed_SameResult(t *testing.T) {
	req := Request{
		Guess:   ParameterSet{"A": 120, "cr": 1.5, "rad": 0.6, "c": 3},
		Bounds:  fixtureBounds,
		Solver:  DifferentialEvolution,
		Options: Options{MaxIterations: 20, PopSize: 5, Seed: 11, NoPolish: true, SkipUncertainty: true},
	}
	a, err := fixtureOptimiser(t).Fit(context.Background(), req)
	require.NoError(t, err)
	b, err := fixtureOptimiser(t).Fit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a.Params, b.Params)
	assert.Equal(t, a.Evaluations, b.Evaluations)
}

func TestOptimiser_Fit_ConfigurationErrors(t *testing.T) {
	o := fixtureOptimiser(t)
	guess := truthSet(fixtureTruth)

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown solver", Request{Guess: guess, Solver: Solver(42)}, ErrUnknownSolver},
		{"de without bounds", Request{Guess: guess, Solver: DifferentialEvolution}, ErrBoundsRequired},
		{"da without bounds", Request{Guess: guess, Solver: DualAnnealing}, ErrBoundsRequired},
		{"partial bounds", Request{Guess: guess, Solver: DualAnnealing, Bounds: Bounds{"A": {0, 1}}}, ErrBoundsRequired},
		{"guess missing name", Request{Guess: ParameterSet{"A": 1}, Solver: NelderMead}, ErrParameterMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := o.Fit(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := o.Fit(context.Background(), Request{Guess: guess, Options: Options{Recombination: 2}})
	assert.Error(t, err)
}

func TestNewOptimiser_Errors(t *testing.T) {
	tr := syntheticTrace(t, "a", 10, fixtureRadial, fixtureTruth, nil)

	_, err := NewOptimiser([]*Trace{tr}, nil)
	assert.ErrorIs(t, err, ErrTraceBindingLength)

	_, err = NewOptimiser([]*Trace{tr}, []Binding{{Amplitude: "A"}})
	assert.ErrorIs(t, err, ErrBindingIncomplete)

	_, err = NewOptimiser(nil, nil)
	assert.Error(t, err)

	_, err = NewOptimiser([]*Trace{tr}, []Binding{fixtureNames}, WithModel(sim.ModelKind(9)))
	assert.Error(t, err)
}

func TestOptimiser_AutoWeights_ScaleByLength(t *testing.T) {
	// GIVEN traces of length L and 2L
	short := syntheticTrace(t, "short", 50, fixtureRadial, fixtureTruth, nil)
	long := syntheticTrace(t, "long", 100, fixtureRadial, fixtureTruth, nil)

	// WHEN auto-weighting is requested
	o, err := NewOptimiser([]*Trace{short, long}, []Binding{fixtureNames, fixtureNames}, WithAutoWeights())
	require.NoError(t, err)

	// THEN the shorter trace carries twice the weight, and reapplying is a no-op
	assert.Equal(t, 2.0, short.Weight)
	assert.Equal(t, 1.0, long.Weight)
	o.AdjustWeights()
	assert.Equal(t, 2.0, short.Weight)
}

func TestOptimiser_ParallelModel_MatchesSerial(t *testing.T) {
	serial := fixtureOptimiser(t)
	parallel := fixtureOptimiser(t, WithModel(sim.ModelParallel))
	ps := ParameterSet{"A": 45, "cr": 0.7, "rad": 0.2, "c": 1}

	ws, err := serial.WRSS(ps)
	require.NoError(t, err)
	wp, err := parallel.WRSS(ps)
	require.NoError(t, err)
	assert.Equal(t, ws, wp)
}

func TestOptimiser_EvaluationCap_ReportsFailure(t *testing.T) {
	guess := ParameterSet{"A": 40, "cr": 0.75, "rad": 0.2, "c": 1.9}
	tests := []struct {
		solver   Solver
		maxEvals int
	}{
		{NelderMead, 30},
		{BasinHopping, 30},
		// smaller than the 60-member initial population
		{DifferentialEvolution, 10},
		{DualAnnealing, 10},
	}
	for _, tc := range tests {
		t.Run(tc.solver.String(), func(t *testing.T) {
			o := fixtureOptimiser(t)

			res, err := o.Fit(context.Background(), Request{
				Guess:   guess,
				Bounds:  fixtureBounds,
				Solver:  tc.solver,
				Options: Options{MaxEvaluations: tc.maxEvals, SkipUncertainty: true},
			})
			require.NoError(t, err)

			assert.False(t, res.Success)
			assert.Equal(t, msgEvalLimit, res.Message)
			assert.LessOrEqual(t, res.Evaluations, tc.maxEvals)
			assert.False(t, math.IsNaN(res.WRSS))
			assert.False(t, math.IsInf(res.WRSS, 1))
		})
	}
}

func TestOptimiser_CancelledContext(t *testing.T) {
	o := fixtureOptimiser(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, s := range []Solver{NelderMead, DualAnnealing} {
		_, err := o.Fit(ctx, Request{Guess: truthSet(fixtureTruth), Bounds: fixtureBounds, Solver: s})
		assert.ErrorIs(t, err, context.Canceled, s.String())
	}
}

func TestOptimiser_NoisyFit_UncertaintiesAndRecord(t *testing.T) {
	// GIVEN data with a deterministic ±0.3 ripple and a recording sink
	ripple := func(i int) float64 { return 0.3 * math.Sin(float64(i)*1.7) }
	tr := syntheticTrace(t, "noisy", 150, fixtureRadial, fixtureTruth, ripple)
	log := fitlog.NewLog()
	o, err := NewOptimiser([]*Trace{tr}, []Binding{fixtureNames}, WithSink(log))
	require.NoError(t, err)

	// WHEN fitted
	res, err := o.Fit(context.Background(), Request{
		Guess:  ParameterSet{"A": 45, "cr": 0.7, "rad": 0.2, "c": 1.2},
		Bounds: fixtureBounds,
		Solver: NelderMead,
	})
	require.NoError(t, err)

	// THEN every parameter has a positive uncertainty with a reason
	require.Len(t, res.Uncertainties, 4)
	for name, u := range res.Uncertainties {
		d := res.UncertaintyDetails[name]
		assert.Positive(t, u, name)
		assert.NotEmpty(t, d.Reason, name)
		if d.Converged {
			assert.Greater(t, d.RelChange, 0.04, name)
			assert.Less(t, d.RelChange, 0.05, name)
		}
	}
	assert.Positive(t, res.WRSS)

	// THEN one record describing the fit reached the sink
	recs := log.Records()
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, res.RecordID, rec.ID)
	assert.Equal(t, "nelder-mead", rec.Solver)
	assert.Equal(t, res.WRSS, rec.WRSS)
	assert.Equal(t, fitlog.Interval{Lower: 10, Upper: 200}, rec.Bounds["A"])
	require.Len(t, rec.Traces, 1)
	assert.Equal(t, []string{"A", "cr", "rad", "c"}, rec.Traces[0].Binding)
	assert.Len(t, rec.Uncertainties, 4)
	assert.False(t, rec.FinishedAt.Before(rec.InitialisedAt))
}
