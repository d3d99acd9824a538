package fit

import (
	"fmt"
	"math"

	"github.com/etmc-sim/etmc/sim"
)

// Trace is one observed decay curve plus the interaction sums it is fitted against.
type Trace struct {
	Name       string
	Time       []float64
	Intensity  []float64
	Radial     []float64
	Source     string  // canonical key of the simulation supplying Radial, if any
	Weight     float64 // defaults to 1; rescaled by auto-weighting
	Decimation int     // keep every n-th sample; 0 or 1 keeps all
}

// TraceOption configures a Trace at construction.
type TraceOption func(*Trace)

// WithWeight sets the trace's initial weight.
func WithWeight(w float64) TraceOption {
	return func(t *Trace) { t.Weight = w }
}

// WithDecimation keeps every n-th sample, starting with the first.
func WithDecimation(n int) TraceOption {
	return func(t *Trace) { t.Decimation = n }
}

// WithSource records which simulation produced the radial data.
func WithSource(key sim.SimulationKey) TraceOption {
	return func(t *Trace) { t.Source = key.Canonical() }
}

// NewTrace validates and builds a Trace. Decimation is applied once, here.
func NewTrace(name string, time, intensity, radial []float64, opts ...TraceOption) (*Trace, error) {
	t := &Trace{Name: name, Weight: 1}
	for _, opt := range opts {
		opt(t)
	}
	if len(time) == 0 {
		return nil, fmt.Errorf("trace %q: no samples", name)
	}
	if len(time) != len(intensity) {
		return nil, fmt.Errorf("trace %q: %d time samples but %d intensity samples", name, len(time), len(intensity))
	}
	if len(radial) == 0 {
		return nil, fmt.Errorf("trace %q: empty interaction-sum vector", name)
	}
	if !(t.Weight > 0) || math.IsInf(t.Weight, 0) {
		return nil, fmt.Errorf("trace %q: weight must be finite and positive, got %v", name, t.Weight)
	}
	if t.Decimation < 0 {
		return nil, fmt.Errorf("trace %q: decimation must be non-negative, got %d", name, t.Decimation)
	}
	for i := range time {
		if !finite(time[i]) || !finite(intensity[i]) {
			return nil, fmt.Errorf("trace %q: non-finite sample at index %d", name, i)
		}
	}
	t.Time = decimate(time, t.Decimation)
	t.Intensity = decimate(intensity, t.Decimation)
	t.Radial = append([]float64(nil), radial...)
	return t, nil
}

// TraceFromResult builds a Trace whose radial data is a cached simulation.
func TraceFromResult(name string, time, intensity []float64, result *sim.SimulationResult, opts ...TraceOption) (*Trace, error) {
	opts = append([]TraceOption{WithSource(result.Key)}, opts...)
	return NewTrace(name, time, intensity, result.Sums, opts...)
}

func decimate(xs []float64, n int) []float64 {
	if n <= 1 {
		return append([]float64(nil), xs...)
	}
	out := make([]float64, 0, (len(xs)+n-1)/n)
	for i := 0; i < len(xs); i += n {
		out = append(out, xs[i])
	}
	return out
}

// Len is the number of samples after decimation.
func (t *Trace) Len() int { return len(t.Time) }

// Label implements plot.TraceView.
func (t *Trace) Label() string { return t.Name }

// Samples implements plot.TraceView.
func (t *Trace) Samples() (x, y []float64) { return t.Time, t.Intensity }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
