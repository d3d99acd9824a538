package fit

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/etmc-sim/etmc/sim"
)

// Configuration errors. Each is wrapped with detail by the function returning it.
var (
	ErrUnknownSolver      = errors.New("unknown solver")
	ErrBoundsRequired     = errors.New("solver requires a finite bound for every parameter")
	ErrParameterMismatch  = errors.New("parameters do not match the registry")
	ErrBindingIncomplete  = errors.New("binding must name all four roles")
	ErrTraceBindingLength = errors.New("one binding is required per trace")
)

// ParameterSet maps parameter names to values.
type ParameterSet map[string]float64

// Clone returns an independent copy.
func (ps ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(ps))
	for k, v := range ps {
		out[k] = v
	}
	return out
}

// Binding names the global parameter that fills each physical role of the
// model for one trace. Several traces may share a name to fit it jointly.
type Binding struct {
	Amplitude       string `yaml:"amplitude" json:"amplitude"`
	CrossRelaxation string `yaml:"cross_relaxation" json:"cross_relaxation"`
	Radiative       string `yaml:"radiative" json:"radiative"`
	Offset          string `yaml:"offset" json:"offset"`
}

// NewBinding takes names in role order: amplitude, cross-relaxation, radiative, offset.
func NewBinding(names ...string) (Binding, error) {
	if len(names) != 4 {
		return Binding{}, fmt.Errorf("%w: got %d names", ErrBindingIncomplete, len(names))
	}
	b := Binding{Amplitude: names[0], CrossRelaxation: names[1], Radiative: names[2], Offset: names[3]}
	return b, b.Validate()
}

// Names returns the bound names in role order.
func (b Binding) Names() [4]string {
	return [4]string{b.Amplitude, b.CrossRelaxation, b.Radiative, b.Offset}
}

// Validate checks every role is named.
func (b Binding) Validate() error {
	roles := [4]string{"amplitude", "cross_relaxation", "radiative", "offset"}
	for i, n := range b.Names() {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("%w: %s is empty", ErrBindingIncomplete, roles[i])
		}
	}
	return nil
}

// Registry is the explicit ordering of global parameter names used to map
// between ParameterSets and the flat vectors numeric solvers work on.
type Registry struct {
	names []string
	index map[string]int
}

// NewRegistry orders names by first appearance across bindings, role order within each.
func NewRegistry(bindings []Binding) *Registry {
	r := &Registry{index: make(map[string]int)}
	for _, b := range bindings {
		for _, n := range b.Names() {
			if _, ok := r.index[n]; !ok {
				r.index[n] = len(r.names)
				r.names = append(r.names, n)
			}
		}
	}
	return r
}

// Names returns the registry order. The slice must not be modified.
func (r *Registry) Names() []string { return r.names }

// Len is the number of parameters.
func (r *Registry) Len() int { return len(r.names) }

// Index returns the vector position of name.
func (r *Registry) Index(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

// Flatten converts ps into a vector. ps must name exactly the registry's parameters.
func (r *Registry) Flatten(ps ParameterSet) ([]float64, error) {
	if err := r.check(keys(ps)); err != nil {
		return nil, err
	}
	x := make([]float64, len(r.names))
	for i, n := range r.names {
		x[i] = ps[n]
	}
	return x, nil
}

// Unflatten converts a vector in registry order into a ParameterSet.
func (r *Registry) Unflatten(x []float64) ParameterSet {
	ps := make(ParameterSet, len(r.names))
	for i, n := range r.names {
		ps[n] = x[i]
	}
	return ps
}

// FlattenBounds returns lower and upper vectors. Every parameter needs a
// finite interval with lower < upper and no unknown names may appear.
func (r *Registry) FlattenBounds(bounds Bounds) (lower, upper []float64, err error) {
	if len(bounds) == 0 {
		return nil, nil, fmt.Errorf("%w: no bounds given", ErrBoundsRequired)
	}
	if err := r.check(keys(bounds)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBoundsRequired, err)
	}
	lower = make([]float64, len(r.names))
	upper = make([]float64, len(r.names))
	for i, n := range r.names {
		b := bounds[n]
		if err := b.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrBoundsRequired, n, err)
		}
		lower[i], upper[i] = b.Lower, b.Upper
	}
	return lower, upper, nil
}

func (r *Registry) check(names []string) error {
	var missing, unknown []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
		if _, ok := r.index[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	for _, n := range r.names {
		if !seen[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: missing [%s], unknown [%s]", ErrParameterMismatch,
		strings.Join(missing, ", "), strings.Join(unknown, ", "))
}

// roles resolves a binding to vector positions.
func (r *Registry) roles(b Binding) [4]int {
	var idx [4]int
	for i, n := range b.Names() {
		idx[i] = r.index[n]
	}
	return idx
}

func paramsAt(x []float64, idx [4]int) sim.TransferParams {
	return sim.TransferParams{
		Amplitude:       x[idx[0]],
		CrossRelaxation: x[idx[1]],
		Radiative:       x[idx[2]],
		Offset:          x[idx[3]],
	}
}

// Bound is a closed interval for one parameter.
type Bound struct {
	Lower float64 `yaml:"lower" json:"lower"`
	Upper float64 `yaml:"upper" json:"upper"`
}

// Validate checks the interval is finite and non-empty.
func (b Bound) Validate() error {
	if !finite(b.Lower) || !finite(b.Upper) {
		return fmt.Errorf("bounds must be finite, got [%v, %v]", b.Lower, b.Upper)
	}
	if !(b.Lower < b.Upper) {
		return fmt.Errorf("lower bound %v must be below upper bound %v", b.Lower, b.Upper)
	}
	return nil
}

// Bounds maps parameter names to intervals.
type Bounds map[string]Bound

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// clip projects x into [lower, upper] in place.
func clip(x, lower, upper []float64) {
	for i := range x {
		x[i] = math.Min(math.Max(x[i], lower[i]), upper[i])
	}
}
