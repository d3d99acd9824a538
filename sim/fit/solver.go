package fit

import (
	"fmt"
	"sort"
	"strings"
)

// Solver selects a minimisation strategy.
type Solver int

const (
	// NelderMead is a local derivative-free simplex search. Needs only a guess.
	NelderMead Solver = iota
	// BasinHopping repeats local searches from randomly displaced starts.
	BasinHopping
	// DifferentialEvolution is a population search over the bounded box.
	DifferentialEvolution
	// DualAnnealing is generalised simulated annealing over the bounded box.
	DualAnnealing
)

var solverNames = map[Solver]string{
	NelderMead:            "nelder-mead",
	BasinHopping:          "basinhopping",
	DifferentialEvolution: "differential_evolution",
	DualAnnealing:         "dual_annealing",
}

// solverAliases maps accepted spellings to solvers.
var solverAliases = map[string]Solver{
	"nelder-mead":            NelderMead,
	"neldermead":             NelderMead,
	"nm":                     NelderMead,
	"basinhopping":           BasinHopping,
	"basin-hopping":          BasinHopping,
	"differential_evolution": DifferentialEvolution,
	"differential-evolution": DifferentialEvolution,
	"de":                     DifferentialEvolution,
	"dual_annealing":         DualAnnealing,
	"dual-annealing":         DualAnnealing,
	"annealing":              DualAnnealing,
}

func (s Solver) String() string {
	if name, ok := solverNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Solver(%d)", int(s))
}

// RequiresBounds reports whether the solver searches a bounded box.
func (s Solver) RequiresBounds() bool {
	return s == DifferentialEvolution || s == DualAnnealing
}

// ParseSolver resolves a solver name (case-insensitive).
func ParseSolver(name string) (Solver, error) {
	if s, ok := solverAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("%w %q (valid: %s)", ErrUnknownSolver, name, strings.Join(ValidSolverNames(), ", "))
}

// ValidSolverNames returns the canonical solver names, sorted.
func ValidSolverNames() []string {
	names := make([]string, 0, len(solverNames))
	for _, n := range solverNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MarshalText implements encoding.TextMarshaler.
func (s Solver) MarshalText() ([]byte, error) {
	if _, ok := solverNames[s]; !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownSolver, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Solver) UnmarshalText(b []byte) error {
	v, err := ParseSolver(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Options tunes the solvers. Zero values select defaults.
type Options struct {
	// MaxIterations caps major iterations (Nelder-Mead), hops (basin hopping),
	// generations (differential evolution) or annealing steps (dual annealing).
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	// MaxEvaluations caps objective evaluations across the whole solve.
	MaxEvaluations int `yaml:"max_evaluations,omitempty" json:"max_evaluations,omitempty"`
	// Tolerance is the local convergence threshold, or the relative
	// population spread for differential evolution.
	Tolerance float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	Seed      int64   `yaml:"seed,omitempty" json:"seed,omitempty"`
	// LocalMaxIterations caps each Nelder-Mead search run inside a global solver.
	LocalMaxIterations int `yaml:"local_max_iterations,omitempty" json:"local_max_iterations,omitempty"`

	// Basin hopping.
	StepSize    float64 `yaml:"step_size,omitempty" json:"step_size,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	// Differential evolution.
	PopSize       int        `yaml:"popsize,omitempty" json:"popsize,omitempty"`
	Mutation      [2]float64 `yaml:"mutation,omitempty" json:"mutation,omitempty"`
	Recombination float64    `yaml:"recombination,omitempty" json:"recombination,omitempty"`
	NoPolish      bool       `yaml:"no_polish,omitempty" json:"no_polish,omitempty"`

	// Dual annealing.
	InitialTemp      float64 `yaml:"initial_temp,omitempty" json:"initial_temp,omitempty"`
	RestartTempRatio float64 `yaml:"restart_temp_ratio,omitempty" json:"restart_temp_ratio,omitempty"`
	Visit            float64 `yaml:"visit,omitempty" json:"visit,omitempty"`
	Accept           float64 `yaml:"accept,omitempty" json:"accept,omitempty"`
	NoLocalSearch    bool    `yaml:"no_local_search,omitempty" json:"no_local_search,omitempty"`

	SkipUncertainty bool              `yaml:"skip_uncertainty,omitempty" json:"skip_uncertainty,omitempty"`
	Uncertainty     UncertaintyConfig `yaml:"uncertainty,omitempty" json:"uncertainty,omitempty"`
}

// withDefaults fills zero fields for solver s.
func (o Options) withDefaults(s Solver) Options {
	if o.MaxIterations == 0 {
		switch s {
		case NelderMead:
			o.MaxIterations = 20000
		case BasinHopping:
			o.MaxIterations = 100
		case DifferentialEvolution, DualAnnealing:
			o.MaxIterations = 1000
		}
	}
	if o.Tolerance == 0 {
		if s == DifferentialEvolution {
			o.Tolerance = 0.01
		} else {
			o.Tolerance = 1e-12
		}
	}
	if o.LocalMaxIterations == 0 {
		o.LocalMaxIterations = 2000
	}
	if o.StepSize == 0 {
		o.StepSize = 0.5
	}
	if o.Temperature == 0 {
		o.Temperature = 1
	}
	if o.PopSize == 0 {
		o.PopSize = 15
	}
	if o.Mutation == [2]float64{} {
		o.Mutation = [2]float64{0.5, 1}
	}
	if o.Recombination == 0 {
		o.Recombination = 0.7
	}
	if o.InitialTemp == 0 {
		o.InitialTemp = 5230
	}
	if o.RestartTempRatio == 0 {
		o.RestartTempRatio = 2e-5
	}
	if o.Visit == 0 {
		o.Visit = 2.62
	}
	if o.Accept == 0 {
		o.Accept = -5
	}
	o.Uncertainty = o.Uncertainty.withDefaults()
	return o
}

// Validate checks option ranges. Zero values are accepted as "use the default".
func (o Options) Validate() error {
	switch {
	case o.MaxIterations < 0:
		return fmt.Errorf("max_iterations must be non-negative, got %d", o.MaxIterations)
	case o.LocalMaxIterations < 0:
		return fmt.Errorf("local_max_iterations must be non-negative, got %d", o.LocalMaxIterations)
	case o.MaxEvaluations < 0:
		return fmt.Errorf("max_evaluations must be non-negative, got %d", o.MaxEvaluations)
	case o.Tolerance < 0:
		return fmt.Errorf("tolerance must be non-negative, got %v", o.Tolerance)
	case o.PopSize < 0:
		return fmt.Errorf("popsize must be non-negative, got %d", o.PopSize)
	case o.Mutation[0] < 0 || o.Mutation[1] > 2 || o.Mutation[0] > o.Mutation[1]:
		return fmt.Errorf("mutation must satisfy 0 <= lo <= hi <= 2, got %v", o.Mutation)
	case o.Recombination < 0 || o.Recombination > 1:
		return fmt.Errorf("recombination must be in [0, 1], got %v", o.Recombination)
	case o.Visit != 0 && (o.Visit <= 1 || o.Visit >= 3):
		return fmt.Errorf("visit must be in (1, 3), got %v", o.Visit)
	case o.Accept != 0 && (o.Accept <= -1e4 || o.Accept > -5):
		return fmt.Errorf("accept must be in (-1e4, -5], got %v", o.Accept)
	case o.StepSize < 0:
		return fmt.Errorf("step_size must be non-negative, got %v", o.StepSize)
	case o.Temperature < 0:
		return fmt.Errorf("temperature must be non-negative, got %v", o.Temperature)
	case o.InitialTemp < 0:
		return fmt.Errorf("initial_temp must be non-negative, got %v", o.InitialTemp)
	}
	return o.Uncertainty.Validate()
}
