package fit

import (
	"fmt"
	"math"
)

// UncertaintyConfig tunes the per-parameter perturbation search.
type UncertaintyConfig struct {
	// Lower and Upper bound the target relative WRSS increase (exclusive).
	Lower float64 `yaml:"lower,omitempty" json:"lower,omitempty"`
	Upper float64 `yaml:"upper,omitempty" json:"upper,omitempty"`
	// InitialFactor is the first perturbation, as a multiple of the fitted value.
	InitialFactor float64 `yaml:"initial_factor,omitempty" json:"initial_factor,omitempty"`
	Shrink        float64 `yaml:"shrink,omitempty" json:"shrink,omitempty"`
	Grow          float64 `yaml:"grow,omitempty" json:"grow,omitempty"`
	MaxIterations int     `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

// DefaultUncertaintyConfig searches for a 4-5% WRSS increase starting at 5x.
func DefaultUncertaintyConfig() UncertaintyConfig {
	return UncertaintyConfig{Lower: 0.04, Upper: 0.05, InitialFactor: 5, Shrink: 0.5, Grow: 1.5, MaxIterations: 1000}
}

func (c UncertaintyConfig) withDefaults() UncertaintyConfig {
	d := DefaultUncertaintyConfig()
	if c.Lower == 0 && c.Upper == 0 {
		c.Lower, c.Upper = d.Lower, d.Upper
	}
	if c.InitialFactor == 0 {
		c.InitialFactor = d.InitialFactor
	}
	if c.Shrink == 0 {
		c.Shrink = d.Shrink
	}
	if c.Grow == 0 {
		c.Grow = d.Grow
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = d.MaxIterations
	}
	return c
}

// Validate checks the band and step factors. Zero values mean "default".
func (c UncertaintyConfig) Validate() error {
	if c.Lower < 0 || (c.Upper != 0 && c.Upper <= c.Lower) {
		return fmt.Errorf("uncertainty band must satisfy 0 <= lower < upper, got (%v, %v)", c.Lower, c.Upper)
	}
	if c.Shrink < 0 || c.Shrink >= 1 {
		return fmt.Errorf("uncertainty shrink must be in (0, 1), got %v", c.Shrink)
	}
	if c.Grow != 0 && c.Grow <= 1 {
		return fmt.Errorf("uncertainty grow must be above 1, got %v", c.Grow)
	}
	if c.MaxIterations < 0 || c.InitialFactor < 0 {
		return fmt.Errorf("uncertainty max_iterations and initial_factor must be non-negative")
	}
	return nil
}

// Uncertainty outcome reasons.
const (
	ReasonConverged     = "converged"
	ReasonZeroValue     = "fitted value is zero"
	ReasonZeroObjective = "objective at optimum is zero or non-finite"
	ReasonIterationCap  = "iteration cap reached before the target band"
)

// UncertaintyDetail reports how one parameter's uncertainty was obtained.
type UncertaintyDetail struct {
	Value       float64 `json:"value"`
	Uncertainty float64 `json:"uncertainty"`
	Factor      float64 `json:"factor"`
	RelChange   float64 `json:"rel_change"` // relative WRSS increase at the reported factor
	Iterations  int     `json:"iterations"`
	Converged   bool    `json:"converged"`
	Reason      string  `json:"reason"`
}

// EstimateUncertainties perturbs each parameter alone, holding the others at
// the optimum, until the relative WRSS increase lies strictly inside
// (cfg.Lower, cfg.Upper). The reported uncertainty is |value·factor| at the
// last step, non-negative whatever the sign of the fitted value. This ignores parameter correlations. Degenerate cases are reported
// per parameter and never fail the whole estimate.
func EstimateUncertainties(objective func(x []float64) float64, x []float64, reg *Registry, cfg UncertaintyConfig) (map[string]float64, map[string]UncertaintyDetail) {
	cfg = cfg.withDefaults()
	uncertainties := make(map[string]float64, reg.Len())
	details := make(map[string]UncertaintyDetail, reg.Len())

	base := objective(x)
	trial := append([]float64(nil), x...)
	for i, name := range reg.Names() {
		d := searchOne(objective, trial, i, base, cfg)
		details[name] = d
		uncertainties[name] = d.Uncertainty
	}
	return uncertainties, details
}

func searchOne(objective func([]float64) float64, trial []float64, i int, base float64, cfg UncertaintyConfig) UncertaintyDetail {
	v := trial[i]
	d := UncertaintyDetail{Value: v, Factor: cfg.InitialFactor}
	if v == 0 {
		d.Reason = ReasonZeroValue
		return d
	}
	if !(base > 0) || math.IsInf(base, 0) {
		d.Uncertainty = math.Abs(v * d.Factor)
		d.Reason = ReasonZeroObjective
		return d
	}
	defer func() { trial[i] = v }()

	factor := cfg.InitialFactor
	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		trial[i] = v + v*factor
		rel := math.Abs(objective(trial)-base) / base
		d.Factor, d.RelChange, d.Iterations = factor, rel, iter
		if rel > cfg.Lower && rel < cfg.Upper {
			d.Converged = true
			d.Reason = ReasonConverged
			break
		}
		if rel > cfg.Upper || math.IsNaN(rel) {
			factor *= cfg.Shrink
		} else {
			factor *= cfg.Grow
		}
	}
	if !d.Converged {
		d.Reason = ReasonIterationCap
	}
	d.Uncertainty = math.Abs(v * d.Factor)
	return d
}
