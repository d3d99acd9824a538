package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/etmc-sim/etmc/sim"
	"github.com/etmc-sim/etmc/sim/fit"
)

// TraceConfig describes one measured transient and where its interaction
// sums come from: a CSV of sums, or a simulation against the experiment's
// geometry.
type TraceConfig struct {
	Name            string          `yaml:"name"`
	File            string          `yaml:"file"`
	TimeColumn      int             `yaml:"time_column,omitempty"`
	IntensityColumn *int            `yaml:"intensity_column,omitempty"` // default 1
	Weight          float64         `yaml:"weight,omitempty"`
	Decimation      int             `yaml:"decimation,omitempty"`
	Binding         fit.Binding     `yaml:"binding"`
	Sums            string          `yaml:"sums,omitempty"`
	Simulation      *SimulationSpec `yaml:"simulation,omitempty"`
}

// Experiment is the YAML description of a joint fit.
type Experiment struct {
	Geometry   string           `yaml:"geometry,omitempty"`
	Solver     fit.Solver       `yaml:"solver"`
	Model      string           `yaml:"model,omitempty"`
	AutoWeight bool             `yaml:"auto_weight,omitempty"`
	Guess      fit.ParameterSet `yaml:"guess"`
	Bounds     fit.Bounds       `yaml:"bounds,omitempty"`
	Options    fit.Options      `yaml:"options,omitempty"`
	Traces     []TraceConfig    `yaml:"traces"`
}

// LoadExperiment reads an experiment file with strict field checking.
// Relative paths inside it are resolved against the file's directory.
func LoadExperiment(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment: %w", err)
	}
	var exp Experiment
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&exp); err != nil {
		return nil, fmt.Errorf("parsing experiment %s: %w", path, err)
	}
	exp.resolvePaths(filepath.Dir(path))
	if err := exp.Validate(); err != nil {
		return nil, fmt.Errorf("experiment %s: %w", path, err)
	}
	return &exp, nil
}

func (e *Experiment) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	e.Geometry = abs(e.Geometry)
	for i := range e.Traces {
		e.Traces[i].File = abs(e.Traces[i].File)
		e.Traces[i].Sums = abs(e.Traces[i].Sums)
	}
}

// Validate checks the experiment is complete before any data is read.
func (e *Experiment) Validate() error {
	if len(e.Traces) == 0 {
		return fmt.Errorf("no traces")
	}
	if len(e.Guess) == 0 {
		return fmt.Errorf("guess is required")
	}
	if _, err := sim.ParseModelKind(e.Model); err != nil {
		return err
	}
	if err := e.Options.Validate(); err != nil {
		return err
	}
	if e.Solver.RequiresBounds() && len(e.Bounds) == 0 {
		return fmt.Errorf("%w: solver %s", fit.ErrBoundsRequired, e.Solver)
	}
	seen := make(map[string]bool, len(e.Traces))
	for i, t := range e.Traces {
		name := t.Name
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("trace %d: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("trace %q: duplicate name", name)
		}
		seen[name] = true
		if t.File == "" {
			return fmt.Errorf("trace %q: file is required", name)
		}
		if err := t.Binding.Validate(); err != nil {
			return fmt.Errorf("trace %q: %w", name, err)
		}
		if (t.Sums == "") == (t.Simulation == nil) {
			return fmt.Errorf("trace %q: exactly one of sums or simulation is required", name)
		}
		if t.Simulation != nil && e.Geometry == "" {
			return fmt.Errorf("trace %q: simulation requires a geometry", name)
		}
		if t.Weight < 0 || t.Decimation < 0 {
			return fmt.Errorf("trace %q: weight and decimation must be non-negative", name)
		}
		if t.TimeColumn < 0 || t.intensityColumn() < 0 {
			return fmt.Errorf("trace %q: column indices must be non-negative", name)
		}
	}
	return nil
}

func (t TraceConfig) intensityColumn() int {
	if t.IntensityColumn == nil {
		return 1
	}
	return *t.IntensityColumn
}
