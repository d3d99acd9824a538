// Package fitlog records completed fits for later comparison.
// This package has no dependencies on sim/fit; it stores pure data types.
package fitlog

import "time"

// Interval is a closed parameter bound.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// TraceInfo identifies one trace that took part in a fit.
type TraceInfo struct {
	Name       string   `json:"name"`
	Samples    int      `json:"samples"`
	Weight     float64  `json:"weight"`
	Decimation int      `json:"decimation,omitempty"`
	Source     string   `json:"source,omitempty"` // canonical simulation key
	Binding    []string `json:"binding"`          // parameter names in role order
}

// UncertaintyInfo reports how one parameter's uncertainty was found.
type UncertaintyInfo struct {
	Uncertainty float64 `json:"uncertainty"`
	Factor      float64 `json:"factor"`
	RelChange   float64 `json:"rel_change"`
	Iterations  int     `json:"iterations"`
	Converged   bool    `json:"converged"`
	Reason      string  `json:"reason"`
}

// Record captures a single optimisation run: what went in and what came out.
type Record struct {
	ID            string                     `json:"id"`
	InitialisedAt time.Time                  `json:"initialised_at"`
	FinishedAt    time.Time                  `json:"finished_at"`
	Solver        string                     `json:"solver"`
	Options       any                        `json:"options,omitempty"`
	Guess         map[string]float64         `json:"guess"`
	Bounds        map[string]Interval        `json:"bounds,omitempty"`
	Traces        []TraceInfo                `json:"traces"`
	Params        map[string]float64         `json:"params"`
	Uncertainties map[string]UncertaintyInfo `json:"uncertainties,omitempty"`
	Success       bool                       `json:"success"`
	Message       string                     `json:"message"`
	WRSS          float64                    `json:"wrss"`
	Iterations    int                        `json:"iterations"`
	Evaluations   int                        `json:"evaluations"`
}

// Duration is the wall time the fit took.
func (r Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.InitialisedAt)
}
