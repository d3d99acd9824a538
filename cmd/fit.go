package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/etmc-sim/etmc/sim"
	"github.com/etmc-sim/etmc/sim/fit"
	"github.com/etmc-sim/etmc/sim/fitlog"
	"github.com/etmc-sim/etmc/sim/plot"
)

var (
	fitSolver   string
	fitRecord   string
	fitPlot     string
	fitLogLevel string
	fitLogY     bool
)

// fitCmd fits an experiment file's traces jointly and prints the result as JSON.
var fitCmd = &cobra.Command{
	Use:   "fit EXPERIMENT.yaml",
	Short: "Fit the energy-transfer model to measured transients",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !fitlog.IsValidLevel(fitLogLevel) {
			return fmt.Errorf("unknown --fit-log level %q", fitLogLevel)
		}
		exp, err := LoadExperiment(args[0])
		if err != nil {
			return err
		}
		if fitSolver != "" {
			if exp.Solver, err = fit.ParseSolver(fitSolver); err != nil {
				return err
			}
		}

		traces, err := buildTraces(cmd.Context(), exp)
		if err != nil {
			return err
		}
		kind, _ := sim.ParseModelKind(exp.Model)
		sinks := fitlog.Multi{fitlog.NewLogrusSink(nil, fitlog.Level(fitLogLevel))}
		if fitRecord != "" {
			sinks = append(sinks, fitlog.NewJSONFileSink(fitRecord))
		}
		opts := []fit.OptimiserOption{fit.WithModel(kind), fit.WithSink(sinks)}
		if exp.AutoWeight {
			opts = append(opts, fit.WithAutoWeights())
		}
		bindings := make([]fit.Binding, len(exp.Traces))
		for i, t := range exp.Traces {
			bindings[i] = t.Binding
		}
		opt, err := fit.NewOptimiser(traces, bindings, opts...)
		if err != nil {
			return err
		}

		res, err := opt.Fit(cmd.Context(), fit.Request{
			Guess:   exp.Guess,
			Bounds:  exp.Bounds,
			Solver:  exp.Solver,
			Options: exp.Options,
		})
		if err != nil {
			return err
		}
		if !res.Success {
			logrus.Warnf("solver did not converge: %s", res.Message)
		}
		if err := printFitResult(res); err != nil {
			return err
		}
		if fitPlot != "" {
			return plotFit(opt, res, fitPlot)
		}
		return nil
	},
}

// buildTraces reads every trace file and attaches its interaction sums.
func buildTraces(ctx context.Context, exp *Experiment) ([]*fit.Trace, error) {
	traces := make([]*fit.Trace, 0, len(exp.Traces))
	for _, tc := range exp.Traces {
		cols, err := readColumns(tc.File, tc.TimeColumn, tc.intensityColumn())
		if err != nil {
			return nil, fmt.Errorf("trace %q: %w", tc.Name, err)
		}
		topts := []fit.TraceOption{fit.WithDecimation(tc.Decimation)}
		if tc.Weight > 0 {
			topts = append(topts, fit.WithWeight(tc.Weight))
		}

		var tr *fit.Trace
		if tc.Simulation != nil {
			res, err := runSimulation(ctx, exp.Geometry, *tc.Simulation, 0)
			if err != nil {
				return nil, fmt.Errorf("trace %q: %w", tc.Name, err)
			}
			tr, err = fit.TraceFromResult(tc.Name, cols[0], cols[1], res, topts...)
			if err != nil {
				return nil, err
			}
		} else {
			sums, err := readColumns(tc.Sums, 1)
			if err != nil {
				return nil, fmt.Errorf("trace %q: %w", tc.Name, err)
			}
			tr, err = fit.NewTrace(tc.Name, cols[0], cols[1], sums[0], topts...)
			if err != nil {
				return nil, err
			}
		}
		logrus.Infof("trace %s: %d samples, %d interaction sums", tr.Name, tr.Len(), len(tr.Radial))
		traces = append(traces, tr)
	}
	return traces, nil
}

// fitOutput is the JSON shape printed by fit.
type fitOutput struct {
	Solver        string                           `json:"solver"`
	Success       bool                             `json:"success"`
	Message       string                           `json:"message"`
	WRSS          float64                          `json:"wrss"`
	Iterations    int                              `json:"iterations"`
	Evaluations   int                              `json:"evaluations"`
	Params        fit.ParameterSet                 `json:"params"`
	Uncertainties map[string]float64               `json:"uncertainties,omitempty"`
	Details       map[string]fit.UncertaintyDetail `json:"uncertainty_details,omitempty"`
	RecordID      string                           `json:"record_id,omitempty"`
}

func printFitResult(res *fit.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(fitOutput{
		Solver:        res.Solver.String(),
		Success:       res.Success,
		Message:       res.Message,
		WRSS:          res.WRSS,
		Iterations:    res.Iterations,
		Evaluations:   res.Evaluations,
		Params:        res.Params,
		Uncertainties: res.Uncertainties,
		Details:       res.UncertaintyDetails,
		RecordID:      res.RecordID,
	})
}

// plotFit draws every trace with its fitted curve into one figure.
func plotFit(opt *fit.Optimiser, res *fit.Result, path string) error {
	curves, err := opt.Curves(res.Params)
	if err != nil {
		return err
	}
	var figOpts []plot.FigureOption
	if fitLogY {
		figOpts = append(figOpts, plot.WithLogY())
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fig := plot.NewFigure(title, "time", "intensity", figOpts...)
	for i, t := range opt.Traces() {
		if err := fig.TransientTrace(t); err != nil {
			return err
		}
		if err := fig.Fit(t.Name+" fit", t.Time, curves[i]); err != nil {
			return err
		}
	}
	return fig.Save(path, 8*vg.Inch, 5*vg.Inch)
}

func init() {
	fitCmd.Flags().StringVar(&fitSolver, "solver", "", "Override the experiment's solver ("+strings.Join(fit.ValidSolverNames(), ", ")+")")
	fitCmd.Flags().StringVar(&fitRecord, "record", "", "Append a JSON record of the fit to this file")
	fitCmd.Flags().StringVar(&fitPlot, "plot", "", "Write traces and fitted curves to an image (png, svg, pdf)")
	fitCmd.Flags().BoolVar(&fitLogY, "log-y", true, "Use a logarithmic intensity axis in --plot")
	fitCmd.Flags().StringVar(&fitLogLevel, "fit-log", string(fitlog.LevelSummary), "Fit record logging (none, summary, full)")

	rootCmd.AddCommand(fitCmd)
}
