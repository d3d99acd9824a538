package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gonum.org/v1/plot/vg"

	"github.com/etmc-sim/etmc/sim"
	"github.com/etmc-sim/etmc/sim/plot"
)

// SimulationSpec is one cache-checked Monte Carlo run, as given on the
// command line or inside an experiment file.
type SimulationSpec struct {
	Radius        float64 `yaml:"radius"`
	Concentration float64 `yaml:"concentration"` // percent
	Interaction   string  `yaml:"interaction"`
	Iterations    int     `yaml:"iterations"`
	Intrinsic     bool    `yaml:"intrinsic,omitempty"`
	Seed          int64   `yaml:"seed,omitempty"`
}

// Request converts s into a SingleCrossRequest.
func (s SimulationSpec) Request() (sim.SingleCrossRequest, error) {
	it, err := sim.ParseInteractionType(s.Interaction)
	if err != nil {
		return sim.SingleCrossRequest{}, err
	}
	return sim.SingleCrossRequest{
		Radius:           s.Radius,
		ConcentrationPct: s.Concentration,
		Interaction:      it,
		Iterations:       s.Iterations,
		Intrinsic:        s.Intrinsic,
	}, nil
}

// runSimulation loads the geometry and runs one simulation through the configured cache.
func runSimulation(ctx context.Context, geometryPath string, spec SimulationSpec, workers int) (*sim.SimulationResult, error) {
	geom, err := sim.LoadStaticGeometry(geometryPath)
	if err != nil {
		return nil, err
	}
	req, err := spec.Request()
	if err != nil {
		return nil, err
	}
	store, release, err := openStore()
	if err != nil {
		return nil, err
	}
	defer release()
	sampler := sim.NewSampler(sim.NewSeed(spec.Seed), sim.WithWorkers(workers))
	return sim.NewInteraction(geom, store, sampler).SimSingleCross(ctx, req)
}

var (
	simGeometry   string
	simSpec       SimulationSpec
	simWorkers    int
	simOutput     string
	simPlot       string
	simPlotBins   int
	simShowConfig bool
)

// simulateCmd runs one single cross-relaxation simulation and prints summary statistics.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate interaction sums around the central ion (cached)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simGeometry == "" {
			return fmt.Errorf("--geometry is required")
		}
		if simShowConfig {
			return showConfig()
		}
		res, err := runSimulation(cmd.Context(), simGeometry, simSpec, simWorkers)
		if err != nil {
			return err
		}
		stats := sim.Summarize(res.Sums)
		out := struct {
			Key   string       `json:"key"`
			Stats sim.SumStats `json:"stats"`
		}{res.Key.Canonical(), stats}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		if simOutput != "" {
			idx := make([]float64, len(res.Sums))
			for i := range idx {
				idx[i] = float64(i)
			}
			if err := writeColumnsFile(simOutput, []string{"iteration", "interaction_sum"}, idx, res.Sums); err != nil {
				return fmt.Errorf("writing sums: %w", err)
			}
		}
		if simPlot != "" {
			fig := plot.NewFigure("Interaction sums", "interaction sum", "count")
			if err := fig.Histogram(string(res.Key.Interaction), res.Sums, simPlotBins); err != nil {
				return err
			}
			if err := fig.Save(simPlot, 6*vg.Inch, 4*vg.Inch); err != nil {
				return err
			}
		}
		return nil
	},
}

// showConfig prints one random doped configuration without touching the cache.
func showConfig() error {
	geom, err := sim.LoadStaticGeometry(simGeometry)
	if err != nil {
		return err
	}
	shell, err := sim.NewCandidateShell(geom, simSpec.Radius)
	if err != nil {
		return err
	}
	doped := sim.NewSampler(sim.NewSeed(simSpec.Seed)).Dope(shell, simSpec.Concentration/100)
	logrus.Infof("%d of %d candidate sites doped", len(doped), len(shell.Sites))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Candidates int        `json:"candidates"`
		Doped      []sim.Site `json:"doped"`
	}{len(shell.Sites), doped})
}

// addSimulationFlags registers the flags describing one simulation.
func addSimulationFlags(fs *pflag.FlagSet, spec *SimulationSpec) {
	fs.Float64Var(&spec.Radius, "radius", 10, "Shell radius (same unit as site distances)")
	fs.Float64Var(&spec.Concentration, "concentration", 5, "Acceptor concentration in percent")
	fs.StringVar(&spec.Interaction, "interaction", "DD", "Multipole interaction (DD, DQ, QQ)")
	fs.IntVar(&spec.Iterations, "iterations", 50000, "Number of Monte Carlo iterations")
	fs.BoolVar(&spec.Intrinsic, "intrinsic", false, "Use raw 1/d^s terms instead of (r0/d)^s")
	fs.Int64Var(&spec.Seed, "seed", 42, "Seed for the Monte Carlo sampler")
}

func init() {
	simulateCmd.Flags().StringVar(&simGeometry, "geometry", "", "Geometry YAML file")
	addSimulationFlags(simulateCmd.Flags(), &simSpec)
	simulateCmd.Flags().IntVar(&simWorkers, "workers", 0, "Sampler goroutines (0 = number of CPUs)")
	simulateCmd.Flags().StringVar(&simOutput, "output", "", "Write the interaction sums as CSV ('-' for stdout)")
	simulateCmd.Flags().StringVar(&simPlot, "plot", "", "Write a histogram of the sums (png, svg, pdf)")
	simulateCmd.Flags().IntVar(&simPlotBins, "plot-bins", 50, "Histogram bins")
	simulateCmd.Flags().BoolVar(&simShowConfig, "show-config", false, "Print one random doped configuration and exit")

	rootCmd.AddCommand(simulateCmd)
}
