package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/etmc-sim/etmc/sim/fitlog"
)

// fitSummaryCmd aggregates the records that fit --record appended to a file.
var fitSummaryCmd = &cobra.Command{
	Use:   "fit-summary RECORDS.jsonl",
	Short: "Summarise fits recorded with fit --record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeFitSummary(os.Stdout, args[0])
	},
}

func writeFitSummary(out io.Writer, path string) error {
	records, err := fitlog.ReadJSONLines(path)
	if err != nil {
		return err
	}
	s := fitlog.Summarize(records)
	if s.TotalFits == 0 {
		_, err := fmt.Fprintf(out, "no fits recorded in %s\n", path)
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "fits\t%d\n", s.TotalFits)
	fmt.Fprintf(w, "succeeded\t%d\n", s.SucceededCount)
	fmt.Fprintf(w, "failed\t%d\n", s.FailedCount)
	fmt.Fprintf(w, "best\t%s\t(wrss %g)\n", s.BestID, s.BestWRSS)
	fmt.Fprintf(w, "mean evaluations\t%.1f\n", s.MeanEvaluations)

	solvers := make([]string, 0, len(s.SolverDistribution))
	for name := range s.SolverDistribution {
		solvers = append(solvers, name)
	}
	sort.Strings(solvers)
	for _, name := range solvers {
		fmt.Fprintf(w, "solver %s\t%d\n", name, s.SolverDistribution[name])
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(fitSummaryCmd)
}
