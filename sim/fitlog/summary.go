package fitlog

import "math"

// Summary aggregates statistics over recorded fits.
type Summary struct {
	TotalFits          int
	SucceededCount     int
	FailedCount        int
	BestID             string
	BestWRSS           float64
	MeanEvaluations    float64
	SolverDistribution map[string]int // solver name → number of fits
}

// Summarize computes aggregate statistics from records.
// Safe for nil or empty input (BestWRSS is +Inf then).
func Summarize(records []Record) *Summary {
	summary := &Summary{
		BestWRSS:           math.Inf(1),
		SolverDistribution: make(map[string]int),
	}
	if len(records) == 0 {
		return summary
	}

	totalEvals := 0
	for _, r := range records {
		summary.TotalFits++
		if r.Success {
			summary.SucceededCount++
		} else {
			summary.FailedCount++
		}
		summary.SolverDistribution[r.Solver]++
		totalEvals += r.Evaluations
		if r.WRSS < summary.BestWRSS {
			summary.BestWRSS = r.WRSS
			summary.BestID = r.ID
		}
	}
	summary.MeanEvaluations = float64(totalEvals) / float64(len(records))
	return summary
}
