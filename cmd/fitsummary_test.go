package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etmc-sim/etmc/sim/fitlog"
)

func TestWriteFitSummary_AggregatesRecordedFits(t *testing.T) {
	// GIVEN three fits appended by the record sink
	path := filepath.Join(t.TempDir(), "fits.jsonl")
	sink := fitlog.NewJSONFileSink(path)
	for _, r := range []fitlog.Record{
		{ID: "fit-a", Solver: "nelder-mead", Success: true, WRSS: 0.5, Evaluations: 100},
		{ID: "fit-b", Solver: "dual_annealing", Success: true, WRSS: 0.125, Evaluations: 300},
		{ID: "fit-c", Solver: "nelder-mead", Success: false, WRSS: 2, Evaluations: 20},
	} {
		require.NoError(t, sink.Record(r))
	}

	// WHEN summarised
	var out bytes.Buffer
	require.NoError(t, writeFitSummary(&out, path))

	// THEN counts, the best fit and the solver split are reported
	got := out.String()
	assert.Regexp(t, `fits\s+3\n`, got)
	assert.Regexp(t, `succeeded\s+2\n`, got)
	assert.Regexp(t, `failed\s+1\n`, got)
	assert.Regexp(t, `best\s+fit-b\s+\(wrss 0\.125\)`, got)
	assert.Regexp(t, `mean evaluations\s+140\.0\n`, got)
	assert.Regexp(t, `solver dual_annealing\s+1\n`, got)
	assert.Regexp(t, `solver nelder-mead\s+2\n`, got)
}

func TestWriteFitSummary_EmptyAndMissing(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.jsonl", "")

	var out bytes.Buffer
	require.NoError(t, writeFitSummary(&out, empty))
	assert.Contains(t, out.String(), "no fits recorded")

	assert.Error(t, writeFitSummary(&out, filepath.Join(dir, "missing.jsonl")))
}
