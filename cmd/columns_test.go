package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColumns_HeaderAndComments(t *testing.T) {
	in := "# exported by the spectrometer\ntime, intensity, ref\n0, 10, 1\n0.5, 8.5, 1\n1, 7, 1\n"

	cols, err := parseColumns(strings.NewReader(in), "data.csv", 0, 1)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0.5, 1}, cols[0])
	assert.Equal(t, []float64{10, 8.5, 7}, cols[1])
}

func TestParseColumns_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		cols []int
	}{
		{"bad value after first row", "0,1\n1,x\n", []int{0, 1}},
		{"missing column", "0,1\n1,2\n", []int{0, 3}},
		{"header only", "time,intensity\n", []int{0, 1}},
		{"empty", "", []int{0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseColumns(strings.NewReader(tc.in), "x.csv", tc.cols...)
			assert.Error(t, err)
		})
	}
}

func TestWriteColumns_ReadsBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeColumns(&buf, []string{"time", "intensity"}, []float64{0, 0.25}, []float64{3, 1e-9}))

	assert.Equal(t, "time,intensity\n0,3\n0.25,1e-09\n", buf.String())
	cols, err := parseColumns(&buf, "round", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1e-9}, cols[1])
}
