// Package testutil provides shared test infrastructure for the etmc packages.
// It consolidates geometry fixtures and float assertion helpers used across
// the sim/ and sim/fit/ test packages.
package testutil

import (
	"math"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertSliceEqual compares two float slices element-wise with relative tolerance.
func AssertSliceEqual(t *testing.T, name string, want, got []float64, relTol float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("%s: length %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		AssertFloat64Equal(t, name, want[i], got[i], relTol)
	}
}

// TwelveSiteDistances are the donor-species distances (Å) of the fixture shell
// used by the Monte Carlo mean test: four shells of three sites each.
var TwelveSiteDistances = []float64{
	3.5, 3.5, 3.5,
	4.1, 4.1, 4.1,
	5.0, 5.0, 5.0,
	6.2, 6.2, 6.2,
}

// TwelveSiteR0 is the nearest same-species distance of the fixture shell.
const TwelveSiteR0 = 3.5

// Linspace returns n evenly spaced samples over [start, stop].
func Linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
