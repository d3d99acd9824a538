package plot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"
)

type fakeTrace struct{}

func (fakeTrace) Label() string { return "measured" }
func (fakeTrace) Samples() (x, y []float64) {
	return []float64{0, 1, 2, 3}, []float64{10, 5, 2.5, 1.25}
}

func TestFigure_TransientAndFit_SavesPNGAndSVG(t *testing.T) {
	dir := t.TempDir()
	f := NewFigure("decay", "time", "intensity", WithLogY())

	require.NoError(t, f.TransientTrace(fakeTrace{}))
	require.NoError(t, f.Fit("model", []float64{0, 1, 2, 3}, []float64{10, 5, 2.5, 1.25}))

	for _, name := range []string{"fit.png", "fit.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, f.Save(path, 4*vg.Inch, 3*vg.Inch))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), name)
	}
}

func TestFigure_LogAxis_DropsNonPositive(t *testing.T) {
	f := NewFigure("decay", "t", "I", WithLogY())

	// one positive point survives
	assert.NoError(t, f.Transient("mixed", []float64{0, 1, 2}, []float64{-1, 0, 3}))
	// nothing drawable
	assert.Error(t, f.Transient("empty", []float64{0, 1}, []float64{0, -2}))
}

func TestFigure_Errors(t *testing.T) {
	f := NewFigure("x", "x", "y")

	assert.Error(t, f.Transient("bad", []float64{0, 1}, []float64{1}))
	assert.Error(t, f.Histogram("none", nil, 10))
	assert.Error(t, f.Histogram("zero bins", []float64{1, 2}, 0))
	assert.Error(t, f.Save(filepath.Join(t.TempDir(), "plot.bmp"), vg.Inch, vg.Inch))
}

func TestFigure_Histogram_Saves(t *testing.T) {
	f := NewFigure("sums", "interaction sum", "count")
	require.NoError(t, f.Histogram("DD", []float64{0, 0.1, 0.1, 0.4, 0.9, 1.2}, 4))

	path := filepath.Join(t.TempDir(), "hist.png")
	require.NoError(t, f.Save(path, 4*vg.Inch, 3*vg.Inch))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
