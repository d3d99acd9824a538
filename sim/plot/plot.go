// Package plot renders decay transients, fitted curves and interaction-sum
// histograms with gonum/plot.
package plot

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// TraceView is anything that can be drawn as a measured transient.
type TraceView interface {
	Label() string
	Samples() (x, y []float64)
}

// Figure is one chart. Add series, then Save.
type Figure struct {
	p      *plot.Plot
	logY   bool
	series int
}

// FigureOption configures a Figure.
type FigureOption func(*Figure)

// WithLogY draws intensities on a logarithmic axis. Non-positive samples are
// dropped from every series.
func WithLogY() FigureOption {
	return func(f *Figure) { f.logY = true }
}

// NewFigure creates an empty chart.
func NewFigure(title, xLabel, yLabel string, opts ...FigureOption) *Figure {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	f := &Figure{p: p}
	for _, opt := range opts {
		opt(f)
	}
	if f.logY {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	return f
}

func (f *Figure) points(x, y []float64) (plotter.XYs, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("series has %d x values but %d y values", len(x), len(y))
	}
	pts := make(plotter.XYs, 0, len(x))
	dropped := 0
	for i := range x {
		if f.logY && y[i] <= 0 {
			dropped++
			continue
		}
		pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
	}
	if dropped > 0 {
		logrus.Debugf("log axis: dropped %d non-positive samples", dropped)
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("series has no drawable points")
	}
	return pts, nil
}

func (f *Figure) nextColor() int {
	i := f.series
	f.series++
	return i
}

// Transient adds measured samples as a scatter series.
func (f *Figure) Transient(label string, x, y []float64) error {
	pts, err := f.points(x, y)
	if err != nil {
		return fmt.Errorf("transient %q: %w", label, err)
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("transient %q: %w", label, err)
	}
	s.GlyphStyle.Color = plotutil.Color(f.nextColor())
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(1.5)
	f.p.Add(s)
	f.p.Legend.Add(label, s)
	return nil
}

// TransientTrace adds t as a scatter series.
func (f *Figure) TransientTrace(t TraceView) error {
	x, y := t.Samples()
	return f.Transient(t.Label(), x, y)
}

// Fit adds a model curve as a line series.
func (f *Figure) Fit(label string, x, y []float64) error {
	pts, err := f.points(x, y)
	if err != nil {
		return fmt.Errorf("fit %q: %w", label, err)
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("fit %q: %w", label, err)
	}
	l.Color = plotutil.Color(f.nextColor())
	l.Width = vg.Points(1)
	f.p.Add(l)
	f.p.Legend.Add(label, l)
	return nil
}

// Histogram adds the distribution of values over bins equal-width bins.
func (f *Figure) Histogram(label string, values []float64, bins int) error {
	if len(values) == 0 {
		return fmt.Errorf("histogram %q: no values", label)
	}
	if bins <= 0 {
		return fmt.Errorf("histogram %q: bins must be positive, got %d", label, bins)
	}
	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return fmt.Errorf("histogram %q: %w", label, err)
	}
	h.FillColor = plotutil.Color(f.nextColor())
	f.p.Add(h)
	f.p.Legend.Add(label, h)
	return nil
}

// Save writes the figure; the format follows the file extension.
func (f *Figure) Save(path string, width, height vg.Length) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png", ".svg", ".pdf", ".jpg", ".jpeg", ".eps", ".tif", ".tiff":
	default:
		return fmt.Errorf("unsupported plot format %q", ext)
	}
	if err := f.p.Save(width, height, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	logrus.Infof("wrote plot %s", path)
	return nil
}
