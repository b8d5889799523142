// Package report renders the model comparison: the accuracy bar chart and
// the text summaries printed after training.
package report

import (
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// Chart layout.
const (
	ChartWidth  = 12 * vg.Inch
	ChartHeight = 6 * vg.Inch

	ChartTitle  = "Model Comparison - Accuracy Scores"
	ChartXLabel = "Models"
	ChartYLabel = "Accuracy"
)

// Entry is one bar of the chart.
type Entry struct {
	Name     string
	Accuracy float64
}

var barColor = color.RGBA{R: 0x4c, G: 0x72, B: 0xb0, A: 0xff}

// NewAccuracyChart builds the bar chart of accuracies, one bar per entry in order.
func NewAccuracyChart(entries []Entry) (*plot.Plot, error) {
	if len(entries) == 0 {
		return nil, errors.NewValueError("report.NewAccuracyChart", "no entries to plot")
	}

	values := make(plotter.Values, len(entries))
	names := make([]string, len(entries))
	for i, e := range entries {
		if math.IsNaN(e.Accuracy) || e.Accuracy < 0 || e.Accuracy > 1 {
			return nil, errors.NewValidationError("accuracy", "must be in [0, 1]", e.Accuracy)
		}
		values[i] = e.Accuracy
		names[i] = e.Name
	}

	p := plot.New()
	p.Title.Text = ChartTitle
	p.X.Label.Text = ChartXLabel
	p.Y.Label.Text = ChartYLabel
	p.Y.Min = 0
	p.Y.Max = 1

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build bar chart")
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0
	p.Add(plotter.NewGrid(), bars)
	p.NominalX(names...)

	// ラベルを45度回転し、右端を目盛りに揃える
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter

	return p, nil
}

// WriteAccuracyChart writes the chart as a PNG image to w.
func WriteAccuracyChart(w io.Writer, entries []Entry) error {
	p, err := NewAccuracyChart(entries)
	if err != nil {
		return err
	}
	c := vgimg.New(ChartWidth, ChartHeight)
	p.Draw(draw.New(c))
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write chart")
	}
	return nil
}

// SaveAccuracyChart writes the chart as a PNG image to path, creating the
// parent directory when needed.
func SaveAccuracyChart(path string, entries []Entry) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", path)
		}
	}()
	return WriteAccuracyChart(f, entries)
}
