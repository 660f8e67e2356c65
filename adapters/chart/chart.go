// Package chart renders PNG charts with gonum/plot.
package chart

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"abstkit/internal/errors"

	"golang.org/x/image/font/opentype"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	width  = 10 * vg.Inch
	height = 6 * vg.Inch
)

var fontMu sync.Mutex

// RegisterFont loads a TrueType/OpenType file and makes it the default face
// for every chart drawn afterwards. Needed for Japanese labels.
func RegisterFont(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read font %s", path)
	}
	face, err := opentype.Parse(data)
	if err != nil {
		return errors.Wrapf(err, "failed to parse font %s", path)
	}

	name := filepath.Base(path)
	f := font.Font{Typeface: font.Typeface(name)}

	fontMu.Lock()
	defer fontMu.Unlock()
	font.DefaultCache.Add([]font.Face{{Font: f, Face: face}})
	plot.DefaultFont = f
	plotter.DefaultFont = f
	return nil
}

func save(p *plot.Plot, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := p.Save(width, height, path); err != nil {
		return errors.Wrapf(err, "failed to save chart %s", path)
	}
	return nil
}

// LogLog draws ys against xs on logarithmic axes. Non-positive points are
// dropped since they have no logarithm.
func LogLog(path, title, xLabel, yLabel string, xs, ys []float64) error {
	if len(xs) != len(ys) {
		return errors.InvalidInput(fmt.Sprintf("x/y length mismatch: %d != %d", len(xs), len(ys)))
	}
	pts := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if xs[i] > 0 && ys[i] > 0 {
			pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
		}
	}
	if len(pts) == 0 {
		return errors.InvalidInput("no positive points to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "failed to build line")
	}
	p.Add(line)
	return save(p, path)
}

// RankBars draws one bar per value, labelled by 1-based rank
func RankBars(path, title string, values []float64) error {
	labels := make([]string, len(values))
	for i := range values {
		labels[i] = fmt.Sprint(i + 1)
	}
	return bars(path, title, labels, values, 0)
}

// LabelBars draws one labelled bar per count with slanted tick labels
func LabelBars(path, title string, labels []string, counts []int) error {
	values := make([]float64, len(counts))
	for i, c := range counts {
		values[i] = float64(c)
	}
	return bars(path, title, labels, values, math.Pi/4)
}

func bars(path, title string, labels []string, values []float64, rotation float64) error {
	if len(labels) != len(values) {
		return errors.InvalidInput(fmt.Sprintf("label/value length mismatch: %d != %d", len(labels), len(values)))
	}
	if len(values) == 0 {
		return errors.InvalidInput("no bars to plot")
	}

	p := plot.New()
	p.Title.Text = title
	bc, err := plotter.NewBarChart(plotter.Values(values), vg.Points(18))
	if err != nil {
		return errors.Wrap(err, "failed to build bar chart")
	}
	bc.LineStyle.Width = vg.Length(0)
	p.Add(bc)
	p.NominalX(labels...)
	if rotation != 0 {
		p.X.Tick.Label.Rotation = rotation
		p.X.Tick.Label.XAlign = draw.XRight
		p.X.Tick.Label.YAlign = draw.YCenter
	}
	return save(p, path)
}
