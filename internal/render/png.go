// Package render rasterizes chart figures to PNG for downloads and the CLI.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/visualiza/backend/internal/chart"
	"github.com/visualiza/backend/internal/models"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoRaster is returned for figures that only exist in the interactive page
// (3D scatters and tables).
var ErrNoRaster = errors.New("figure has no raster form")

const (
	fallbackWidth  = 1350
	fallbackHeight = 800
	maxBars        = 2000
)

// PNG draws fig. Bar, line, scatter and pie figures are supported.
func PNG(fig *chart.Figure) ([]byte, error) {
	if fig == nil || len(fig.Data) == 0 {
		return nil, errors.New("figure has no traces")
	}

	var buf bytes.Buffer
	var err error
	switch fig.Data[0].Type {
	case "bar":
		err = renderBars(fig, &buf)
	case "scatter":
		err = renderSeries(fig, &buf)
	case "pie":
		err = renderPie(fig, &buf)
	case "scatter3d", "table":
		return nil, fmt.Errorf("%s: %w", fig.Data[0].Type, ErrNoRaster)
	default:
		return nil, fmt.Errorf("unknown trace type %q", fig.Data[0].Type)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func size(l chart.Layout) (int, int) {
	w, h := l.Width, l.Height
	if w <= 0 {
		w = fallbackWidth
	}
	if h <= 0 {
		h = fallbackHeight
	}
	return w, h
}

// numbers converts an axis to floats. A non-numeric value is a
// configuration error: the chosen column cannot be drawn on a raster axis.
func numbers(values []any, axis string) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, ok := models.ToFloat(v)
		if !ok {
			return nil, &chart.ConfigurationError{
				Field:  axis,
				Reason: fmt.Sprintf("value %v at position %d is not numeric", v, i),
			}
		}
		out[i] = f
	}
	return out, nil
}

// span returns a non-empty range covering values.
func span(values ...[]float64) *gochart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, vs := range values {
		for _, v := range vs {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return &gochart.ContinuousRange{Min: 0, Max: 1}
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	return &gochart.ContinuousRange{Min: lo, Max: hi}
}

func renderBars(fig *chart.Figure, buf *bytes.Buffer) error {
	var bars []gochart.Value
	var ys []float64
	for i, tr := range fig.Data {
		values, err := numbers(tr.Y, "y")
		if err != nil {
			return err
		}
		color := gochart.GetDefaultColor(i)
		for j, v := range values {
			label := fmt.Sprint(tr.X[j])
			if tr.Name != "" {
				label = fmt.Sprintf("%s (%s)", label, tr.Name)
			}
			bars = append(bars, gochart.Value{
				Label: label,
				Value: v,
				Style: gochart.Style{FillColor: color, StrokeColor: color},
			})
		}
		ys = append(ys, values...)
	}
	if len(bars) == 0 {
		return errors.New("bar chart has no bars")
	}
	if len(bars) > maxBars {
		return fmt.Errorf("bar chart has %d bars; at most %d can be rasterized", len(bars), maxBars)
	}

	w, h := size(fig.Layout)
	barWidth := (w - 120) / (2 * len(bars))
	if barWidth > 60 {
		barWidth = 60
	}
	if barWidth < 1 {
		barWidth = 1
	}

	yRange := span(append(ys, 0))
	bc := gochart.BarChart{
		Title:      fig.Layout.Title.Text,
		Width:      w,
		Height:     h,
		BarWidth:   barWidth,
		BarSpacing: barWidth,
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		YAxis:      gochart.YAxis{Range: yRange},
		Bars:       bars,
	}
	return bc.Render(gochart.PNG, buf)
}

func renderSeries(fig *chart.Figure, buf *bytes.Buffer) error {
	var series []gochart.Series
	var allX, allY [][]float64
	var xName, yName string
	if fig.Layout.XAxis != nil {
		xName = fig.Layout.XAxis.Title.Text
	}
	if fig.Layout.YAxis != nil {
		yName = fig.Layout.YAxis.Title.Text
	}

	for i, tr := range fig.Data {
		ys, err := numbers(tr.Y, "y")
		if err != nil {
			return err
		}
		xs, err := numbers(tr.X, "x")
		if err != nil {
			// categorical x values are drawn at their row positions
			xs = make([]float64, len(tr.X))
			for j := range xs {
				xs[j] = float64(j)
			}
		}

		color := gochart.GetDefaultColor(i)
		style := gochart.Style{StrokeColor: color, StrokeWidth: 2}
		if tr.Mode == "markers" {
			style = pointStyle(color)
		}
		name := tr.Name
		if name == "" {
			name = yName
		}
		series = append(series, gochart.ContinuousSeries{Name: name, XValues: xs, YValues: ys, Style: style})
		allX = append(allX, xs)
		allY = append(allY, ys)
	}

	w, h := size(fig.Layout)
	ch := gochart.Chart{
		Title:      fig.Layout.Title.Text,
		Width:      w,
		Height:     h,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      gochart.XAxis{Name: xName, Range: span(allX...)},
		YAxis:      gochart.YAxis{Name: yName, Range: span(allY...)},
		Series:     series,
	}
	if len(series) > 1 {
		ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	}
	return ch.Render(gochart.PNG, buf)
}

// pointStyle draws points only, no connecting line.
func pointStyle(col drawing.Color) gochart.Style {
	return gochart.Style{
		StrokeColor: drawing.ColorTransparent,
		StrokeWidth: 0,
		DotWidth:    4,
		DotColor:    col,
	}
}

func renderPie(fig *chart.Figure, buf *bytes.Buffer) error {
	tr := fig.Data[0]
	values, err := numbers(tr.Values, "slice")
	if err != nil {
		return err
	}

	var slices []gochart.Value
	for i, v := range values {
		if v <= 0 {
			continue
		}
		slices = append(slices, gochart.Value{Label: fmt.Sprint(tr.Labels[i]), Value: v})
	}
	if len(slices) == 0 {
		return errors.New("pie chart has no positive slices")
	}

	w, h := size(fig.Layout)
	pc := gochart.PieChart{
		Title:  fig.Layout.Title.Text,
		Width:  w,
		Height: h,
		Values: slices,
	}
	return pc.Render(gochart.PNG, buf)
}
