// Package plot renders intensity histograms with their Otsu thresholds.
package plot

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ironsheep/otsu-mcp/internal/threshold"
)

const (
	defaultWidth  = 1024
	defaultHeight = 512
)

// Options controls the rendered chart.
type Options struct {
	// Title is drawn above the chart. Empty means no title.
	Title string

	// Width and Height are the PNG size in pixels. Zero selects 1024x512.
	Width, Height int

	// Variance overlays the two-class between-class variance curve on a
	// secondary Y axis.
	Variance bool
}

// createVerticalLine creates a two point series marking x from 0 to top.
func createVerticalLine(x, top float64, c drawing.Color) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Name:    fmt.Sprintf("t=%.0f", x),
		XValues: []float64{x, x},
		YValues: []float64{0, top},
		Style: chart.Style{
			StrokeColor:     c,
			StrokeWidth:     2,
			StrokeDashArray: []float64{5.0, 5.0},
		},
	}
}

// HistogramPNG renders h as a filled intensity profile with one dashed
// vertical line per threshold and returns the PNG bytes.
func HistogramPNG(h threshold.Histogram, thresholds []int, opts Options) ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	for _, t := range thresholds {
		if t < 0 || t > threshold.Levels-2 {
			return nil, fmt.Errorf("threshold %d outside [0,%d]", t, threshold.Levels-2)
		}
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	xvalues := make([]float64, threshold.Levels)
	yvalues := make([]float64, threshold.Levels)
	var top float64
	for level, n := range h {
		xvalues[level] = float64(level)
		yvalues[level] = float64(n)
		if yvalues[level] > top {
			top = yvalues[level]
		}
	}

	graph := chart.Chart{
		Title:  opts.Title,
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			Name: "Intensity",
			Range: &chart.ContinuousRange{
				Min: 0.0,
				Max: float64(threshold.Levels - 1),
			},
		},
		YAxis: chart.YAxis{
			Name: "Pixels",
			Range: &chart.ContinuousRange{
				Min: 0.0,
				Max: top,
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name: "histogram",
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					FillColor:   chart.ColorAlternateBlue,
				},
				XValues: xvalues,
				YValues: yvalues,
			},
		},
	}

	if opts.Variance {
		curve, err := threshold.VarianceCurve(h)
		if err != nil {
			return nil, err
		}
		var peak float64
		for _, v := range curve {
			if v > peak {
				peak = v
			}
		}
		if peak > 0 {
			graph.YAxisSecondary = chart.YAxis{
				Name: "Between-class variance",
				Range: &chart.ContinuousRange{
					Min: 0.0,
					Max: peak,
				},
			}
			graph.Series = append(graph.Series, chart.ContinuousSeries{
				Name:    "variance",
				YAxis:   chart.YAxisSecondary,
				XValues: xvalues[:len(curve)],
				YValues: curve,
				Style: chart.Style{
					StrokeColor: chart.ColorAlternateGreen,
				},
			})
		}
	}

	for _, t := range thresholds {
		graph.Series = append(graph.Series, createVerticalLine(float64(t), top, chart.ColorRed))
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render histogram: %w", err)
	}
	return buf.Bytes(), nil
}
