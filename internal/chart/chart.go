// Package chart renders one chart per identified market.
package chart

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"bullbear/internal/domain"
	"bullbear/internal/report"
)

var (
	bullColor      = color.RGBA{G: 128, A: 255}
	bearColor      = color.RGBA{R: 220, A: 255}
	thresholdColor = color.RGBA{B: 255, A: 255}
)

const (
	chartWidth  = 12 * vg.Inch
	chartHeight = 6 * vg.Inch
)

// TickFormat returns the date layout used on the time axis for a window of
// the given length.
func TickFormat(span time.Duration) string {
	const day = 24 * time.Hour
	switch {
	case span <= 90*day:
		return "2006-01-02"
	case span <= 730*day:
		return "2006-01"
	default:
		return "2006"
	}
}

// FileName returns the chart file name of the i-th (1-based) segment.
func FileName(seg domain.Segment, i int) string {
	return fmt.Sprintf("%s_market_%d.png", strings.ToLower(string(seg.Kind)), i)
}

// Render writes a PNG chart per segment into dir and returns the written paths.
func Render(dir string, observations []domain.Observation, segments []domain.Segment, threshold float64) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory '%s': %w", dir, err)
	}

	paths := make([]string, 0, len(segments))
	for i, seg := range segments {
		p, err := Chart(observations, seg, i+1, threshold)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, FileName(seg, i+1))
		if err := p.Save(chartWidth, chartHeight, path); err != nil {
			return paths, fmt.Errorf("failed to save chart %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Chart builds the plot of one segment: the price line over the segment
// window and, when known, the threshold crossing.
func Chart(observations []domain.Observation, seg domain.Segment, n int, threshold float64) (*plot.Plot, error) {
	window := domain.Window(observations, seg.Start.Time, seg.End.Time)
	if len(window) == 0 {
		window = []domain.Observation{
			{Time: seg.Start.Time, Price: seg.Start.Price},
			{Time: seg.End.Time, Price: seg.End.Price},
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s Market %d: %s to %s", seg.Kind, n,
		seg.Start.Time.Format("2006-01-02"), seg.End.Time.Format("2006-01-02"))
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Price"
	p.X.Tick.Marker = plot.TimeTicks{Format: TickFormat(seg.Duration())}
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(window))
	minPrice, maxPrice := window[0].Price, window[0].Price
	for i, o := range window {
		pts[i].X = unix(o.Time)
		pts[i].Y = o.Price
		minPrice = min(minPrice, o.Price)
		maxPrice = max(maxPrice, o.Price)
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build price line: %w", err)
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = bullColor
	if seg.Kind == domain.Bear {
		line.LineStyle.Color = bearColor
	}
	p.Add(line)
	p.Legend.Add(string(seg.Kind)+" Market", line)

	if seg.Crossing != nil {
		x := unix(seg.Crossing.Time)

		marker, err := plotter.NewScatter(plotter.XYs{{X: x, Y: seg.Crossing.Price}})
		if err != nil {
			return nil, fmt.Errorf("failed to build threshold marker: %w", err)
		}
		marker.GlyphStyle.Color = thresholdColor
		marker.GlyphStyle.Radius = vg.Points(4)
		marker.GlyphStyle.Shape = draw.CircleGlyph{}

		rule, err := plotter.NewLine(plotter.XYs{{X: x, Y: minPrice}, {X: x, Y: maxPrice}})
		if err != nil {
			return nil, fmt.Errorf("failed to build threshold rule: %w", err)
		}
		rule.LineStyle.Color = thresholdColor
		rule.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

		p.Add(rule, marker)
		p.Legend.Add(report.ThresholdLabel(threshold)+" Threshold Point", marker)
	}
	p.Legend.Top = true

	return p, nil
}

func unix(t time.Time) float64 {
	return float64(t.Unix())
}
