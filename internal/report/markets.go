// Package report renders analysis results as text and exports them.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"

	"bullbear/internal/domain"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

// DefaultReportFile is where SaveMarkets writes when no path is configured.
const DefaultReportFile = "market_analysis_results.txt"

// ThresholdLabel formats a threshold fraction as a percentage label, e.g. "20%".
func ThresholdLabel(threshold float64) string {
	return decimal.NewFromFloat(threshold).Shift(2).String() + "%"
}

// WriteSummary writes the data summary block.
func WriteSummary(w io.Writer, s domain.SeriesSummary) error {
	_, err := fmt.Fprintf(w, "Data summary:\nDate range: %s to %s\nPrice range: %.2f to %.2f\nNumber of rows: %d\n",
		s.First.Format(timestampLayout), s.Last.Format(timestampLayout), s.MinPrice, s.MaxPrice, s.Rows)
	return err
}

// WriteMarkets writes the market report: one headline per segment followed
// by a detail block with the threshold crossing and the price range within
// the segment window.
func WriteMarkets(w io.Writer, observations []domain.Observation, segments []domain.Segment, threshold float64) error {
	bw := bufio.NewWriter(w)
	label := ThresholdLabel(threshold)

	fmt.Fprintln(bw, "Identified Bull and Bear Markets:")
	for i, seg := range segments {
		n := i + 1
		change := seg.ChangePct()
		fmt.Fprintf(bw, "%s Market %d: %s to %s (Start: %.2f, End: %.2f, Change: %.2f%%)\n",
			seg.Kind, n, seg.Start.Time.Format(dateLayout), seg.End.Time.Format(dateLayout),
			seg.Start.Price, seg.End.Price, change)

		fmt.Fprintf(bw, "\nDebug info for %s Market %d:\n", seg.Kind, n)
		fmt.Fprintf(bw, "Start date: %s, End date: %s\n",
			seg.Start.Time.Format(timestampLayout), seg.End.Time.Format(timestampLayout))
		fmt.Fprintf(bw, "Start price: %.2f, End price: %.2f\n", seg.Start.Price, seg.End.Price)
		if seg.Crossing != nil {
			fmt.Fprintf(bw, "%s Threshold date: %s\n", label, seg.Crossing.Time.Format(dateLayout))
			fmt.Fprintf(bw, "%s Threshold price: %.2f\n", label, seg.Crossing.Price)
		} else {
			fmt.Fprintf(bw, "%s Threshold date: N/A\n", label)
			fmt.Fprintf(bw, "%s Threshold price: N/A\n", label)
		}

		minPrice, maxPrice := priceRange(observations, seg)
		fmt.Fprintf(bw, "Min price in period: %.2f\n", minPrice)
		fmt.Fprintf(bw, "Max price in period: %.2f\n", maxPrice)
		fmt.Fprintf(bw, "Percentage change: %.2f%%\n\n", change)
	}
	return bw.Flush()
}

// SaveMarkets writes the market report to path, creating parent directories.
func SaveMarkets(path string, observations []domain.Observation, segments []domain.Segment, threshold float64) error {
	if path == "" {
		path = DefaultReportFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := WriteMarkets(file, observations, segments, threshold); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return file.Close()
}

// priceRange returns the lowest and highest price observed within the
// segment window. The boundaries fall back to the segment endpoints when the
// window holds no observations.
func priceRange(observations []domain.Observation, seg domain.Segment) (float64, float64) {
	window := domain.Window(observations, seg.Start.Time, seg.End.Time)
	if len(window) == 0 {
		return min(seg.Start.Price, seg.End.Price), max(seg.Start.Price, seg.End.Price)
	}
	prices := make([]float64, len(window))
	for i, o := range window {
		prices[i] = o.Price
	}
	return floats.Min(prices), floats.Max(prices)
}
