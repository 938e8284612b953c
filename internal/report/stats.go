package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"bullbear/internal/analytics"
	"bullbear/internal/sweep"
)

// WriteStats writes cycle statistics as an aligned table.
func WriteStats(w io.Writer, stats *analytics.CycleStats) error {
	if stats == nil {
		stats = &analytics.CycleStats{}
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Cycle statistics:")
	fmt.Fprintf(tw, "Segments\t%d\n", stats.Segments)
	fmt.Fprintf(tw, "Bull markets\t%d\n", stats.BullMarkets)
	fmt.Fprintf(tw, "Bear markets\t%d\n", stats.BearMarkets)
	fmt.Fprintf(tw, "Average bull change\t%.2f%%\n", stats.AverageBullChange)
	fmt.Fprintf(tw, "Max bull change\t%.2f%%\n", stats.MaxBullChange)
	fmt.Fprintf(tw, "Average bear change\t%.2f%%\n", stats.AverageBearChange)
	fmt.Fprintf(tw, "Max bear change\t%.2f%%\n", stats.MaxBearChange)
	fmt.Fprintf(tw, "Average bull duration\t%s\n", days(stats.AverageBullDuration))
	fmt.Fprintf(tw, "Average bear duration\t%s\n", days(stats.AverageBearDuration))
	fmt.Fprintf(tw, "Time in bull markets\t%.1f%%\n", stats.BullTimeShare*100)
	if stats.Longest != nil {
		fmt.Fprintf(tw, "Longest market\t%s %s to %s (%s)\n", stats.Longest.Kind,
			stats.Longest.Start.Time.Format(dateLayout), stats.Longest.End.Time.Format(dateLayout),
			days(stats.Longest.Duration()))
	}
	return tw.Flush()
}

// WriteSweep writes one row per threshold of a sweep.
func WriteSweep(w io.Writer, results []sweep.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Threshold\tSegments\tBull\tBear\tAvg bull %\tAvg bear %\tBull time %\t")
	for _, r := range results {
		stats := r.Stats
		if stats == nil {
			stats = &analytics.CycleStats{}
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\t%.2f\t%.1f\t\n",
			ThresholdLabel(r.Threshold), r.Segments, stats.BullMarkets, stats.BearMarkets,
			stats.AverageBullChange, stats.AverageBearChange, stats.BullTimeShare*100)
	}
	return tw.Flush()
}

func days(d time.Duration) string {
	return fmt.Sprintf("%.1f days", d.Hours()/24)
}
