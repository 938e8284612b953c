package analytics

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"bullbear/internal/domain"
)

// CycleStats summarises the bull and bear markets found in a series.
type CycleStats struct {
	// Counts
	Segments    int
	BullMarkets int
	BearMarkets int

	// Moves in percent. Bear declines are positive numbers.
	AverageBullChange float64
	MaxBullChange     float64
	AverageBearChange float64
	MaxBearChange     float64

	// Time
	AverageBullDuration time.Duration
	AverageBearDuration time.Duration
	TotalDuration       time.Duration
	BullTimeShare       float64 // Fraction of TotalDuration spent in bull markets

	Longest *domain.Segment
}

// AnalyzeCycles calculates cycle statistics from segments. Empty input gives
// zero stats.
func AnalyzeCycles(segments []domain.Segment) *CycleStats {
	stats := &CycleStats{}
	if len(segments) == 0 {
		return stats
	}

	var bullChanges, bearChanges []float64
	var bullDurations, bearDurations []float64
	var longest domain.Segment

	for i, seg := range segments {
		stats.Segments++
		d := seg.Duration()
		stats.TotalDuration += d

		switch seg.Kind {
		case domain.Bull:
			stats.BullMarkets++
			bullChanges = append(bullChanges, seg.ChangePct())
			bullDurations = append(bullDurations, float64(d))
		case domain.Bear:
			stats.BearMarkets++
			bearChanges = append(bearChanges, seg.ChangePct())
			bearDurations = append(bearDurations, float64(d))
		}

		if i == 0 || d > longest.Duration() {
			longest = seg
		}
	}

	if len(bullChanges) > 0 {
		stats.AverageBullChange = stat.Mean(bullChanges, nil)
		stats.MaxBullChange = floats.Max(bullChanges)
		stats.AverageBullDuration = time.Duration(stat.Mean(bullDurations, nil))
	}
	if len(bearChanges) > 0 {
		stats.AverageBearChange = stat.Mean(bearChanges, nil)
		stats.MaxBearChange = floats.Max(bearChanges)
		stats.AverageBearDuration = time.Duration(stat.Mean(bearDurations, nil))
	}
	if stats.TotalDuration > 0 {
		stats.BullTimeShare = floats.Sum(bullDurations) / float64(stats.TotalDuration)
	}

	stats.Longest = &longest
	return stats
}
