package domain

import "time"

// MarketKind classifies a segment of the series.
type MarketKind string

const (
	Bull MarketKind = "Bull" // Uptrend, bounded by a trough and the following peak
	Bear MarketKind = "Bear" // Downtrend, bounded by a peak and the following trough
)

// Segment is one bull or bear market identified in a price series.
type Segment struct {
	Kind  MarketKind `json:"kind"`
	Start PricePoint `json:"start"` // Prior trough for a bull market, prior peak for a bear market
	End   PricePoint `json:"end"`   // New peak/trough, or the last observation for the open segment

	// Crossing is the observation at which the threshold breach confirmed
	// this market's trend. Nil when the detail level omits it.
	Crossing *PricePoint `json:"crossing,omitempty"`
}

// ChangePct returns the magnitude of the move in percent. Bear declines are
// reported as positive numbers.
func (s Segment) ChangePct() float64 {
	if s.Start.Price == 0 {
		return 0
	}
	if s.Kind == Bear {
		return (s.Start.Price - s.End.Price) / s.Start.Price * 100
	}
	return (s.End.Price - s.Start.Price) / s.Start.Price * 100
}

// Duration returns the time between the start and the end of the segment.
func (s Segment) Duration() time.Duration {
	return s.End.Time.Sub(s.Start.Time)
}

// Contains reports whether t falls inside the segment window, boundaries included.
func (s Segment) Contains(t time.Time) bool {
	return !t.Before(s.Start.Time) && !t.After(s.End.Time)
}
