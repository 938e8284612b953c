package domain

import "time"

// PricePoint is a price observed at a moment in time.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Observation is a single entry of a price series.
type Observation struct {
	Time  time.Time // Timestamp of the observation (closing date for daily data)
	Price float64   // Closing price, always > 0 once loaded
}

// Point returns the observation as a PricePoint.
func (o Observation) Point() PricePoint {
	return PricePoint{Time: o.Time, Price: o.Price}
}

// Series is a chronologically sorted price history for one instrument.
type Series struct {
	Symbol       string
	Source       string // Where the series came from (e.g. "csv", "binance")
	Observations []Observation
}

// SeriesSummary describes the extent of a series.
type SeriesSummary struct {
	Rows     int
	First    time.Time
	Last     time.Time
	MinPrice float64
	MaxPrice float64
}

// Summary returns the date range, price range and row count of the series.
// The zero value is returned for an empty series.
func (s *Series) Summary() SeriesSummary {
	var sum SeriesSummary
	if s == nil || len(s.Observations) == 0 {
		return sum
	}
	sum.Rows = len(s.Observations)
	sum.MinPrice = s.Observations[0].Price
	sum.MaxPrice = s.Observations[0].Price
	sum.First = s.Observations[0].Time
	sum.Last = s.Observations[0].Time
	for _, o := range s.Observations[1:] {
		if o.Price < sum.MinPrice {
			sum.MinPrice = o.Price
		}
		if o.Price > sum.MaxPrice {
			sum.MaxPrice = o.Price
		}
		if o.Time.Before(sum.First) {
			sum.First = o.Time
		}
		if o.Time.After(sum.Last) {
			sum.Last = o.Time
		}
	}
	return sum
}

// Window returns the observations whose time lies within [from, to].
func Window(observations []Observation, from, to time.Time) []Observation {
	out := make([]Observation, 0)
	for _, o := range observations {
		if o.Time.Before(from) || o.Time.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out
}
