package binanceclient

import (
	"context"
	"fmt"
	"time"

	"bullbear/internal/domain"
	"bullbear/internal/ports"
)

// SeriesSource serves the closing prices of a kline range as a price series.
type SeriesSource struct {
	Client   ports.KlineClient
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time
}

// Name identifies the source.
func (s *SeriesSource) Name() string { return "binance" }

// LoadSeries downloads the configured range. Klines with a non-positive close
// are skipped, mirroring the zero filter applied to CSV files.
func (s *SeriesSource) LoadSeries(ctx context.Context) (*domain.Series, error) {
	klines, err := s.Client.GetKlinesRange(ctx, s.Symbol, s.Interval, s.Start, s.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s klines: %w", s.Symbol, s.Interval, err)
	}
	return &domain.Series{
		Symbol:       s.Symbol,
		Source:       s.Name(),
		Observations: Observations(klines),
	}, nil
}

// Observations converts klines to closing price observations.
func Observations(klines []*domain.Kline) []domain.Observation {
	out := make([]domain.Observation, 0, len(klines))
	for _, k := range klines {
		if k == nil || k.Close <= 0 {
			continue
		}
		out = append(out, k.Observation())
	}
	return out
}
