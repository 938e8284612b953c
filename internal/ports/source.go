package ports

import (
	"context"

	"bullbear/internal/domain"
)

// SeriesSource supplies a complete price series for analysis.
// Implementations must return observations sorted by time with strictly
// positive prices.
type SeriesSource interface {
	// Name identifies the source in logs and stored runs (e.g. "csv").
	Name() string
	// LoadSeries reads the whole series.
	LoadSeries(ctx context.Context) (*domain.Series, error)
}
