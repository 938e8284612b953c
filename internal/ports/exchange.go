package ports

import (
	"context"
	"time"

	"bullbear/internal/domain"
)

// KlineClient retrieves historical candlestick data from an exchange.
type KlineClient interface {
	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error

	// GetKlinesRange fetches all klines for symbol/interval between start and end.
	// The result is ordered by open time.
	GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Kline, error)
}
