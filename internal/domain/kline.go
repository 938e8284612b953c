package domain

import "time"

// Kline represents a single candlestick fetched from an exchange.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Trading symbol
	Interval  string    // Kline interval (e.g., "1d", "1w")
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Observation converts the kline into a closing price observation dated at
// the start of its interval, so daily klines line up with calendar dates.
func (k *Kline) Observation() Observation {
	return Observation{Time: k.OpenTime, Price: k.Close}
}
