// Package csvloader reads and writes price series in the semicolon separated
// export format of Nasdaq Nordic (a "sep=;" preamble line, then a header with
// Date and Closingprice columns).
package csvloader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bullbear/internal/domain"
	"bullbear/internal/ports"
)

const (
	dateColumn  = "date"
	priceColumn = "closingprice"
)

// dateLayouts are tried in order when parsing the Date column.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
}

// Stats describes what happened to the raw rows while parsing.
type Stats struct {
	Rows         int // Data rows read after the header
	BadDate      int // Rows dropped because the date could not be parsed
	BadPrice     int // Rows dropped because the price was missing or not a number
	ZeroPrice    int // Rows dropped because the price was zero or negative
	Observations int // Rows kept
}

// Dropped returns the total number of discarded rows.
func (s Stats) Dropped() int {
	return s.BadDate + s.BadPrice + s.ZeroPrice
}

// Parse reads a semicolon separated series. Rows with an invalid date or a
// zero/invalid price are dropped and the rest is sorted by date (stable, so
// rows sharing a date keep their file order).
func Parse(r io.Reader) ([]domain.Observation, Stats, error) {
	var stats Stats

	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	dateIdx, priceIdx := -1, -1
	// The header is either the first line or follows a one line preamble.
	for line := 0; line < 2 && dateIdx < 0; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("reading header: %w", err)
		}
		dateIdx, priceIdx = headerIndexes(record)
	}
	if dateIdx < 0 || priceIdx < 0 {
		return nil, stats, fmt.Errorf("%w: missing Date/Closingprice header", ports.ErrInvalidInput)
	}

	observations := make([]domain.Observation, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("reading row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++

		if dateIdx >= len(record) || priceIdx >= len(record) {
			stats.BadPrice++
			continue
		}
		date, ok := parseDate(record[dateIdx])
		if !ok {
			stats.BadDate++
			continue
		}
		price, err := ParsePrice(record[priceIdx])
		if err != nil {
			stats.BadPrice++
			continue
		}
		if price <= 0 {
			stats.ZeroPrice++
			continue
		}
		observations = append(observations, domain.Observation{Time: date, Price: price})
	}

	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].Time.Before(observations[j].Time)
	})
	stats.Observations = len(observations)
	return observations, stats, nil
}

// ParsePrice parses a price cell, ignoring "," thousands separators.
func ParsePrice(cell string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty price")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", cell, err)
	}
	return d.InexactFloat64(), nil
}

func parseDate(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func headerIndexes(record []string) (dateIdx, priceIdx int) {
	dateIdx, priceIdx = -1, -1
	for i, name := range record {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case dateColumn:
			dateIdx = i
		case priceColumn:
			priceIdx = i
		}
	}
	return dateIdx, priceIdx
}

// Source is a ports.SeriesSource backed by a CSV file.
type Source struct {
	Path   string
	Symbol string
	Logger ports.Logger
}

// Name identifies the source.
func (s *Source) Name() string { return "csv" }

// LoadSeries reads and parses the file.
func (s *Source) LoadSeries(ctx context.Context) (*domain.Series, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open series file '%s': %w", s.Path, err)
	}
	defer f.Close()

	observations, stats, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse series file '%s': %w", s.Path, err)
	}
	if s.Logger != nil {
		s.Logger.Debug(ctx, "Series file parsed", map[string]interface{}{
			"path":      s.Path,
			"rows":      stats.Rows,
			"kept":      stats.Observations,
			"badDate":   stats.BadDate,
			"badPrice":  stats.BadPrice,
			"zeroPrice": stats.ZeroPrice,
		})
	}

	symbol := s.Symbol
	if symbol == "" {
		symbol = SymbolFromPath(s.Path)
	}
	return &domain.Series{Symbol: symbol, Source: s.Name(), Observations: observations}, nil
}

// SymbolFromPath derives an instrument name from an export file name such as
// "_SE0000744195_2024-07-03.csv" -> "SE0000744195".
func SymbolFromPath(path string) string {
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".csv")
	base = strings.Trim(base, "_")
	if i := strings.Index(base, "_"); i > 0 {
		base = base[:i]
	}
	return base
}
