package csvloader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"bullbear/internal/domain"
)

// Write writes observations in the format Parse reads.
func Write(w io.Writer, observations []domain.Observation) error {
	if _, err := io.WriteString(w, "sep=;\n"); err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	writer.Comma = ';'

	if err := writer.Write([]string{"Date", "Closingprice"}); err != nil {
		return err
	}
	for _, o := range observations {
		if err := writer.Write([]string{
			formatDate(o.Time),
			decimal.NewFromFloat(o.Price).String(),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile writes observations to filename, creating its directory.
func WriteFile(filename string, observations []domain.Observation) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", filename, err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := Write(file, observations); err != nil {
		return fmt.Errorf("failed to write series to '%s': %w", filename, err)
	}
	return file.Close()
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
