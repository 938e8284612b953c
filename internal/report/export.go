package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"bullbear/internal/domain"
	"bullbear/internal/ports"
)

// Export formats.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Export encodes the run in the given format. An empty format means JSON.
func Export(w io.Writer, run *domain.AnalysisRun, format string) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("failed to encode run as JSON: %w", err)
		}
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("failed to encode run as msgpack: %w", err)
		}
	default:
		return fmt.Errorf("%w: unsupported export format %q", ports.ErrInvalidInput, format)
	}
	return nil
}

// ExportFile writes the run to path, creating parent directories.
func ExportFile(path string, run *domain.AnalysisRun, format string) error {
	var buf bytes.Buffer
	if err := Export(&buf, run, format); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
