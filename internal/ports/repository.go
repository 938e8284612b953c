package ports

import (
	"context"

	"bullbear/internal/domain"
)

// RunRepository stores analysis runs together with their segments.
type RunRepository interface {
	// SaveRun persists the run and all of its segments atomically.
	SaveRun(ctx context.Context, run *domain.AnalysisRun) error
	// FindRun retrieves a run by ID, segments included.
	// Returns nil, nil if not found.
	FindRun(ctx context.Context, id string) (*domain.AnalysisRun, error)
	// ListRuns returns the most recent runs (without segments), newest first.
	// An empty symbol matches every symbol.
	ListRuns(ctx context.Context, symbol string, limit int) ([]*domain.AnalysisRun, error)
}
