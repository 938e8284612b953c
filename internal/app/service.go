package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"bullbear/config"
	"bullbear/internal/analytics"
	"bullbear/internal/chart"
	"bullbear/internal/domain"
	"bullbear/internal/ports"
	"bullbear/internal/report"
	"bullbear/internal/segmenter"
	"bullbear/internal/sweep"
)

// AnalysisService orchestrates loading a series, segmenting it and
// publishing the results.
type AnalysisService struct {
	cfg    *config.Config
	logger ports.Logger
	source ports.SeriesSource
	runs   ports.RunRepository // Optional, nil disables persistence

	out   io.Writer
	now   func() time.Time
	newID func() string
}

// NewAnalysisService creates a new application service instance.
func NewAnalysisService(
	cfg *config.Config,
	logger ports.Logger,
	source ports.SeriesSource,
	runs ports.RunRepository,
) (*AnalysisService, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || source == nil {
		return nil, fmt.Errorf("missing required dependencies for AnalysisService")
	}

	// Validate config values needed by service
	if math.IsNaN(cfg.Threshold) || cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		return nil, fmt.Errorf("%w: threshold must be between 0 and 1", ports.ErrConfigurationError)
	}

	return &AnalysisService{
		cfg:    cfg,
		logger: logger,
		source: source,
		runs:   runs,
		out:    os.Stdout,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// SetOutput redirects the console output (summaries and tables).
func (s *AnalysisService) SetOutput(w io.Writer) {
	s.out = w
}

// Run performs one full analysis and returns the resulting run.
func (s *AnalysisService) Run(ctx context.Context) (*domain.AnalysisRun, error) {
	series, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	segments, err := segmenter.Segment(series.Observations, s.cfg.Threshold)
	if err != nil {
		s.logger.Error(ctx, err, "Segmentation failed", map[string]interface{}{"symbol": series.Symbol})
		return nil, fmt.Errorf("failed to segment %s: %w", series.Symbol, err)
	}
	s.logger.Info(ctx, "Markets identified", map[string]interface{}{
		"symbol":    series.Symbol,
		"threshold": s.cfg.Threshold,
		"segments":  len(segments),
	})

	if err := report.SaveMarkets(s.cfg.ReportFile, series.Observations, segments, s.cfg.Threshold); err != nil {
		s.logger.Error(ctx, err, "Failed to save market report", map[string]interface{}{"path": s.cfg.ReportFile})
		return nil, err
	}
	s.logger.Debug(ctx, "Market report written", map[string]interface{}{"path": s.cfg.ReportFile})

	if s.cfg.SaveCharts {
		paths, err := chart.Render(s.cfg.ChartDir, series.Observations, segments, s.cfg.Threshold)
		if err != nil {
			s.logger.Error(ctx, err, "Failed to render charts", map[string]interface{}{"dir": s.cfg.ChartDir})
			return nil, err
		}
		s.logger.Info(ctx, "Charts saved", map[string]interface{}{"dir": s.cfg.ChartDir, "charts": len(paths)})
	}

	run := &domain.AnalysisRun{
		ID:           s.newID(),
		Symbol:       series.Symbol,
		Source:       series.Source,
		Threshold:    s.cfg.Threshold,
		Observations: len(series.Observations),
		CreatedAt:    s.now().UTC(),
		Segments:     segments,
	}

	if s.cfg.ExportFile != "" {
		if err := report.ExportFile(s.cfg.ExportFile, run, s.cfg.ExportFormat); err != nil {
			s.logger.Error(ctx, err, "Failed to export run", map[string]interface{}{"path": s.cfg.ExportFile})
			return nil, err
		}
		s.logger.Info(ctx, "Run exported", map[string]interface{}{"path": s.cfg.ExportFile, "format": s.cfg.ExportFormat})
	}

	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, run); err != nil {
			s.logger.Error(ctx, err, "Failed to persist run", map[string]interface{}{"runID": run.ID})
			return nil, fmt.Errorf("failed to persist run: %w", err)
		}
		s.logger.Info(ctx, "Run persisted", map[string]interface{}{"runID": run.ID})
	}

	if err := report.WriteStats(s.out, analytics.AnalyzeCycles(segments)); err != nil {
		return nil, fmt.Errorf("failed to write statistics: %w", err)
	}
	fmt.Fprintf(s.out, "Analysis complete. Results saved to '%s'\n", s.cfg.ReportFile)

	return run, nil
}

// Sweep segments the series over the configured threshold range and prints
// one row per threshold.
func (s *AnalysisService) Sweep(ctx context.Context) ([]sweep.Result, error) {
	thresholds, err := sweep.Range(s.cfg.SweepMin, s.cfg.SweepMax, s.cfg.SweepStep)
	if err != nil {
		return nil, err
	}

	series, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	sweeper := &sweep.Sweeper{Workers: s.cfg.SweepWorkers, Logger: s.logger}
	results, err := sweeper.Run(ctx, series.Observations, thresholds)
	if err != nil {
		s.logger.Error(ctx, err, "Threshold sweep failed", map[string]interface{}{"symbol": series.Symbol})
		return nil, err
	}

	if err := report.WriteSweep(s.out, results); err != nil {
		return nil, fmt.Errorf("failed to write sweep table: %w", err)
	}
	return results, nil
}

// History lists stored runs, newest first.
func (s *AnalysisService) History(ctx context.Context, symbol string, limit int) ([]*domain.AnalysisRun, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("%w: no run repository configured", ports.ErrConfigurationError)
	}
	runs, err := s.runs.ListRuns(ctx, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	for _, run := range runs {
		fmt.Fprintf(s.out, "%s  %s  %-14s %-8s threshold %s  %d observations\n",
			run.CreatedAt.Format(time.RFC3339), run.ID, run.Symbol, run.Source,
			report.ThresholdLabel(run.Threshold), run.Observations)
	}
	return runs, nil
}

// ShowRun prints one stored run as JSON.
func (s *AnalysisService) ShowRun(ctx context.Context, id string) (*domain.AnalysisRun, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("%w: no run repository configured", ports.ErrConfigurationError)
	}
	run, err := s.runs.FindRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find run %s: %w", id, err)
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
	}
	if err := report.Export(s.out, run, report.FormatJSON); err != nil {
		return nil, err
	}
	return run, nil
}

// load reads the series and prints its data summary.
func (s *AnalysisService) load(ctx context.Context) (*domain.Series, error) {
	series, err := s.source.LoadSeries(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load series", map[string]interface{}{"source": s.source.Name()})
		return nil, fmt.Errorf("failed to load series from %s: %w", s.source.Name(), err)
	}

	summary := series.Summary()
	if err := report.WriteSummary(s.out, summary); err != nil {
		return nil, fmt.Errorf("failed to write data summary: %w", err)
	}
	s.logger.Info(ctx, "Series loaded", map[string]interface{}{
		"symbol": series.Symbol,
		"source": series.Source,
		"rows":   summary.Rows,
		"from":   summary.First.Format("2006-01-02"),
		"to":     summary.Last.Format("2006-01-02"),
	})
	return series, nil
}
