// Package sweep runs the segmenter over a range of thresholds.
package sweep

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"bullbear/internal/analytics"
	"bullbear/internal/domain"
	"bullbear/internal/ports"
	"bullbear/internal/segmenter"
)

// Result holds the outcome of segmenting the series at one threshold.
type Result struct {
	Threshold float64
	Segments  int
	Stats     *analytics.CycleStats
}

// Sweeper evaluates thresholds concurrently.
type Sweeper struct {
	Workers int // Maximum concurrent evaluations, defaults to GOMAXPROCS
	Logger  ports.Logger
}

// rangeEpsilon absorbs floating point accumulation without admitting a
// value past max.
const rangeEpsilon = 1e-9

// Range returns the thresholds from min to max inclusive in increments of step.
func Range(min, max, step float64) ([]float64, error) {
	if step <= 0 || math.IsNaN(step) {
		return nil, fmt.Errorf("%w: sweep step %v must be positive", ports.ErrInvalidInput, step)
	}
	if math.IsNaN(min) || math.IsNaN(max) {
		return nil, fmt.Errorf("%w: sweep bounds must be numbers", ports.ErrInvalidInput)
	}
	if min > max {
		return nil, fmt.Errorf("%w: sweep min %v exceeds max %v", ports.ErrInvalidInput, min, max)
	}

	var thresholds []float64
	for i := 0; ; i++ {
		value := min + float64(i)*step
		if value > max+rangeEpsilon {
			break
		}
		thresholds = append(thresholds, math.Round(value*1e9)/1e9)
	}
	return thresholds, nil
}

// Run segments the observations at each threshold and returns the results
// sorted by threshold. Invalid input fails before any work is started.
func (s *Sweeper) Run(ctx context.Context, observations []domain.Observation, thresholds []float64) ([]Result, error) {
	for _, th := range thresholds {
		if err := segmenter.Validate(observations, th); err != nil {
			return nil, err
		}
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	resultChan := make(chan Result, len(thresholds))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, th := range thresholds {
		wg.Add(1)
		go func(th float64) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			if ctx.Err() != nil {
				return
			}

			segments, err := segmenter.Segment(observations, th, segmenter.WithoutCrossings())
			if err != nil {
				return
			}
			resultChan <- Result{
				Threshold: th,
				Segments:  len(segments),
				Stats:     analytics.AnalyzeCycles(segments),
			}
		}(th)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]Result, 0, len(thresholds))
	for result := range resultChan {
		results = append(results, result)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("threshold sweep interrupted: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Threshold < results[j].Threshold
	})

	if s.Logger != nil {
		s.Logger.Debug(ctx, "Threshold sweep completed", map[string]interface{}{
			"thresholds": len(thresholds),
			"workers":    workers,
		})
	}
	return results, nil
}
