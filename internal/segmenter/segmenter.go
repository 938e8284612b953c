// Package segmenter splits a price series into alternating bull and bear
// markets using a peak/trough drawdown threshold.
package segmenter

import (
	"fmt"
	"math"

	"bullbear/internal/domain"
	"bullbear/internal/ports"
)

// DefaultThreshold is the classic 20% rule.
const DefaultThreshold = 0.20

// Mode is the trend the machine currently believes in.
type Mode int

const (
	// ModeUndetermined holds until the first reversal is confirmed.
	ModeUndetermined Mode = iota
	ModeBull
	ModeBear
)

// String returns the string representation of the Mode.
func (m Mode) String() string {
	switch m {
	case ModeBull:
		return "Bull"
	case ModeBear:
		return "Bear"
	default:
		return "Undetermined"
	}
}

// Machine is the segmentation state machine. It is fed observations one by
// one and emits a segment each time a reversal closes the running trend.
// Input must already be validated; use Segment for the checked entry point.
type Machine struct {
	threshold float64
	mode      Mode
	peak      domain.PricePoint
	trough    domain.PricePoint
	last      domain.PricePoint
	crossing  *domain.PricePoint
}

// NewMachine seeds peak and trough with the first observation of the series.
func NewMachine(first domain.Observation, threshold float64) *Machine {
	p := first.Point()
	return &Machine{
		threshold: threshold,
		mode:      ModeUndetermined,
		peak:      p,
		trough:    p,
		last:      p,
	}
}

// Mode returns the current trend classification.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Step applies one observation. It returns the segment closed by this
// observation, if any. At most one segment is closed per observation.
func (m *Machine) Step(obs domain.Observation) (domain.Segment, bool) {
	p := obs.Point()
	m.last = p

	var closed domain.Segment
	var ok bool

	if m.mode != ModeBear {
		if p.Price > m.peak.Price {
			m.peak = p
		} else if p.Price <= m.peak.Price*(1-m.threshold) {
			if m.mode == ModeBull {
				closed, ok = m.segment(domain.Bull, m.trough, m.peak), true
			}
			m.mode = ModeBear
			m.trough = p
			m.setCrossing(p)
		}
	}

	// Re-checked with the mode left by the branch above. After a bear
	// reversal trough == p, so nothing below can fire for the same price.
	if m.mode != ModeBull {
		if p.Price < m.trough.Price {
			m.trough = p
		} else if p.Price >= m.trough.Price*(1+m.threshold) {
			if m.mode == ModeBear {
				closed, ok = m.segment(domain.Bear, m.peak, m.trough), true
			}
			m.mode = ModeBull
			m.peak = p
			m.setCrossing(p)
		}
	}

	return closed, ok
}

// Close ends the series and returns the still open segment, which always
// runs to the last observation. Nothing is returned while undetermined.
func (m *Machine) Close() (domain.Segment, bool) {
	switch m.mode {
	case ModeBull:
		return m.segment(domain.Bull, m.trough, m.last), true
	case ModeBear:
		return m.segment(domain.Bear, m.peak, m.last), true
	default:
		return domain.Segment{}, false
	}
}

func (m *Machine) setCrossing(p domain.PricePoint) {
	c := p
	m.crossing = &c
}

func (m *Machine) segment(kind domain.MarketKind, start, end domain.PricePoint) domain.Segment {
	seg := domain.Segment{Kind: kind, Start: start, End: end}
	if m.crossing != nil {
		c := *m.crossing
		seg.Crossing = &c
	}
	return seg
}

// Option adjusts the output of Segment.
type Option func(*options)

type options struct {
	withoutCrossings bool
}

// WithoutCrossings drops the threshold crossing from every segment, for
// consumers that only need the basic detail level.
func WithoutCrossings() Option {
	return func(o *options) { o.withoutCrossings = true }
}

// Segment classifies the observations into bull and bear markets.
//
// observations must be non-empty, sorted by time and hold strictly positive
// prices; threshold must lie in (0, 1). Violations fail with
// ports.ErrInvalidInput before any output is produced. A series in which no
// reversal is ever confirmed yields an empty result.
func Segment(observations []domain.Observation, threshold float64, opts ...Option) ([]domain.Segment, error) {
	if err := Validate(observations, threshold); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	m := NewMachine(observations[0], threshold)
	segments := make([]domain.Segment, 0)
	for _, obs := range observations {
		if seg, ok := m.Step(obs); ok {
			segments = append(segments, seg)
		}
	}
	if seg, ok := m.Close(); ok {
		segments = append(segments, seg)
	}

	if o.withoutCrossings {
		for i := range segments {
			segments[i].Crossing = nil
		}
	}
	return segments, nil
}

// Count returns the number of segments Segment would produce.
func Count(observations []domain.Observation, threshold float64) (int, error) {
	segments, err := Segment(observations, threshold, WithoutCrossings())
	if err != nil {
		return 0, err
	}
	return len(segments), nil
}

// Validate checks the preconditions of Segment.
func Validate(observations []domain.Observation, threshold float64) error {
	if len(observations) == 0 {
		return fmt.Errorf("%w: empty series", ports.ErrInvalidInput)
	}
	if math.IsNaN(threshold) || threshold <= 0 || threshold >= 1 {
		return fmt.Errorf("%w: threshold %v must be between 0 and 1 (exclusive)", ports.ErrInvalidInput, threshold)
	}
	for i, obs := range observations {
		if math.IsNaN(obs.Price) || math.IsInf(obs.Price, 0) || obs.Price <= 0 {
			return fmt.Errorf("%w: observation %d has non-positive price %v", ports.ErrInvalidInput, i, obs.Price)
		}
		if i > 0 && obs.Time.Before(observations[i-1].Time) {
			return fmt.Errorf("%w: observation %d at %s precedes %s", ports.ErrInvalidInput,
				i, obs.Time.Format("2006-01-02"), observations[i-1].Time.Format("2006-01-02"))
		}
	}
	return nil
}
