package domain

import "time"

// AnalysisRun is the persisted outcome of segmenting one series.
type AnalysisRun struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Source       string    `json:"source"`
	Threshold    float64   `json:"threshold"`
	Observations int       `json:"observations"`
	CreatedAt    time.Time `json:"createdAt"`
	Segments     []Segment `json:"segments"`
}
