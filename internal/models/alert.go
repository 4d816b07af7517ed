package models

import (
	"time"
)

// Alert is emitted once per symbol per session when projected volume breaks out of its baseline.
// Volumes are in board lots.
type Alert struct {
	ID          string
	SessionDate string
	Symbol      string
	Exchange    Exchange
	Name        string

	BaselineVolume    float64
	ProjectedVolume   float64
	AccumulatedVolume float64
	SessionFraction   float64

	CurrentPrice   float64
	PriceAvailable bool
	PreviousClose  float64

	DetectedAt time.Time
}

// Ratio is projected volume over baseline.
func (a Alert) Ratio() float64 {
	if a.BaselineVolume <= 0 {
		return 0
	}
	return a.ProjectedVolume / a.BaselineVolume
}

// PriceChange is the fractional move of the display price against the previous close.
// It reports false when either price is unknown.
func (a Alert) PriceChange() (float64, bool) {
	if !a.PriceAvailable || a.PreviousClose <= 0 {
		return 0, false
	}
	return (a.CurrentPrice - a.PreviousClose) / a.PreviousClose, true
}

// ScreeningRun is a journal entry for one screener invocation.
type ScreeningRun struct {
	ID          string
	Exchange    Exchange
	AsOf        string
	Window      int
	CVThreshold float64
	CreatedAt   time.Time
	Candidates  []Candidate
}
