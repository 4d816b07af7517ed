package models

import (
	"time"
)

// Sample is a coarse-cadence record of a symbol's cumulative volume.
// IncrementalVolume is nil for the first sample of the session.
type Sample struct {
	Time              time.Time
	CumulativeVolume  float64
	IncrementalVolume *float64
}

// SymbolSessionState is the per-symbol tracking record for one trading session.
// A symbol with no state is Uninitialized; with state it is Tracking until Alerted is set.
type SymbolSessionState struct {
	Symbol string

	LastObservedAt         time.Time
	LastQuoteTimestamp     time.Time
	ProjectedFullDayVolume float64
	HasProjection          bool

	PeriodicSamples []Sample

	Alerted   bool
	AlertedAt time.Time
}

// NewSymbolSessionState returns the empty record created on a symbol's first successful poll.
func NewSymbolSessionState(symbol string) *SymbolSessionState {
	return &SymbolSessionState{
		Symbol:          symbol,
		PeriodicSamples: []Sample{},
	}
}

// LastSample returns the most recent periodic sample, if any.
func (s *SymbolSessionState) LastSample() (Sample, bool) {
	if len(s.PeriodicSamples) == 0 {
		return Sample{}, false
	}
	return s.PeriodicSamples[len(s.PeriodicSamples)-1], true
}

// AppendSample records a new cumulative volume, deriving the increment from the previous sample.
func (s *SymbolSessionState) AppendSample(at time.Time, cumulative float64) {
	sample := Sample{Time: at, CumulativeVolume: cumulative}
	if prev, ok := s.LastSample(); ok {
		delta := cumulative - prev.CumulativeVolume
		sample.IncrementalVolume = &delta
	}
	s.PeriodicSamples = append(s.PeriodicSamples, sample)
}
