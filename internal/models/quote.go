package models

import "time"

// Instrument addresses a symbol on a given exchange.
type Instrument struct {
	Symbol   string
	Exchange Exchange
}

// Quote is one realtime observation of a symbol. Volumes are in board lots.
type Quote struct {
	Symbol            string
	Name              string
	AccumulatedVolume float64
	LatestTradePrice  *float64
	BestBids          []float64
	BestAsks          []float64
	Timestamp         time.Time
}
