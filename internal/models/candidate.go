package models

import (
	"errors"
	"math"
)

// Candidate is a symbol whose trailing daily volume passed the stability screen.
// JSON names follow the candidate list file consumed by earlier tooling.
type Candidate struct {
	Symbol          string   `json:"Code"`
	Name            string   `json:"Name"`
	Exchange        Exchange `json:"Exchange"`
	Date            string   `json:"Date"`
	ClosingPrice    float64  `json:"ClosingPrice"`
	TradeVolume     float64  `json:"TradeVolume"`
	BaselineVolume  float64  `json:"5ma_TradeVolume"`
	SampleStdDev    float64  `json:"FiveDaySampleStdDev"`
	CV float64  `json:"cv"`
}

// BaselineLots converts the share-denominated baseline into board lots, the unit live quotes use.
func (c Candidate) BaselineLots(lotSize float64) float64 {
	if lotSize <= 0 {
		return c.BaselineVolume
	}
	return c.BaselineVolume / lotSize
}

// Instrument returns the addressing information the quote source needs.
func (c Candidate) Instrument() Instrument {
	return Instrument{Symbol: c.Symbol, Exchange: c.Exchange}
}

// Validate checks candidate field constraints.
func (c *Candidate) Validate() error {
	if c.Symbol == "" {
		return errors.New("candidate code must not be empty")
	}
	if c.Exchange == "" {
		return errors.New("candidate exchange must not be empty")
	}
	if c.BaselineVolume <= 0 || math.IsNaN(c.BaselineVolume) || math.IsInf(c.BaselineVolume, 0) {
		return errors.New("baseline volume must be a positive number")
	}
	if c.CV < 0 || math.IsNaN(c.CV) {
		return errors.New("coefficient of variation must not be negative")
	}
	if c.ClosingPrice < 0 {
		return errors.New("closing price must not be negative")
	}
	return nil
}
