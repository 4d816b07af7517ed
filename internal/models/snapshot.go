// Package models defines the core domain entities: snapshots, candidates, quotes, session state and alerts.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Exchange identifies one of the two source markets.
type Exchange string

const (
	// ExchangeTWSE is the main board.
	ExchangeTWSE Exchange = "twse"
	// ExchangeTPEX is the over-the-counter board.
	ExchangeTPEX Exchange = "tpex"
)

// ParseExchange accepts the config spelling of an exchange.
func ParseExchange(s string) (Exchange, error) {
	switch Exchange(strings.ToLower(strings.TrimSpace(s))) {
	case ExchangeTWSE:
		return ExchangeTWSE, nil
	case ExchangeTPEX:
		return ExchangeTPEX, nil
	default:
		return "", fmt.Errorf("unknown exchange %q", s)
	}
}

// DailySnapshot is one exchange's end-of-day table for a single trading day.
// Rows are index-addressed by Fields.
type DailySnapshot struct {
	Date    string                       `json:"date"`
	Fields  []string                     `json:"fields"`
	Entries map[string][]json.RawMessage `json:"data"`
}

// FieldIndex returns the column index for name, ignoring surrounding whitespace.
func (s *DailySnapshot) FieldIndex(name string) int {
	want := strings.TrimSpace(name)
	for i, f := range s.Fields {
		if strings.TrimSpace(f) == want {
			return i
		}
	}
	return -1
}

// Observation is the projection of a snapshot row onto the columns the screener uses.
type Observation struct {
	Symbol       string
	Name         string
	ClosingPrice float64
	TradeVolume  float64
}
