package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/volspike/internal/models"
)

// Layout names the snapshot columns holding each observation field.
type Layout struct {
	Code         string
	Name         string
	ClosingPrice string
	TradeVolume  string
}

var layouts = map[models.Exchange]Layout{
	models.ExchangeTWSE: {
		Code:         "Code",
		Name:         "Name",
		ClosingPrice: "ClosingPrice",
		TradeVolume:  "TradeVolume",
	},
	models.ExchangeTPEX: {
		Code:         "代號",
		Name:         "名稱",
		ClosingPrice: "收盤",
		TradeVolume:  "成交股數",
	},
}

// LayoutFor returns the column layout used by exchange.
func LayoutFor(exchange models.Exchange) (Layout, error) {
	l, ok := layouts[exchange]
	if !ok {
		return Layout{}, fmt.Errorf("no snapshot layout for exchange %q", exchange)
	}
	return l, nil
}

// MissingFieldError reports a row that lacks a required column or holds an unparsable value.
type MissingFieldError struct {
	Date   string
	Symbol string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("snapshot %s: symbol %s: missing or invalid field %q", e.Date, e.Symbol, e.Field)
}

type columns struct {
	name, close, volume int
}

func (l Layout) resolve(snap *models.DailySnapshot) (columns, error) {
	c := columns{
		name:   snap.FieldIndex(l.Name),
		close:  snap.FieldIndex(l.ClosingPrice),
		volume: snap.FieldIndex(l.TradeVolume),
	}
	if c.volume < 0 {
		return c, &MissingFieldError{Date: snap.Date, Symbol: "*", Field: l.TradeVolume}
	}
	return c, nil
}

// Observations projects every row of snap onto the screener's fields.
// Rows that are too short or whose volume cannot be parsed are returned as
// *MissingFieldError values and left out of the result. A missing or
// non-numeric closing price (no trade that day) is recorded as zero.
func Observations(snap *models.DailySnapshot, l Layout) (map[string]models.Observation, []error, error) {
	cols, err := l.resolve(snap)
	if err != nil {
		return nil, nil, err
	}

	out := make(map[string]models.Observation, len(snap.Entries))
	var skipped []error
	for symbol, row := range snap.Entries {
		code := strings.TrimSpace(symbol)
		if len(row) != len(snap.Fields) || cols.volume >= len(row) {
			skipped = append(skipped, &MissingFieldError{Date: snap.Date, Symbol: code, Field: l.TradeVolume})
			continue
		}
		vol, err := ParseNumber(row[cols.volume])
		if err != nil {
			skipped = append(skipped, &MissingFieldError{Date: snap.Date, Symbol: code, Field: l.TradeVolume})
			continue
		}

		obs := models.Observation{Symbol: code, TradeVolume: vol}
		if cols.name >= 0 {
			obs.Name = strings.TrimSpace(rawString(row[cols.name]))
		}
		if cols.close >= 0 {
			if price, err := ParseNumber(row[cols.close]); err == nil {
				obs.ClosingPrice = price
			}
		}
		out[code] = obs
	}
	return out, skipped, nil
}

// ParseNumber reads a JSON number or a numeric string that may carry thousands separators.
func ParseNumber(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(rawString(raw))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
