// Package screener selects symbols whose recent daily volume is unusually stable.
package screener

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rewired-gh/volspike/internal/calendar"
	"github.com/rewired-gh/volspike/internal/logger"
	"github.com/rewired-gh/volspike/internal/models"
	"github.com/rewired-gh/volspike/internal/snapshot"
)

const (
	DefaultWindow      = 5
	DefaultCVThreshold = 0.5
)

// ErrSnapshotNotFound is returned when the as-of day has no snapshot.
var ErrSnapshotNotFound = snapshot.ErrNotFound

// InsufficientHistoryError is returned when fewer than Want trading days exist at or before AsOf.
type InsufficientHistoryError struct {
	Exchange models.Exchange
	AsOf     string
	Have     int
	Want     int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s as of %s: have %d days, need %d", e.Exchange, e.AsOf, e.Have, e.Want)
}

// DayStore is the snapshot access the screener needs.
type DayStore interface {
	ListDaysDescending(exchange models.Exchange) ([]string, error)
	LoadDay(exchange models.Exchange, date string) (*models.DailySnapshot, error)
}

// Screener computes candidate lists from daily snapshots.
type Screener struct {
	store DayStore
}

// New creates a screener over store.
func New(store DayStore) *Screener {
	return &Screener{store: store}
}

// Screen returns every symbol traded on all window days ending at asOf whose
// volume coefficient of variation is strictly below cvThreshold, sorted by code.
func (s *Screener) Screen(ctx context.Context, exchange models.Exchange, asOf string, window int, cvThreshold float64) ([]models.Candidate, error) {
	if window < 2 {
		return nil, fmt.Errorf("window must be at least 2, got %d", window)
	}
	layout, err := snapshot.LayoutFor(exchange)
	if err != nil {
		return nil, err
	}

	asOfDay, err := calendar.ParseDate(asOf)
	if err != nil {
		return nil, fmt.Errorf("invalid as-of date: %w", err)
	}
	asOfKey := calendar.FormatROC(asOfDay, "")

	days, err := s.store.ListDaysDescending(exchange)
	if err != nil {
		return nil, err
	}
	start := -1
	for i, d := range days {
		if d == asOfKey {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%s %s: %w", exchange, asOfKey, ErrSnapshotNotFound)
	}
	selected := days[start:]
	if len(selected) < window {
		return nil, &InsufficientHistoryError{Exchange: exchange, AsOf: asOfKey, Have: len(selected), Want: window}
	}
	selected = selected[:window]

	// perDay[0] is the as-of day.
	perDay := make([]map[string]models.Observation, len(selected))
	for i, day := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := s.store.LoadDay(exchange, day)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s %s: %w", exchange, day, err)
		}
		obs, skipped, err := snapshot.Observations(snap, layout)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s %s: %w", exchange, day, err)
		}
		for _, e := range skipped {
			var mf *snapshot.MissingFieldError
			if errors.As(e, &mf) {
				logger.Debug("Skipping %s on %s: %v", mf.Symbol, day, e)
			}
		}
		perDay[i] = obs
	}

	candidates := make([]models.Candidate, 0)
	for symbol, today := range perDay[0] {
		volumes := make([]float64, 0, window)
		complete := true
		for i := len(perDay) - 1; i >= 0; i-- {
			o, ok := perDay[i][symbol]
			if !ok {
				complete = false
				break
			}
			volumes = append(volumes, o.TradeVolume)
		}
		if !complete {
			continue
		}

		series := Summarize(symbol, volumes)
		if !(series.CV < cvThreshold) {
			continue
		}
		candidates = append(candidates, models.Candidate{
			Symbol:         symbol,
			Name:           today.Name,
			Exchange:       exchange,
			Date:           asOfKey,
			ClosingPrice:   today.ClosingPrice,
			TradeVolume:    today.TradeVolume,
			BaselineVolume: series.Mean,
			SampleStdDev:   series.SampleStdDev,
			CV:             series.CV,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Symbol < candidates[j].Symbol
	})

	logger.Info("Screened %s as of %s: %d of %d symbols passed cv < %.2f over %d days",
		exchange, asOfKey, len(candidates), len(perDay[0]), cvThreshold, window)
	return candidates, nil
}
