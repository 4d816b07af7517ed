// Package session persists the per-symbol trigger state of one trading session.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rewired-gh/volspike/internal/calendar"
	"github.com/rewired-gh/volspike/internal/jsonfile"
	"github.com/rewired-gh/volspike/internal/models"
)

const (
	clockLayout = "15:04:05"
	unset       = "-"
)

// Store reads and writes the state file of a single session day.
type Store struct {
	path string
	day  time.Time
	loc  *time.Location
}

// NewStore creates a store under dir for the session on day, with clock times in loc.
// Each day gets its own file so a new session starts empty.
func NewStore(dir string, day time.Time, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		path: filepath.Join(dir, fmt.Sprintf("update_trigger_%s.json", calendar.FormatCE(day, ""))),
		day:  day,
		loc:  loc,
	}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// record is the on-disk shape of one symbol's state.
type record struct {
	LastRecordTime        string   `json:"last_record_time"`
	LastAPITriggerTime    string   `json:"last_api_trigger_time"`
	NormalizedTradeVolume any      `json:"normalized_trade_volume"`
	SampleTimes           []string `json:"his_per3_min_time"`
	SampleAccumulated     []string `json:"his_per3_min_acc_trade"`
	SampleIncrements      []string `json:"his_per3_min_trade"`
	Alerted               bool     `json:"alerted"`
	AlertedAt             string   `json:"alerted_at"`
}

// Load returns the persisted states, or an empty map if the session has no file yet.
func (s *Store) Load() (map[string]*models.SymbolSessionState, error) {
	var raw map[string]record
	if err := jsonfile.Read(s.path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]*models.SymbolSessionState), nil
		}
		return nil, err
	}

	states := make(map[string]*models.SymbolSessionState, len(raw))
	for symbol, r := range raw {
		state, err := s.decode(symbol, r)
		if err != nil {
			return nil, fmt.Errorf("invalid state for %s: %w", symbol, err)
		}
		states[symbol] = state
	}
	return states, nil
}

// Save atomically replaces the state file with states.
func (s *Store) Save(states map[string]*models.SymbolSessionState) error {
	raw := make(map[string]record, len(states))
	for symbol, state := range states {
		raw[symbol] = s.encode(state)
	}
	if err := jsonfile.Write(s.path, raw); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

func (s *Store) encode(st *models.SymbolSessionState) record {
	r := record{
		LastRecordTime:        s.clock(st.LastObservedAt),
		LastAPITriggerTime:    s.clock(st.LastQuoteTimestamp),
		NormalizedTradeVolume: unset,
		SampleTimes:           make([]string, 0, len(st.PeriodicSamples)),
		SampleAccumulated:     make([]string, 0, len(st.PeriodicSamples)),
		SampleIncrements:      make([]string, 0, len(st.PeriodicSamples)),
		Alerted:               st.Alerted,
		AlertedAt:             s.clock(st.AlertedAt),
	}
	if st.HasProjection {
		r.NormalizedTradeVolume = st.ProjectedFullDayVolume
	}
	for _, sample := range st.PeriodicSamples {
		r.SampleTimes = append(r.SampleTimes, s.clock(sample.Time))
		r.SampleAccumulated = append(r.SampleAccumulated, formatFloat(sample.CumulativeVolume))
		if sample.IncrementalVolume == nil {
			r.SampleIncrements = append(r.SampleIncrements, unset)
		} else {
			r.SampleIncrements = append(r.SampleIncrements, formatFloat(*sample.IncrementalVolume))
		}
	}
	return r
}

func (s *Store) decode(symbol string, r record) (*models.SymbolSessionState, error) {
	st := models.NewSymbolSessionState(symbol)
	var err error
	if st.LastObservedAt, err = s.parseClock(r.LastRecordTime); err != nil {
		return nil, err
	}
	if st.LastQuoteTimestamp, err = s.parseClock(r.LastAPITriggerTime); err != nil {
		return nil, err
	}
	if st.AlertedAt, err = s.parseClock(r.AlertedAt); err != nil {
		return nil, err
	}
	st.Alerted = r.Alerted

	switch v := r.NormalizedTradeVolume.(type) {
	case float64:
		st.ProjectedFullDayVolume = v
		st.HasProjection = true
	case string:
		if v != unset && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("normalized_trade_volume: %w", err)
			}
			st.ProjectedFullDayVolume = f
			st.HasProjection = true
		}
	}

	if len(r.SampleTimes) != len(r.SampleAccumulated) {
		return nil, fmt.Errorf("sample history length mismatch: %d times, %d volumes", len(r.SampleTimes), len(r.SampleAccumulated))
	}
	for i, ts := range r.SampleTimes {
		at, err := s.parseClock(ts)
		if err != nil {
			return nil, err
		}
		acc, err := strconv.ParseFloat(r.SampleAccumulated[i], 64)
		if err != nil {
			return nil, fmt.Errorf("his_per3_min_acc_trade: %w", err)
		}
		sample := models.Sample{Time: at, CumulativeVolume: acc}
		if i < len(r.SampleIncrements) && r.SampleIncrements[i] != unset {
			inc, err := strconv.ParseFloat(r.SampleIncrements[i], 64)
			if err != nil {
				return nil, fmt.Errorf("his_per3_min_trade: %w", err)
			}
			sample.IncrementalVolume = &inc
		}
		st.PeriodicSamples = append(st.PeriodicSamples, sample)
	}
	return st, nil
}

func (s *Store) clock(t time.Time) string {
	if t.IsZero() {
		return unset
	}
	return t.In(s.loc).Format(clockLayout)
}

func (s *Store) parseClock(v string) (time.Time, error) {
	if v == "" || v == unset {
		return time.Time{}, nil
	}
	c, err := time.Parse(clockLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock time %q: %w", v, err)
	}
	return time.Date(s.day.Year(), s.day.Month(), s.day.Day(), c.Hour(), c.Minute(), c.Second(), 0, s.loc), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
