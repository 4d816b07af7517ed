package screener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/volspike/internal/models"
	"github.com/rewired-gh/volspike/internal/snapshot"
)

// memStore holds TWSE-layout snapshots keyed by compact ROC date.
type memStore struct {
	days map[string]*models.DailySnapshot
}

func newMemStore() *memStore {
	return &memStore{days: make(map[string]*models.DailySnapshot)}
}

// add records volumes for one day; each symbol gets a name and a closing price.
func (m *memStore) add(day string, volumes map[string]float64) {
	snap := &models.DailySnapshot{
		Date:    day,
		Fields:  []string{"Code", "Name", "ClosingPrice", "TradeVolume"},
		Entries: make(map[string][]json.RawMessage),
	}
	for sym, v := range volumes {
		snap.Entries[sym] = []json.RawMessage{
			json.RawMessage(fmt.Sprintf("%q", sym)),
			json.RawMessage(fmt.Sprintf("%q", "name-"+sym+"-"+day)),
			json.RawMessage(`"50.00"`),
			json.RawMessage(fmt.Sprintf(`"%.0f"`, v)),
		}
	}
	m.days[day] = snap
}

func (m *memStore) ListDaysDescending(models.Exchange) ([]string, error) {
	out := make([]string, 0, len(m.days))
	for d := range m.days {
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

func (m *memStore) LoadDay(_ models.Exchange, date string) (*models.DailySnapshot, error) {
	snap, ok := m.days[date]
	if !ok {
		return nil, snapshot.ErrNotFound
	}
	return snap, nil
}

var fiveDays = []string{"1140718", "1140721", "1140722", "1140723", "1140724"}

func seriesStore(series map[string][]float64) *memStore {
	m := newMemStore()
	for i, day := range fiveDays {
		vols := make(map[string]float64)
		for sym, vs := range series {
			if i < len(vs) && !math.IsNaN(vs[i]) {
				vols[sym] = vs[i]
			}
		}
		m.add(day, vols)
	}
	return m
}

func TestSummarizeWorkedExample(t *testing.T) {
	s := Summarize("A", []float64{100, 105, 98, 102, 100})
	assert.InDelta(t, 101.0, s.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(7), s.SampleStdDev, 1e-9)
	assert.InDelta(t, math.Sqrt(7)/101, s.CV, 1e-12)
}

func TestSummarizeZeroMean(t *testing.T) {
	s := Summarize("Z", []float64{0, 0, 0})
	assert.True(t, math.IsInf(s.CV, 1))
}

func TestScreenSelectsStableSymbols(t *testing.T) {
	store := seriesStore(map[string][]float64{
		"A": {100, 105, 98, 102, 100},
		"B": {10, 500, 20, 800, 5},
		"C": {0, 0, 0, 0, 0},
	})

	got, err := New(store).Screen(context.Background(), models.ExchangeTWSE, "1140724", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, "A", c.Symbol)
	assert.Equal(t, "name-A-1140724", c.Name)
	assert.Equal(t, "1140724", c.Date)
	assert.Equal(t, models.ExchangeTWSE, c.Exchange)
	assert.Equal(t, 100.0, c.TradeVolume)
	assert.Equal(t, 50.0, c.ClosingPrice)
	assert.InDelta(t, 101.0, c.BaselineVolume, 1e-9)
}

func TestScreenStrictThreshold(t *testing.T) {
	// 3, 5, 7 has mean 5 and sample stddev 2, so cv is exactly 0.4.
	m := newMemStore()
	m.add("1140722", map[string]float64{"X": 3})
	m.add("1140723", map[string]float64{"X": 5})
	m.add("1140724", map[string]float64{"X": 7})
	s := New(m)

	got, err := s.Screen(context.Background(), models.ExchangeTWSE, "1140724", 3, 0.4)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Screen(context.Background(), models.ExchangeTWSE, "1140724", 3, 0.41)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.4, got[0].CV)
}

func TestScreenRequiresEveryDay(t *testing.T) {
	nan := math.NaN()
	store := seriesStore(map[string][]float64{
		"A":   {100, 100, 100, 100, 100},
		"GAP": {100, nan, 100, 100, 100},
		"OLD": {100, 100, 100, 100, nan},
	})
	got, err := New(store).Screen(context.Background(), models.ExchangeTWSE, "1140724", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Symbol)
}

func TestScreenInsufficientHistory(t *testing.T) {
	store := seriesStore(map[string][]float64{"A": {1, 2, 3, 4, 5}})

	_, err := New(store).Screen(context.Background(), models.ExchangeTWSE, "1140722", 5, 0.5)
	var ih *InsufficientHistoryError
	require.True(t, errors.As(err, &ih))
	assert.Equal(t, 3, ih.Have)
	assert.Equal(t, 5, ih.Want)
}

func TestScreenSnapshotNotFound(t *testing.T) {
	store := seriesStore(map[string][]float64{"A": {1, 2, 3, 4, 5}})
	_, err := New(store).Screen(context.Background(), models.ExchangeTWSE, "1140725", 5, 0.5)
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))
}

func TestScreenUsesWindowEndingAtAsOf(t *testing.T) {
	store := seriesStore(map[string][]float64{"A": {100, 100, 100, 100, 5000}})
	store.add("1140717", map[string]float64{"A": 100})

	got, err := New(store).Screen(context.Background(), models.ExchangeTWSE, "1140723", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].CV)
	assert.Equal(t, "1140723", got[0].Date)
}

func TestScreenDeterministic(t *testing.T) {
	series := map[string][]float64{}
	for i := 0; i < 50; i++ {
		series[fmt.Sprintf("%04d", 9999-i)] = []float64{100, 101, 99, 100, 100}
	}
	s := New(seriesStore(series))

	first, err := s.Screen(context.Background(), models.ExchangeTWSE, "1140724", 5, 0.5)
	require.NoError(t, err)
	second, err := s.Screen(context.Background(), models.ExchangeTWSE, "1140724", 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, sort.SliceIsSorted(first, func(i, j int) bool { return first[i].Symbol < first[j].Symbol }))
}

type recordingJournal struct {
	runs []models.ScreeningRun
	err  error
}

func (j *recordingJournal) RecordScreening(_ context.Context, run models.ScreeningRun) error {
	j.runs = append(j.runs, run)
	return j.err
}

func TestRunnerWritesAndJournals(t *testing.T) {
	dir := t.TempDir()
	journal := &recordingJournal{err: errors.New("db down")}
	r := &Runner{
		Screener:    New(seriesStore(map[string][]float64{"A": {100, 105, 98, 102, 100}})),
		OutputDir:   dir,
		Window:      5,
		CVThreshold: 0.5,
		Journal:     journal,
	}

	got, err := r.Run(context.Background(), models.ExchangeTWSE, "2025-07-24")
	require.NoError(t, err)
	require.Len(t, got, 1)

	onDisk, err := ReadCandidates(filepath.Join(dir, "candidates_twse.json"))
	require.NoError(t, err)
	assert.Equal(t, got, onDisk)

	require.Len(t, journal.runs, 1)
	assert.Equal(t, "1140724", journal.runs[0].AsOf)
	assert.NotEmpty(t, journal.runs[0].ID)
}

func TestRunnerNoFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{
		Screener:    New(seriesStore(map[string][]float64{"A": {1, 2, 3, 4, 5}})),
		OutputDir:   dir,
		Window:      5,
		CVThreshold: 0.5,
	}
	_, err := r.Run(context.Background(), models.ExchangeTWSE, "1140721")
	require.Error(t, err)

	_, err = ReadCandidates(CandidatePath(dir, models.ExchangeTWSE))
	assert.Error(t, err)
}
