package session

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/volspike/internal/models"
)

var taipei = time.FixedZone("Asia/Taipei", 8*3600)

func sessionDay() time.Time {
	return time.Date(2025, 7, 24, 0, 0, 0, 0, time.UTC)
}

func at(h, m, s int) time.Time {
	return time.Date(2025, 7, 24, h, m, s, 0, taipei)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store := NewStore(t.TempDir(), sessionDay(), taipei)
	states, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, states)
	assert.Contains(t, store.Path(), "update_trigger_20250724.json")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), sessionDay(), taipei)

	tracked := models.NewSymbolSessionState("2330")
	tracked.LastObservedAt = at(9, 6, 2)
	tracked.LastQuoteTimestamp = at(9, 6, 0)
	tracked.ProjectedFullDayVolume = 1234.5
	tracked.HasProjection = true
	tracked.AppendSample(at(9, 3, 1), 100)
	tracked.AppendSample(at(9, 6, 2), 160)

	alerted := models.NewSymbolSessionState("6488")
	alerted.LastObservedAt = at(10, 0, 0)
	alerted.Alerted = true
	alerted.AlertedAt = at(10, 0, 0)

	fresh := models.NewSymbolSessionState("0050")

	in := map[string]*models.SymbolSessionState{"2330": tracked, "6488": alerted, "0050": fresh}
	require.NoError(t, store.Save(in))

	out, err := store.Load()
	require.NoError(t, err)
	require.Len(t, out, 3)

	got := out["2330"]
	assert.True(t, got.LastObservedAt.Equal(tracked.LastObservedAt))
	assert.True(t, got.LastQuoteTimestamp.Equal(tracked.LastQuoteTimestamp))
	assert.Equal(t, 1234.5, got.ProjectedFullDayVolume)
	require.Len(t, got.PeriodicSamples, 2)
	assert.Nil(t, got.PeriodicSamples[0].IncrementalVolume)
	require.NotNil(t, got.PeriodicSamples[1].IncrementalVolume)
	assert.Equal(t, 60.0, *got.PeriodicSamples[1].IncrementalVolume)

	assert.True(t, out["6488"].Alerted)
	assert.True(t, out["6488"].AlertedAt.Equal(alerted.AlertedAt))

	assert.False(t, out["0050"].HasProjection)
	assert.True(t, out["0050"].LastObservedAt.IsZero())
}

func TestWireFormat(t *testing.T) {
	store := NewStore(t.TempDir(), sessionDay(), taipei)
	st := models.NewSymbolSessionState("2330")
	st.LastObservedAt = at(9, 3, 0)
	st.AppendSample(at(9, 3, 0), 150)
	require.NoError(t, store.Save(map[string]*models.SymbolSessionState{"2330": st}))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	rec := raw["2330"]
	assert.Equal(t, "09:03:00", rec["last_record_time"])
	assert.Equal(t, "-", rec["last_api_trigger_time"])
	assert.Equal(t, "-", rec["normalized_trade_volume"])
	assert.Equal(t, []any{"09:03:00"}, rec["his_per3_min_time"])
	assert.Equal(t, []any{"150"}, rec["his_per3_min_acc_trade"])
	assert.Equal(t, []any{"-"}, rec["his_per3_min_trade"])
	assert.Equal(t, false, rec["alerted"])
}

func TestLoadLegacyRecordWithoutAlertFields(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, sessionDay(), taipei)
	legacy := `{"2330":{"last_record_time":"09:03:00","last_api_trigger_time":"09:02:58","normalized_trade_volume":"-","his_per3_min_time":["09:03:00"],"his_per3_min_acc_trade":["150.0"],"his_per3_min_trade":["-"]}}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(legacy), 0644))

	states, err := store.Load()
	require.NoError(t, err)
	st := states["2330"]
	require.NotNil(t, st)
	assert.False(t, st.Alerted)
	assert.Equal(t, 150.0, st.PeriodicSamples[0].CumulativeVolume)
}

func TestLoadCorruptFile(t *testing.T) {
	store := NewStore(t.TempDir(), sessionDay(), taipei)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"2330":{"last_record_time":"nine"}}`), 0644))
	_, err := store.Load()
	assert.Error(t, err)
}
