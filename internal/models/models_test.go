package models

import (
	"testing"
	"time"
)

func TestCandidateValidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate Candidate
		wantErr   bool
	}{
		{
			name: "valid candidate",
			candidate: Candidate{
				Symbol:         "2330",
				Name:           "TSMC",
				Exchange:       ExchangeTWSE,
				Date:           "1140724",
				ClosingPrice:   1100,
				TradeVolume:    30000000,
				BaselineVolume: 31000000,
				SampleStdDev:   1200000,
				CV:             0.04,
			},
			wantErr: false,
		},
		{
			name:      "empty code",
			candidate: Candidate{Exchange: ExchangeTWSE, BaselineVolume: 100},
			wantErr:   true,
		},
		{
			name:      "missing exchange",
			candidate: Candidate{Symbol: "2330", BaselineVolume: 100},
			wantErr:   true,
		},
		{
			name:      "zero baseline",
			candidate: Candidate{Symbol: "2330", Exchange: ExchangeTWSE},
			wantErr:   true,
		},
		{
			name:      "negative cv",
			candidate: Candidate{Symbol: "2330", Exchange: ExchangeTWSE, BaselineVolume: 100, CV: -0.1},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.candidate.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Candidate.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaselineLots(t *testing.T) {
	c := Candidate{BaselineVolume: 101000}
	if got := c.BaselineLots(1000); got != 101 {
		t.Errorf("BaselineLots(1000) = %v, want 101", got)
	}
	if got := c.BaselineLots(0); got != 101000 {
		t.Errorf("BaselineLots(0) = %v, want raw baseline", got)
	}
}

func TestParseExchange(t *testing.T) {
	tests := []struct {
		in      string
		want    Exchange
		wantErr bool
	}{
		{"twse", ExchangeTWSE, false},
		{" TPEX ", ExchangeTPEX, false},
		{"nyse", "", true},
	}
	for _, tt := range tests {
		got, err := ParseExchange(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseExchange(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseExchange(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFieldIndexTrimsHeaders(t *testing.T) {
	s := DailySnapshot{Fields: []string{"代號", "名稱", "收盤 ", "成交股數"}}
	if got := s.FieldIndex("收盤"); got != 2 {
		t.Errorf("FieldIndex(收盤) = %d, want 2", got)
	}
	if got := s.FieldIndex("Missing"); got != -1 {
		t.Errorf("FieldIndex(Missing) = %d, want -1", got)
	}
}

func TestAppendSample(t *testing.T) {
	state := NewSymbolSessionState("2330")
	base := time.Date(2025, 7, 24, 9, 3, 0, 0, time.UTC)

	state.AppendSample(base, 120)
	state.AppendSample(base.Add(3*time.Minute), 180)

	if len(state.PeriodicSamples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(state.PeriodicSamples))
	}
	if state.PeriodicSamples[0].IncrementalVolume != nil {
		t.Errorf("first sample should have no increment")
	}
	inc := state.PeriodicSamples[1].IncrementalVolume
	if inc == nil || *inc != 60 {
		t.Errorf("second sample increment = %v, want 60", inc)
	}
	last, ok := state.LastSample()
	if !ok || last.CumulativeVolume != 180 {
		t.Errorf("LastSample() = %+v, %v", last, ok)
	}
}

func TestAlertRatioAndPriceChange(t *testing.T) {
	a := Alert{BaselineVolume: 101, ProjectedVolume: 303, CurrentPrice: 55, PriceAvailable: true, PreviousClose: 50}
	if got := a.Ratio(); got != 3 {
		t.Errorf("Ratio() = %v, want 3", got)
	}
	change, ok := a.PriceChange()
	if !ok || change < 0.0999 || change > 0.1001 {
		t.Errorf("PriceChange() = %v, %v; want 0.1, true", change, ok)
	}

	a.PriceAvailable = false
	if _, ok := a.PriceChange(); ok {
		t.Errorf("PriceChange() should report false without a price")
	}
}
