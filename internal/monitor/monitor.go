// Package monitor polls candidate quotes through the session and raises volume breakout alerts.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/rewired-gh/volspike/internal/calendar"
	"github.com/rewired-gh/volspike/internal/logger"
	"github.com/rewired-gh/volspike/internal/metrics"
	"github.com/rewired-gh/volspike/internal/models"
	"github.com/rewired-gh/volspike/internal/quote"
)

// Epsilon is the smallest session fraction used for extrapolation.
const Epsilon = 1e-3

type Config struct {
	TickInterval       time.Duration
	BatchSize          int
	VolumeMultiplier   float64
	SampleEveryMinutes int
	LotSize            float64
	RequirePriceRise   bool
}

func DefaultConfig() Config {
	return Config{
		TickInterval:       2 * time.Second,
		BatchSize:          100,
		VolumeMultiplier:   2.0,
		SampleEveryMinutes: 3,
		LotSize:            1000,
		RequirePriceRise:   false,
	}
}

// QuoteSource returns the latest quotes for a batch of instruments.
type QuoteSource interface {
	GetBatch(ctx context.Context, instruments []models.Instrument) (map[string]models.Quote, error)
}

// StateStore persists the session state map.
type StateStore interface {
	Load() (map[string]*models.SymbolSessionState, error)
	Save(states map[string]*models.SymbolSessionState) error
}

// AlertSink receives alerts as they fire.
type AlertSink interface {
	Notify(ctx context.Context, alert models.Alert) error
}

// Reporter is told when quote polling starts failing and when it recovers.
type Reporter interface {
	SendError(err error) error
	SendRecovery(failures int) error
}

type Option func(*Engine)

func WithSinks(sinks ...AlertSink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sinks...)
	}
}

func WithReporter(r Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine owns the watched universe, the per-symbol state map and the batch cursor.
type Engine struct {
	config   Config
	clock    *SessionClock
	quotes   QuoteSource
	store    StateStore
	sinks    []AlertSink
	reporter Reporter
	metrics  *metrics.Metrics

	universe []models.Candidate
	batches  [][]models.Candidate
	cursor   int
	states   map[string]*models.SymbolSessionState

	consecutiveFailures int
}

// New builds an engine over universe and restores any state persisted for the session.
// Invalid and duplicate candidates are dropped.
func New(config Config, clock *SessionClock, universe []models.Candidate, quotes QuoteSource, store StateStore, opts ...Option) (*Engine, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}

	seen := make(map[string]bool, len(universe))
	kept := make([]models.Candidate, 0, len(universe))
	for _, c := range universe {
		if err := c.Validate(); err != nil {
			logger.Warn("Dropping candidate %s: %v", c.Symbol, err)
			continue
		}
		if seen[c.Symbol] {
			logger.Warn("Dropping duplicate candidate %s (%s)", c.Symbol, c.Exchange)
			continue
		}
		seen[c.Symbol] = true
		kept = append(kept, c)
	}

	e := &Engine{
		config:   config,
		clock:    clock,
		quotes:   quotes,
		store:    store,
		universe: kept,
		batches:  lo.Chunk(kept, config.BatchSize),
		states:   make(map[string]*models.SymbolSessionState),
	}
	for _, opt := range opts {
		opt(e)
	}

	persisted, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	e.states = persisted
	alerted := lo.CountBy(lo.Values(persisted), func(s *models.SymbolSessionState) bool { return s.Alerted })
	logger.Info("Loaded %d persisted symbol states (%d already alerted)", len(persisted), alerted)

	e.metrics.SetUniverse(len(kept))
	e.metrics.SetTracked(len(e.states))
	return e, nil
}

// Extrapolate projects accumulated volume to a full session given the elapsed fraction.
// The fraction is clamped to [Epsilon, 1].
func Extrapolate(accumulated, fraction float64) float64 {
	return accumulated / clampFraction(fraction)
}

func clampFraction(f float64) float64 {
	return math.Min(1, math.Max(Epsilon, f))
}

// Batches returns the number of batches in one full sweep.
func (e *Engine) Batches() int {
	return len(e.batches)
}

// State returns the tracking record for symbol, if any.
func (e *Engine) State(symbol string) (*models.SymbolSessionState, bool) {
	s, ok := e.states[symbol]
	return s, ok
}

func (e *Engine) getOrCreateState(symbol string) *models.SymbolSessionState {
	if state, exists := e.states[symbol]; exists {
		return state
	}
	state := models.NewSymbolSessionState(symbol)
	e.states[symbol] = state
	return state
}

// PollTick polls the next batch, updates state and fires alerts. When the cursor
// wraps back to the first batch, or when an alert fired, the state is checkpointed;
// a checkpoint failure is returned.
func (e *Engine) PollTick(ctx context.Context) error {
	if len(e.batches) == 0 {
		return nil
	}

	now := e.clock.Now()
	fraction := e.clock.Fraction(now)
	batch := e.batches[e.cursor]
	e.metrics.RecordTick(fraction)

	instruments := lo.Map(batch, func(c models.Candidate, _ int) models.Instrument {
		return c.Instrument()
	})

	start := time.Now()
	quotes, err := e.quotes.GetBatch(ctx, instruments)
	e.metrics.RecordPollLatency(time.Since(start).Seconds())

	fired := 0
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.metrics.RecordBatchFailure()
		e.handleBatchResult(fmt.Errorf("batch %d/%d: %w", e.cursor+1, len(e.batches), err))
	} else {
		e.handleBatchResult(nil)
		missing := 0
		for _, c := range batch {
			q, ok := quotes[c.Symbol]
			if !ok {
				missing++
				continue
			}
			if e.observe(ctx, c, q, now, fraction) {
				fired++
			}
		}
		if missing > 0 {
			logger.Debug("Batch %d/%d: %d symbols missing from response", e.cursor+1, len(e.batches), missing)
			e.metrics.RecordMissing(missing)
		}
	}
	e.metrics.SetTracked(len(e.states))

	e.cursor = (e.cursor + 1) % len(e.batches)
	if e.cursor == 0 {
		logger.Debug("Sweep complete over %d symbols, checkpointing", len(e.universe))
		return e.checkpoint()
	}
	if fired > 0 {
		return e.checkpoint()
	}
	return nil
}

// observe applies one quote to its symbol's state. It reports whether an alert fired.
func (e *Engine) observe(ctx context.Context, c models.Candidate, q models.Quote, now time.Time, fraction float64) bool {
	state := e.getOrCreateState(c.Symbol)
	state.LastObservedAt = now
	state.LastQuoteTimestamp = q.Timestamp

	projected := Extrapolate(q.AccumulatedVolume, fraction)
	state.ProjectedFullDayVolume = projected
	state.HasProjection = true

	e.maybeSample(state, now, q.AccumulatedVolume)

	if state.Alerted {
		return false
	}

	baseline := c.BaselineLots(e.config.LotSize)
	if projected < baseline*e.config.VolumeMultiplier {
		return false
	}

	// The price gate only trusts an actual trade; bid/ask fallbacks are for display.
	if e.config.RequirePriceRise && (q.LatestTradePrice == nil || *q.LatestTradePrice <= c.ClosingPrice) {
		return false
	}
	price, priceOK := quote.DisplayPrice(q)

	state.Alerted = true
	state.AlertedAt = now

	alert := models.Alert{
		ID:                uuid.NewString(),
		SessionDate:       calendar.FormatROC(e.clock.SessionDate(now), ""),
		Symbol:            c.Symbol,
		Exchange:          c.Exchange,
		Name:              lo.Ternary(q.Name != "", q.Name, c.Name),
		BaselineVolume:    baseline,
		ProjectedVolume:   projected,
		AccumulatedVolume: q.AccumulatedVolume,
		SessionFraction:   clampFraction(fraction),
		CurrentPrice:      price,
		PriceAvailable:    priceOK,
		PreviousClose:     c.ClosingPrice,
		DetectedAt:        now,
	}
	logger.Info("Volume breakout %s %s: projected %.0f vs baseline %.0f (x%.2f) at %.1f%% of session",
		alert.Symbol, alert.Name, alert.ProjectedVolume, alert.BaselineVolume, alert.Ratio(), alert.SessionFraction*100)
	e.metrics.RecordAlert(string(c.Exchange))

	for _, sink := range e.sinks {
		if err := sink.Notify(ctx, alert); err != nil {
			logger.Error("Failed to deliver alert for %s: %v", alert.Symbol, err)
		}
	}
	return true
}

func (e *Engine) maybeSample(state *models.SymbolSessionState, now time.Time, cumulative float64) {
	every := e.config.SampleEveryMinutes
	if every <= 0 || now.Minute()%every != 0 {
		return
	}
	if last, ok := state.LastSample(); ok && last.Time.Truncate(time.Minute).Equal(now.Truncate(time.Minute)) {
		return
	}
	state.AppendSample(now, cumulative)
}

// handleBatchResult reports the first failure of a streak and the recovery after it.
func (e *Engine) handleBatchResult(err error) {
	if err != nil {
		e.consecutiveFailures++
		logger.Error("Quote batch failed: %v", err)
		if e.consecutiveFailures == 1 && e.reporter != nil {
			if sendErr := e.reporter.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification: %v", sendErr)
			}
		}
		return
	}
	if e.consecutiveFailures > 0 && e.reporter != nil {
		if sendErr := e.reporter.SendRecovery(e.consecutiveFailures); sendErr != nil {
			logger.Warn("Failed to send recovery notification: %v", sendErr)
		}
	}
	e.consecutiveFailures = 0
}

func (e *Engine) checkpoint() error {
	err := e.store.Save(e.states)
	e.metrics.RecordCheckpoint(err)
	if err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// Shutdown writes a final checkpoint.
func (e *Engine) Shutdown() error {
	logger.Info("Checkpointing %d symbol states before shutdown", len(e.states))
	return e.checkpoint()
}

// Run waits for the session to open, then polls one batch per tick until the
// session closes or ctx is cancelled. Both exits write a final checkpoint.
func (e *Engine) Run(ctx context.Context) error {
	now := e.clock.Now()
	open, closeAt := e.clock.OpenAt(now), e.clock.CloseAt(now)

	if !now.Before(closeAt) {
		logger.Info("Session already closed at %s", closeAt.Format("15:04"))
		return e.Shutdown()
	}
	if now.Before(open) {
		logger.Info("Waiting %v for session open at %s", open.Sub(now).Round(time.Second), open.Format("15:04"))
		timer := time.NewTimer(open.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return e.Shutdown()
		case <-timer.C:
		}
	}

	logger.Info("Watching %d candidates in %d batches (tick %v, multiplier %.1f)",
		len(e.universe), len(e.batches), e.config.TickInterval, e.config.VolumeMultiplier)

	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	tick := func() (bool, error) {
		if !e.clock.Now().Before(closeAt) {
			logger.Info("Session closed")
			return true, e.Shutdown()
		}
		if err := e.PollTick(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true, e.Shutdown()
			}
			return true, err
		}
		return false, nil
	}

	if done, err := tick(); done {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return e.Shutdown()
		case <-ticker.C:
			if done, err := tick(); done {
				return err
			}
		}
	}
}
