package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/rewired-gh/volspike/internal/calendar"
	"github.com/rewired-gh/volspike/internal/config"
	"github.com/rewired-gh/volspike/internal/logger"
	"github.com/rewired-gh/volspike/internal/metrics"
	"github.com/rewired-gh/volspike/internal/models"
	"github.com/rewired-gh/volspike/internal/monitor"
	"github.com/rewired-gh/volspike/internal/quote"
	"github.com/rewired-gh/volspike/internal/screener"
	"github.com/rewired-gh/volspike/internal/session"
	"github.com/rewired-gh/volspike/internal/storage"
	"github.com/rewired-gh/volspike/internal/suspension"
	"github.com/rewired-gh/volspike/internal/telegram"
)

func runWatch(args []string) {
	fs := pflag.NewFlagSet("watch", pflag.ExitOnError)
	configPath := configFlag(fs)
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	loc := cfg.Location()
	today := calendar.Today(loc)

	ctx, cancel := signalContext()
	defer cancel()

	journal := openJournal(cfg)
	defer closeJournal(journal)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		srv := serveMetrics(cfg.Metrics.ListenAddr, reg)
		defer shutdownMetrics(srv)
	}

	universe, err := loadUniverse(ctx, cfg, journal, today, m)
	if err != nil {
		logger.Fatal("Failed to build candidate universe: %v", err)
	}

	suspended, err := suspension.Load(cfg.Trigger.SuspendedPath, today)
	if err != nil {
		logger.Fatal("Failed to load suspension list: %v", err)
	}
	before := len(universe)
	universe = suspended.Exclude(universe)
	logger.Info("Excluded %d suspended symbols, %d candidates remain", before-len(universe), len(universe))

	clock, err := monitor.NewSessionClock(loc, cfg.Session.Open, cfg.Session.Close)
	if err != nil {
		logger.Fatal("Invalid session window: %v", err)
	}

	quotes := quote.NewClient(cfg.Quote.BaseURL, cfg.Quote.Timeout, cfg.Quote.RequestsPerSecond, cfg.Quote.MaxRetries)
	states := session.NewStore(cfg.Trigger.StateDir, today, loc)
	logger.Info("Session state file: %s", states.Path())

	opts := []monitor.Option{monitor.WithSinks(journal), monitor.WithMetrics(m)}
	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
		opts = append(opts, monitor.WithSinks(telegramClient), monitor.WithReporter(telegramClient))
		telegramClient.ListenForCommands(ctx)
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	engine, err := monitor.New(monitor.Config{
		TickInterval:       cfg.Trigger.TickInterval,
		BatchSize:          cfg.Trigger.BatchSize,
		VolumeMultiplier:   cfg.Trigger.VolumeMultiplier,
		SampleEveryMinutes: cfg.Trigger.SampleEveryMinutes,
		LotSize:            cfg.Trigger.LotSize,
		RequirePriceRise:   cfg.Trigger.RequirePriceRise,
	}, clock, universe, quotes, states, opts...)
	if err != nil {
		logger.Fatal("Failed to initialize trigger engine: %v", err)
	}

	if err := engine.Run(ctx); err != nil {
		logger.Fatal("Trigger engine stopped: %v", err)
	}
	logger.Info("Service stopped")
}

// loadUniverse returns the candidates to watch across all configured exchanges.
// With screen_on_start the previous trading day is screened and any failure aborts.
// Otherwise the candidate files are read, falling back to the latest journaled run.
func loadUniverse(ctx context.Context, cfg *config.Config, journal *storage.Storage, today time.Time, m *metrics.Metrics) ([]models.Candidate, error) {
	var universe []models.Candidate

	if cfg.Trigger.ScreenOnStart {
		asOf := calendar.FormatROC(calendar.ShiftTradingDays(today, -1), "")
		runner := newRunner(cfg, journal)
		for _, ex := range cfg.ExchangeList() {
			candidates, err := runner.Run(ctx, ex, asOf)
			if err != nil {
				return nil, err
			}
			m.SetCandidates(string(ex), len(candidates))
			universe = append(universe, candidates...)
		}
		if err := journal.RotateRuns(ctx); err != nil {
			logger.Warn("Failed to rotate screening runs: %v", err)
		}
		return universe, nil
	}

	for _, ex := range cfg.ExchangeList() {
		path := screener.CandidatePath(cfg.Screener.OutputDir, ex)
		candidates, err := screener.ReadCandidates(path)
		if err != nil {
			logger.Warn("Failed to read %s: %v, falling back to journal", path, err)
			run, jerr := journal.LatestRun(ctx, ex)
			if jerr != nil {
				return nil, errors.Join(err, jerr)
			}
			logger.Info("Using journaled %s run as of %s", ex, run.AsOf)
			candidates = run.Candidates
		}
		m.SetCandidates(string(ex), len(candidates))
		universe = append(universe, candidates...)
	}
	return universe, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed: %v", err)
		}
	}()
	return srv
}

func shutdownMetrics(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Failed to stop metrics server: %v", err)
	}
}
