package main

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/rewired-gh/volspike/internal/calendar"
	"github.com/rewired-gh/volspike/internal/logger"
	"github.com/rewired-gh/volspike/internal/models"
)

func runScreen(args []string) {
	fs := pflag.NewFlagSet("screen", pflag.ExitOnError)
	configPath := configFlag(fs)
	exchangeFlag := fs.StringP("exchange", "e", "", "Exchange to screen (twse|tpex); defaults to every configured exchange")
	dateFlag := fs.StringP("date", "d", "", "As-of date, e.g. 1140724 or 2025-07-24; defaults to the previous trading day")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)

	exchanges := cfg.ExchangeList()
	if *exchangeFlag != "" {
		ex, err := models.ParseExchange(*exchangeFlag)
		if err != nil {
			logger.Fatal("Invalid --exchange: %v", err)
		}
		exchanges = []models.Exchange{ex}
	}

	asOf := *dateFlag
	if asOf == "" {
		asOf = calendar.FormatROC(calendar.ShiftTradingDays(calendar.Today(cfg.Location()), -1), "")
	}

	ctx, cancel := signalContext()
	defer cancel()

	journal := openJournal(cfg)
	defer closeJournal(journal)

	runner := newRunner(cfg, journal)
	failed := 0
	for _, ex := range exchanges {
		candidates, err := runner.Run(ctx, ex, asOf)
		if err != nil {
			logger.Error("Screening %s as of %s failed: %v", ex, asOf, err)
			failed++
			continue
		}
		logger.Info("Screened %s as of %s: %d candidates", ex, asOf, len(candidates))
	}

	if err := journal.RotateRuns(ctx); err != nil {
		logger.Warn("Failed to rotate screening runs: %v", err)
	}

	if failed > 0 {
		closeJournal(journal)
		os.Exit(1)
	}
}
