package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/rewired-gh/volspike/internal/config"
	"github.com/rewired-gh/volspike/internal/logger"
	"github.com/rewired-gh/volspike/internal/screener"
	"github.com/rewired-gh/volspike/internal/snapshot"
	"github.com/rewired-gh/volspike/internal/storage"
)

const usage = `Usage: volspike <command> [flags]

Commands:
  screen   screen daily snapshots and write candidate files
  watch    track candidates during the trading session and alert on volume spikes
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "screen":
		runScreen(args)
	case "watch":
		runWatch(args)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}

// loadConfig loads, validates and applies the logging section of the config file.
func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", path)
	return cfg
}

func openJournal(cfg *config.Config) *storage.Storage {
	store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	return store
}

func closeJournal(store *storage.Storage) {
	if err := store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
}

func newRunner(cfg *config.Config, journal screener.Journal) *screener.Runner {
	return &screener.Runner{
		Screener:    screener.New(snapshot.NewStore(cfg.Snapshot.DataDir)),
		OutputDir:   cfg.Screener.OutputDir,
		Window:      cfg.Screener.Window,
		CVThreshold: cfg.Screener.CVThreshold,
		Journal:     journal,
	}
}

func configFlag(fs *pflag.FlagSet) *string {
	return fs.StringP("config", "c", "configs/config.yaml", "Path to configuration file")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
