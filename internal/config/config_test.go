package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/volspike/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	content := `
exchanges:
  - twse
  - tpex

snapshot:
  data_dir: "./raw_stock_data/daily"

screener:
  window: 5
  cv_threshold: 0.5
  output_dir: "./data"

trigger:
  tick_interval: 2s
  batch_size: 100
  volume_multiplier: 2.0
  require_price_rise: true

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

storage:
  db_path: "./data/test.db"

logging:
  level: "info"
  format: "json"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if got := cfg.ExchangeList(); len(got) != 2 || got[1] != models.ExchangeTPEX {
		t.Errorf("ExchangeList() = %v", got)
	}
	if cfg.Trigger.TickInterval != 2*time.Second {
		t.Errorf("Expected tick interval 2s, got %v", cfg.Trigger.TickInterval)
	}
	if !cfg.Trigger.RequirePriceRise {
		t.Error("Expected require_price_rise to be true")
	}
	if cfg.Telegram.BotToken != "test_token" {
		t.Errorf("Expected bot token test_token, got %s", cfg.Telegram.BotToken)
	}

	// Defaults fill what the file omits.
	if cfg.Session.Open != "09:00" || cfg.Session.Close != "13:30" {
		t.Errorf("Expected default session 09:00-13:30, got %s-%s", cfg.Session.Open, cfg.Session.Close)
	}
	if cfg.Trigger.LotSize != 1000 {
		t.Errorf("Expected default lot size 1000, got %v", cfg.Trigger.LotSize)
	}
	if cfg.Trigger.SampleEveryMinutes != 3 {
		t.Errorf("Expected default sample interval 3, got %d", cfg.Trigger.SampleEveryMinutes)
	}
	if cfg.Quote.Timeout != 10*time.Second {
		t.Errorf("Expected default quote timeout 10s, got %v", cfg.Quote.Timeout)
	}
	if cfg.Quote.MaxRetries != 1 {
		t.Errorf("Expected default quote max_retries 1, got %d", cfg.Quote.MaxRetries)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("VOLSPIKE_TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("VOLSPIKE_TRIGGER_VOLUME_MULTIPLIER", "3.5")

	cfg, err := Load(writeConfig(t, "telegram:\n  bot_token: from-file\ntrigger:\n  volume_multiplier: 2.0\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telegram.BotToken != "from-env" {
		t.Errorf("Expected env override for bot token, got %s", cfg.Telegram.BotToken)
	}
	if cfg.Trigger.VolumeMultiplier != 3.5 {
		t.Errorf("Expected env override for multiplier, got %v", cfg.Trigger.VolumeMultiplier)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidateErrors(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(writeConfig(t, "exchanges: [twse]\n"))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no exchanges", func(c *Config) { c.Exchanges = nil }, "exchanges"},
		{"unknown exchange", func(c *Config) { c.Exchanges = []string{"nyse"} }, "unknown exchange"},
		{"window too small", func(c *Config) { c.Screener.Window = 1 }, "screener.window"},
		{"zero cv threshold", func(c *Config) { c.Screener.CVThreshold = 0 }, "screener.cv_threshold"},
		{"bad timezone", func(c *Config) { c.Session.Timezone = "Mars/Olympus" }, "session.timezone"},
		{"bad open", func(c *Config) { c.Session.Open = "9am" }, "session.open"},
		{"close before open", func(c *Config) { c.Session.Close = "08:00" }, "session.close"},
		{"tick too fast", func(c *Config) { c.Trigger.TickInterval = time.Millisecond }, "trigger.tick_interval"},
		{"zero batch", func(c *Config) { c.Trigger.BatchSize = 0 }, "trigger.batch_size"},
		{"zero multiplier", func(c *Config) { c.Trigger.VolumeMultiplier = 0 }, "trigger.volume_multiplier"},
		{"zero lot size", func(c *Config) { c.Trigger.LotSize = 0 }, "trigger.lot_size"},
		{"zero quote timeout", func(c *Config) { c.Quote.Timeout = 0 }, "quote.timeout"},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" }, "telegram.bot_token"},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.ListenAddr = "" }, "metrics.listen_addr"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}
