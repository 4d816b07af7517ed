// Package config loads and validates the YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rewired-gh/volspike/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Exchanges []string       `mapstructure:"exchanges"`
	Snapshot  SnapshotConfig `mapstructure:"snapshot"`
	Screener  ScreenerConfig `mapstructure:"screener"`
	Session   SessionConfig  `mapstructure:"session"`
	Trigger   TriggerConfig  `mapstructure:"trigger"`
	Quote     QuoteConfig    `mapstructure:"quote"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	Storage   StorageConfig  `mapstructure:"storage"`
	Metrics   MetricsConfig  `mapstructure:"metrics"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

// SnapshotConfig locates the daily end-of-day tables
type SnapshotConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// ScreenerConfig holds candidate screening parameters
type ScreenerConfig struct {
	Window      int     `mapstructure:"window"`
	CVThreshold float64 `mapstructure:"cv_threshold"`
	OutputDir   string  `mapstructure:"output_dir"`
}

// SessionConfig describes the trading session window
type SessionConfig struct {
	Timezone string `mapstructure:"timezone"`
	Open     string `mapstructure:"open"`
	Close    string `mapstructure:"close"`
}

// TriggerConfig holds realtime trigger engine configuration
type TriggerConfig struct {
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	BatchSize          int           `mapstructure:"batch_size"`
	VolumeMultiplier   float64       `mapstructure:"volume_multiplier"`
	SampleEveryMinutes int           `mapstructure:"sample_every_minutes"`
	LotSize            float64       `mapstructure:"lot_size"`
	RequirePriceRise   bool          `mapstructure:"require_price_rise"`
	ScreenOnStart      bool          `mapstructure:"screen_on_start"`
	SuspendedPath      string        `mapstructure:"suspended_path"`
	StateDir           string        `mapstructure:"state_dir"`
}

// QuoteConfig holds quote API configuration
type QuoteConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds journal persistence configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// MetricsConfig holds Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. VOLSPIKE_TELEGRAM_BOT_TOKEN
	v.SetEnvPrefix("VOLSPIKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("exchanges", []string{"twse"})

	v.SetDefault("snapshot.data_dir", "./raw_stock_data/daily")

	// Screener defaults
	v.SetDefault("screener.window", 5)
	v.SetDefault("screener.cv_threshold", 0.5)
	v.SetDefault("screener.output_dir", "./data")

	// Session defaults
	v.SetDefault("session.timezone", "Asia/Taipei")
	v.SetDefault("session.open", "09:00")
	v.SetDefault("session.close", "13:30")

	// Trigger defaults
	v.SetDefault("trigger.tick_interval", "2s")
	v.SetDefault("trigger.batch_size", 100)
	v.SetDefault("trigger.volume_multiplier", 2.0)
	v.SetDefault("trigger.sample_every_minutes", 3)
	v.SetDefault("trigger.lot_size", 1000.0)
	v.SetDefault("trigger.require_price_rise", false)
	v.SetDefault("trigger.screen_on_start", true)
	v.SetDefault("trigger.suspended_path", "./raw_stock_data/suspend_trading.json")
	v.SetDefault("trigger.state_dir", "./data")

	// Quote defaults
	v.SetDefault("quote.base_url", "https://mis.twse.com.tw/stock/api/getStockInfo.jsp")
	v.SetDefault("quote.timeout", "10s")
	v.SetDefault("quote.requests_per_second", 1.0)
	v.SetDefault("quote.max_retries", 1)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/journal.db")
	v.SetDefault("storage.max_runs", 60)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9108")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if len(c.Exchanges) == 0 {
		return fmt.Errorf("exchanges must contain at least one exchange")
	}
	for _, ex := range c.Exchanges {
		if _, err := models.ParseExchange(ex); err != nil {
			return fmt.Errorf("exchanges: %w", err)
		}
	}

	if c.Snapshot.DataDir == "" {
		return fmt.Errorf("snapshot.data_dir is required")
	}

	// Validate Screener config
	if c.Screener.Window < 2 {
		return fmt.Errorf("screener.window must be at least 2")
	}
	if c.Screener.CVThreshold <= 0 {
		return fmt.Errorf("screener.cv_threshold must be positive")
	}
	if c.Screener.OutputDir == "" {
		return fmt.Errorf("screener.output_dir is required")
	}

	// Validate Session config
	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("session.timezone is invalid: %w", err)
	}
	open, err := time.Parse("15:04", c.Session.Open)
	if err != nil {
		return fmt.Errorf("session.open must be HH:MM")
	}
	closeAt, err := time.Parse("15:04", c.Session.Close)
	if err != nil {
		return fmt.Errorf("session.close must be HH:MM")
	}
	if !closeAt.After(open) {
		return fmt.Errorf("session.close must be after session.open")
	}

	// Validate Trigger config
	if c.Trigger.TickInterval < 100*time.Millisecond {
		return fmt.Errorf("trigger.tick_interval must be at least 100ms")
	}
	if c.Trigger.BatchSize < 1 {
		return fmt.Errorf("trigger.batch_size must be at least 1")
	}
	if c.Trigger.VolumeMultiplier <= 0 {
		return fmt.Errorf("trigger.volume_multiplier must be positive")
	}
	if c.Trigger.SampleEveryMinutes < 0 || c.Trigger.SampleEveryMinutes > 60 {
		return fmt.Errorf("trigger.sample_every_minutes must be between 0 and 60")
	}
	if c.Trigger.LotSize <= 0 {
		return fmt.Errorf("trigger.lot_size must be positive")
	}
	if c.Trigger.StateDir == "" {
		return fmt.Errorf("trigger.state_dir is required")
	}

	// Validate Quote config
	if c.Quote.BaseURL == "" {
		return fmt.Errorf("quote.base_url is required")
	}
	if c.Quote.Timeout <= 0 {
		return fmt.Errorf("quote.timeout must be positive")
	}
	if c.Quote.RequestsPerSecond < 0 {
		return fmt.Errorf("quote.requests_per_second must not be negative")
	}
	if c.Quote.MaxRetries < 1 {
		return fmt.Errorf("quote.max_retries must be at least 1")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.MaxRuns < 0 {
		return fmt.Errorf("storage.max_runs must not be negative")
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics.listen_addr is required when metrics are enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// ExchangeList returns the configured exchanges. Call after Validate.
func (c *Config) ExchangeList() []models.Exchange {
	out := make([]models.Exchange, 0, len(c.Exchanges))
	for _, ex := range c.Exchanges {
		parsed, _ := models.ParseExchange(ex)
		out = append(out, parsed)
	}
	return out
}

// Location loads the session time zone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Session.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
