package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"tradesentry/internal/logging"
	"tradesentry/internal/throttle"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Watchlist WatchlistConfig `mapstructure:"watchlist"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	Throttle  ThrottleConfig  `mapstructure:"throttle"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata. Environment drives the dispatch gatekeeper.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN runs
// the process on the in-memory snapshot store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ExchangeConfig covers the spot ticker endpoint.
type ExchangeConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// TelegramConfig describes the notification and command channel.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// WatchlistConfig lists the symbols swept by the evaluation loop.
type WatchlistConfig struct {
	Symbols     []string `mapstructure:"symbols"`
	Strategy    string   `mapstructure:"strategy"`
	RiskProfile string   `mapstructure:"risk_profile"`
}

// EvaluatorConfig tunes the built-in reference-price evaluator.
type EvaluatorConfig struct {
	TriggerPct float64       `mapstructure:"trigger_pct"`
	Lookback   time.Duration `mapstructure:"lookback"`
}

// ThresholdOverride overrides selected debounce values; zero values
// inherit from the level below.
type ThresholdOverride struct {
	MinInterval       time.Duration `mapstructure:"min_interval"`
	MinPriceChangePct float64       `mapstructure:"min_price_change_pct"`
}

// ThrottleConfig holds the layered debounce thresholds: global defaults,
// per-risk-profile overrides, per-symbol overrides.
type ThrottleConfig struct {
	MinInterval       time.Duration                `mapstructure:"min_interval"`
	MinPriceChangePct float64                      `mapstructure:"min_price_change_pct"`
	Profiles          map[string]ThresholdOverride `mapstructure:"profiles"`
	Symbols           map[string]ThresholdOverride `mapstructure:"symbols"`
}

// JobsConfig fixes the periodic job windows. Daily and nightly jobs run
// at a wall-clock HH:MM with a small tolerance; the rest are intervals.
type JobsConfig struct {
	SweepInterval           time.Duration `mapstructure:"sweep_interval"`
	DailyReportAt           string        `mapstructure:"daily_report_at"`
	NightlyCheckAt          string        `mapstructure:"nightly_check_at"`
	ReconcileMinute         int           `mapstructure:"reconcile_minute"`
	SnapshotRefreshInterval time.Duration `mapstructure:"snapshot_refresh_interval"`
	CommandPollInterval     time.Duration `mapstructure:"command_poll_interval"`
	Tolerance               time.Duration `mapstructure:"tolerance"`
	Cooldown                time.Duration `mapstructure:"cooldown"`
	EventRetention          time.Duration `mapstructure:"event_retention"`
}

// MetricsConfig controls the /metrics + /healthz listener.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRADESENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tradesentry")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("exchange.base_url", "https://api.binance.com")
	v.SetDefault("exchange.request_timeout", "10s")
	v.SetDefault("exchange.user_agent", "tradesentry/1.0")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.request_timeout", "10s")

	v.SetDefault("watchlist.symbols", []string{"BTCUSDT", "ETHUSDT"})
	v.SetDefault("watchlist.strategy", "momentum")
	v.SetDefault("watchlist.risk_profile", "balanced")

	v.SetDefault("evaluator.trigger_pct", 2.0)
	v.SetDefault("evaluator.lookback", "1h")

	v.SetDefault("throttle.min_interval", "5m")
	v.SetDefault("throttle.min_price_change_pct", 1.0)

	v.SetDefault("jobs.sweep_interval", "5s")
	v.SetDefault("jobs.daily_report_at", "08:00")
	v.SetDefault("jobs.nightly_check_at", "02:30")
	v.SetDefault("jobs.reconcile_minute", 5)
	v.SetDefault("jobs.snapshot_refresh_interval", "2m")
	v.SetDefault("jobs.command_poll_interval", "15s")
	v.SetDefault("jobs.tolerance", "1m")
	v.SetDefault("jobs.cooldown", "90s")
	v.SetDefault("jobs.event_retention", "720h")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9090")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if c.Throttle.MinInterval <= 0 {
		return fmt.Errorf("throttle.min_interval must be greater than zero")
	}
	if c.Throttle.MinPriceChangePct < 0 {
		return fmt.Errorf("throttle.min_price_change_pct cannot be negative")
	}
	if c.Jobs.SweepInterval <= 0 {
		return fmt.Errorf("jobs.sweep_interval must be greater than zero")
	}
	if c.Jobs.Tolerance <= 0 {
		return fmt.Errorf("jobs.tolerance must be greater than zero")
	}
	if c.Jobs.ReconcileMinute < 0 || c.Jobs.ReconcileMinute > 59 {
		return fmt.Errorf("jobs.reconcile_minute must be within 0..59")
	}
	if _, _, err := ParseClockTime(c.Jobs.DailyReportAt); err != nil {
		return fmt.Errorf("jobs.daily_report_at: %w", err)
	}
	if _, _, err := ParseClockTime(c.Jobs.NightlyCheckAt); err != nil {
		return fmt.Errorf("jobs.nightly_check_at: %w", err)
	}
	if len(c.Watchlist.Symbols) == 0 {
		return fmt.Errorf("watchlist.symbols must not be empty")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ParseClockTime parses an "HH:MM" wall-clock string.
func ParseClockTime(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

// ResolveThresholds layers symbol overrides over risk-profile overrides
// over the global defaults for one (symbol, strategy, profile). The
// strategy does not currently carry its own layer but participates in the
// snapshot key, so the signature keeps it explicit.
func (c *Config) ResolveThresholds(symbol, strategy, profile string) throttle.Thresholds {
	th := throttle.Thresholds{
		MinInterval:       c.Throttle.MinInterval,
		MinPriceChangePct: decimal.NewFromFloat(c.Throttle.MinPriceChangePct),
	}

	if override, ok := c.Throttle.Profiles[profile]; ok {
		applyOverride(&th, override)
	}
	if override, ok := c.Throttle.Symbols[symbol]; ok {
		applyOverride(&th, override)
	}
	return th
}

func applyOverride(th *throttle.Thresholds, o ThresholdOverride) {
	if o.MinInterval > 0 {
		th.MinInterval = o.MinInterval
	}
	if o.MinPriceChangePct > 0 {
		th.MinPriceChangePct = decimal.NewFromFloat(o.MinPriceChangePct)
	}
}
