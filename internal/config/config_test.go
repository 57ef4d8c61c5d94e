package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("an explicitly named missing file must fail")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load with defaults failed: %v", err)
	}
	if cfg.App.Name != "tradesentry" {
		t.Fatalf("unexpected app name %q", cfg.App.Name)
	}
	if cfg.Throttle.MinInterval != 5*time.Minute {
		t.Fatalf("unexpected default min_interval %s", cfg.Throttle.MinInterval)
	}
	if cfg.Jobs.DailyReportAt != "08:00" {
		t.Fatalf("unexpected daily report time %q", cfg.Jobs.DailyReportAt)
	}
	if len(cfg.Watchlist.Symbols) == 0 {
		t.Fatal("default watchlist must not be empty")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
app:
  environment: production
throttle:
  min_interval: 10m
  min_price_change_pct: 2.5
  profiles:
    aggressive:
      min_interval: 2m
  symbols:
    BTCUSDT:
      min_price_change_pct: 0.5
watchlist:
  symbols:
    - BTCUSDT
    - SOLUSDT
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.App.Environment != "production" {
		t.Fatalf("unexpected environment %q", cfg.App.Environment)
	}
	if cfg.Throttle.MinInterval != 10*time.Minute {
		t.Fatalf("unexpected min_interval %s", cfg.Throttle.MinInterval)
	}
	if len(cfg.Watchlist.Symbols) != 2 {
		t.Fatalf("unexpected watchlist %v", cfg.Watchlist.Symbols)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			Throttle:  ThrottleConfig{MinInterval: 5 * time.Minute, MinPriceChangePct: 1.0},
			Watchlist: WatchlistConfig{Symbols: []string{"BTCUSDT"}},
			Jobs: JobsConfig{
				SweepInterval:   5 * time.Second,
				DailyReportAt:   "08:00",
				NightlyCheckAt:  "02:30",
				ReconcileMinute: 5,
				Tolerance:       time.Minute,
			},
			Export: ExportConfig{MaxDataPoints: 1000},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("baseline must validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero min interval", func(c *Config) { c.Throttle.MinInterval = 0 }},
		{"negative change pct", func(c *Config) { c.Throttle.MinPriceChangePct = -1 }},
		{"empty watchlist", func(c *Config) { c.Watchlist.Symbols = nil }},
		{"bad report time", func(c *Config) { c.Jobs.DailyReportAt = "25:00" }},
		{"bad reconcile minute", func(c *Config) { c.Jobs.ReconcileMinute = 61 }},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" }},
		{"telegram without chat", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.BotToken = "t" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation failure")
			}
		})
	}
}

func TestParseClockTime(t *testing.T) {
	hour, minute, err := ParseClockTime("08:30")
	if err != nil || hour != 8 || minute != 30 {
		t.Fatalf("expected 8:30, got %d:%d err=%v", hour, minute, err)
	}

	for _, bad := range []string{"", "8", "24:00", "08:60", "ab:cd"} {
		if _, _, err := ParseClockTime(bad); err == nil {
			t.Fatalf("%q should not parse", bad)
		}
	}
}

func TestResolveThresholdsLayering(t *testing.T) {
	cfg := &Config{
		Throttle: ThrottleConfig{
			MinInterval:       5 * time.Minute,
			MinPriceChangePct: 1.0,
			Profiles: map[string]ThresholdOverride{
				"aggressive": {MinInterval: 2 * time.Minute},
			},
			Symbols: map[string]ThresholdOverride{
				"BTCUSDT": {MinPriceChangePct: 0.5},
			},
		},
	}

	// Global defaults only.
	th := cfg.ResolveThresholds("ETHUSDT", "momentum", "balanced")
	if th.MinInterval != 5*time.Minute || !th.MinPriceChangePct.Equal(decimal.NewFromFloat(1.0)) {
		t.Fatalf("unexpected global thresholds %#v", th)
	}

	// Profile override replaces only its non-zero fields.
	th = cfg.ResolveThresholds("ETHUSDT", "momentum", "aggressive")
	if th.MinInterval != 2*time.Minute {
		t.Fatalf("profile interval should apply, got %s", th.MinInterval)
	}
	if !th.MinPriceChangePct.Equal(decimal.NewFromFloat(1.0)) {
		t.Fatalf("profile must not clobber the change pct, got %s", th.MinPriceChangePct)
	}

	// Symbol override wins over profile and global.
	th = cfg.ResolveThresholds("BTCUSDT", "momentum", "aggressive")
	if th.MinInterval != 2*time.Minute || !th.MinPriceChangePct.Equal(decimal.NewFromFloat(0.5)) {
		t.Fatalf("symbol layer should win, got %#v", th)
	}
}
