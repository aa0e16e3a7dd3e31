package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Budget: BudgetConfig{MaxPrice: 900, Currency: "USD"},
		Scoring: ScoringConfig{
			BaselineDays:  30,
			MinSamples:    5,
			DiscountMin:   0.25,
			DiscountMax:   0.75,
			DedupeDropPct: 0.05,
		},
		Scheduler: SchedulerConfig{Interval: 6 * time.Hour},
		Export:    ExportConfig{MaxDataPoints: 1000},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config should pass: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		keyword string
	}{
		{"zero budget", func(c *Config) { c.Budget.MaxPrice = 0 }, "max_price"},
		{"zero baseline window", func(c *Config) { c.Scoring.BaselineDays = 0 }, "baseline_days"},
		{"zero min samples", func(c *Config) { c.Scoring.MinSamples = 0 }, "min_samples"},
		{"negative discount min", func(c *Config) { c.Scoring.DiscountMin = -0.1 }, "discount_min"},
		{"discount min at one", func(c *Config) { c.Scoring.DiscountMin = 1.0 }, "discount_min"},
		{"discount max at one", func(c *Config) { c.Scoring.DiscountMax = 1.0 }, "discount_max"},
		{"inverted band", func(c *Config) { c.Scoring.DiscountMax = 0.2; c.Scoring.DiscountMin = 0.3 }, "discount_max"},
		{"equal band edges", func(c *Config) { c.Scoring.DiscountMax = 0.25 }, "discount_max"},
		{"dedupe pct at one", func(c *Config) { c.Scoring.DedupeDropPct = 1.0 }, "dedupe_drop_pct"},
		{"zero interval", func(c *Config) { c.Scheduler.Interval = 0 }, "interval"},
		{"whatsapp missing sid", func(c *Config) {
			c.Alerting.WhatsApp.Enabled = true
			c.Alerting.WhatsApp.AuthToken = "tok"
			c.Alerting.WhatsApp.FromNumber = "+1"
			c.Alerting.WhatsApp.ToNumber = "+2"
		}, "account_sid"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.keyword) {
				t.Fatalf("error %q should mention %q", err, tc.keyword)
			}
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := validConfig()
	if got := cfg.ResolveMaxPoints(0); got != 1000 {
		t.Fatalf("expected config default 1000, got %d", got)
	}
	if got := cfg.ResolveMaxPoints(50); got != 50 {
		t.Fatalf("expected override 50, got %d", got)
	}
}
