package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"flight-deal-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Travel    TravelConfig    `mapstructure:"travel"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Amadeus   AmadeusConfig   `mapstructure:"amadeus"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs search-cycle cadence for the run command.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignToStart bool          `mapstructure:"align_to_start"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// TravelConfig describes what to search for.
type TravelConfig struct {
	OriginCode           string `mapstructure:"origin_code"`
	DestinationCountry   string `mapstructure:"destination_country"`
	DestinationAirports  int    `mapstructure:"destination_airports_limit"`
	DepartureDaysFromNow int    `mapstructure:"departure_days_from_now"`
	MonthsAhead          int    `mapstructure:"months_ahead"`
}

// BudgetConfig is the absolute price ceiling.
type BudgetConfig struct {
	MaxPrice float64 `mapstructure:"max_price"`
	Currency string  `mapstructure:"currency"`
}

// ScoringConfig parameterises the deal classification rules.
type ScoringConfig struct {
	BaselineDays  int     `mapstructure:"baseline_days"`
	MinSamples    int     `mapstructure:"min_samples"`
	DiscountMin   float64 `mapstructure:"discount_min"`
	DiscountMax   float64 `mapstructure:"discount_max"`
	DedupeDropPct float64 `mapstructure:"dedupe_drop_pct"`
}

// AmadeusConfig covers flight-search API access.
type AmadeusConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	UseMock        bool          `mapstructure:"use_mock"`
}

// AlertingConfig defines alert delivery.
type AlertingConfig struct {
	Enabled          bool           `mapstructure:"enabled"`
	SummaryIfNoDeals bool           `mapstructure:"summary_if_no_deals"`
	WhatsApp         WhatsAppConfig `mapstructure:"whatsapp"`
}

// WhatsAppConfig describes the Twilio WhatsApp channel.
type WhatsAppConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
	ToNumber   string `mapstructure:"to_number"`
	APIBase    string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FAREWATCHER")
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
	v.SetDefault("app.name", "farewatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "6h")
	v.SetDefault("scheduler.align_to_start", false)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("travel.destination_airports_limit", 6)
	v.SetDefault("travel.departure_days_from_now", 14)
	v.SetDefault("travel.months_ahead", 3)

	v.SetDefault("budget.max_price", 900.0)
	v.SetDefault("budget.currency", "USD")

	v.SetDefault("scoring.baseline_days", 30)
	v.SetDefault("scoring.min_samples", 5)
	v.SetDefault("scoring.discount_min", 0.25)
	v.SetDefault("scoring.discount_max", 0.75)
	v.SetDefault("scoring.dedupe_drop_pct", 0.05)

	v.SetDefault("amadeus.base_url", "https://api.amadeus.com")
	v.SetDefault("amadeus.request_timeout", "15s")
	v.SetDefault("amadeus.user_agent", "farewatcher/1.0")
	v.SetDefault("amadeus.use_mock", false)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.summary_if_no_deals", true)
	v.SetDefault("alerting.whatsapp.enabled", false)
	v.SetDefault("alerting.whatsapp.api_base", "https://api.twilio.com")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
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

// Validate performs sanity checks on the configuration values. A failure here
// is fatal at startup; no run may proceed against a malformed scoring config.
func (c *Config) Validate() error {
	if c.Budget.MaxPrice <= 0 {
		return fmt.Errorf("budget.max_price must be greater than zero")
	}
	if c.Scoring.BaselineDays <= 0 {
		return fmt.Errorf("scoring.baseline_days must be greater than zero")
	}
	if c.Scoring.MinSamples < 1 {
		return fmt.Errorf("scoring.min_samples must be at least 1")
	}
	if c.Scoring.DiscountMin < 0 || c.Scoring.DiscountMin >= 1 {
		return fmt.Errorf("scoring.discount_min must be within [0,1)")
	}
	if c.Scoring.DiscountMax >= 1 {
		return fmt.Errorf("scoring.discount_max must be below 1")
	}
	if c.Scoring.DiscountMax <= c.Scoring.DiscountMin {
		return fmt.Errorf("scoring.discount_max must be greater than scoring.discount_min")
	}
	if c.Scoring.DedupeDropPct < 0 || c.Scoring.DedupeDropPct >= 1 {
		return fmt.Errorf("scoring.dedupe_drop_pct must be within [0,1)")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.WhatsApp.Enabled {
		if c.Alerting.WhatsApp.AccountSID == "" {
			return fmt.Errorf("alerting.whatsapp.account_sid is required")
		}
		if c.Alerting.WhatsApp.AuthToken == "" {
			return fmt.Errorf("alerting.whatsapp.auth_token is required")
		}
		if c.Alerting.WhatsApp.FromNumber == "" || c.Alerting.WhatsApp.ToNumber == "" {
			return fmt.Errorf("alerting.whatsapp.from_number and to_number are required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
