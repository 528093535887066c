// Package common provides shared utilities for tally
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/tally/internal/models"
)

// Provider ids known to the application wiring
const (
	ProviderEODHD = "EODHD"
	ProviderAlpha = "ALPHA"
	ProviderASX   = "ASX"
)

// Config holds all configuration for tally
type Config struct {
	Environment string                  `toml:"environment"`
	Logging     LoggingConfig           `toml:"logging"`
	Numeric     NumericConfig           `toml:"numeric"`
	FX          FXConfig                `toml:"fx"`
	MarketData  MarketDataConfig        `toml:"marketdata"`
	Markets     map[string]MarketConfig `toml:"markets"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"` // "json" or "console"
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NumericConfig holds the decimal scales used by the accumulator and FX resolver.
// All rounding is HALF_UP.
type NumericConfig struct {
	MoneyScale   int32 `toml:"money_scale"`
	AverageScale int32 `toml:"average_scale"`
	RateScale    int32 `toml:"rate_scale"`
}

// FXConfig configures the rate table source and rate binding.
type FXConfig struct {
	Anchor      string `toml:"anchor"`
	BaseURL     string `toml:"base_url"`
	Timeout     string `toml:"timeout"`
	RateLimit   int    `toml:"rate_limit"`
	Earliest    string `toml:"earliest"`     // earliest date the source publishes, YYYY-MM-DD
	IgnoreRates bool   `toml:"ignore_rates"` // discard rates supplied on transactions
}

// GetTimeout parses and returns the timeout duration
func (c *FXConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// GetEarliest parses the earliest coverage date, defaulting to 1999-01-04.
func (c *FXConfig) GetEarliest() time.Time {
	d, err := time.Parse("2006-01-02", c.Earliest)
	if err != nil {
		return time.Date(1999, time.January, 4, 0, 0, 0, 0, time.UTC)
	}
	return d
}

// MarketDataConfig configures price provider dispatch.
type MarketDataConfig struct {
	Timeout   string                           `toml:"timeout"` // per batch call
	Retry     RetryConfig                      `toml:"retry"`
	Providers map[string]models.ProviderConfig `toml:"providers"`
}

// GetTimeout parses and returns the per-batch timeout
func (c *MarketDataConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// Provider returns the named provider config with its ID filled in.
func (c *MarketDataConfig) Provider(id string) (models.ProviderConfig, bool) {
	for key, p := range c.Providers {
		if strings.EqualFold(key, id) {
			if p.ID == "" {
				p.ID = strings.ToUpper(key)
			}
			return p, true
		}
	}
	return models.ProviderConfig{}, false
}

// RetryConfig is the retry policy for system errors on provider batches.
type RetryConfig struct {
	MaxAttempts     int    `toml:"max_attempts"`
	InitialInterval string `toml:"initial_interval"`
	MaxInterval     string `toml:"max_interval"`
}

// GetInitialInterval parses the first backoff interval
func (c *RetryConfig) GetInitialInterval() time.Duration {
	return parseDuration(c.InitialInterval, 500*time.Millisecond)
}

// GetMaxInterval parses the backoff ceiling
func (c *RetryConfig) GetMaxInterval() time.Duration {
	return parseDuration(c.MaxInterval, 5*time.Second)
}

// MarketConfig is the static reference data for one market.
type MarketConfig struct {
	Currency string            `toml:"currency"`
	Timezone string            `toml:"timezone"`
	Provider string            `toml:"provider"`
	Fallback string            `toml:"fallback"` // provider used when Provider is unavailable
	Aliases  map[string]string `toml:"aliases"` // provider id -> provider's market code
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			Outputs:  []string{"console"},
			FilePath: "./logs/tally.log",
		},
		Numeric: NumericConfig{
			MoneyScale:   2,
			AverageScale: 6,
			RateScale:    8,
		},
		FX: FXConfig{
			Anchor:    "USD",
			BaseURL:   "https://api.frankfurter.app",
			Timeout:   "30s",
			RateLimit: 5,
			Earliest:  "1999-01-04",
		},
		MarketData: MarketDataConfig{
			Timeout: "30s",
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: "500ms",
				MaxInterval:     "5s",
			},
			Providers: map[string]models.ProviderConfig{
				ProviderEODHD: {
					ID:        ProviderEODHD,
					BaseURL:   "https://eodhd.com/api",
					BatchSize: 50,
					RateLimit: 10,
					Timeout:   "30s",
					DateLag:   1,
					Markets:   []string{"ASX", "NZX", "NYSE", "NASDAQ", "AMEX", "LSE"},
				},
				ProviderAlpha: {
					ID:        ProviderAlpha,
					BaseURL:   "https://www.alphavantage.co",
					BatchSize: 1,
					RateLimit: 1,
					Timeout:   "30s",
					DateLag:   1,
					Markets:   []string{"NYSE", "NASDAQ", "AMEX", "ASX", "LSE"},
				},
				ProviderASX: {
					ID:        ProviderASX,
					BaseURL:   "https://asx.api.markitdigital.com/asx-research/1.0",
					BatchSize: 1,
					RateLimit: 5,
					Timeout:   "30s",
					Markets:   []string{"ASX"},
				},
			},
		},
		Markets: map[string]MarketConfig{
			"ASX": {
				Currency: "AUD", Timezone: "Australia/Sydney", Provider: ProviderEODHD, Fallback: ProviderASX,
				Aliases: map[string]string{ProviderEODHD: "AU", ProviderAlpha: "AX", ProviderASX: ""},
			},
			"NZX": {
				Currency: "NZD", Timezone: "Pacific/Auckland", Provider: ProviderEODHD,
				Aliases: map[string]string{ProviderEODHD: "NZ"},
			},
			"NASDAQ": {
				Currency: "USD", Timezone: "America/New_York", Provider: ProviderEODHD,
				Aliases: map[string]string{ProviderEODHD: "US", ProviderAlpha: ""},
			},
			"NYSE": {
				Currency: "USD", Timezone: "America/New_York", Provider: ProviderEODHD,
				Aliases: map[string]string{ProviderEODHD: "US", ProviderAlpha: ""},
			},
			"AMEX": {
				Currency: "USD", Timezone: "America/New_York", Provider: ProviderAlpha,
				Aliases: map[string]string{ProviderEODHD: "US", ProviderAlpha: ""},
			},
			"LSE": {
				Currency: "GBP", Timezone: "Europe/London", Provider: ProviderEODHD,
				Aliases: map[string]string{ProviderEODHD: "LSE", ProviderAlpha: "LON"},
			},
			"MOCK": {
				Currency: "USD", Timezone: "UTC",
			},
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// A missing .env is normal outside development
	_ = godotenv.Load()

	applyEnvOverrides(config)
	normalise(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TALLY_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("TALLY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if anchor := os.Getenv("TALLY_FX_ANCHOR"); anchor != "" {
		config.FX.Anchor = strings.ToUpper(anchor)
	}

	if v := os.Getenv("TALLY_IGNORE_RATES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.FX.IgnoreRates = b
		}
	}

	setProviderKey(config, ProviderEODHD, "EODHD_API_KEY", "TALLY_EODHD_API_KEY")
	setProviderKey(config, ProviderAlpha, "ALPHAVANTAGE_API_KEY", "TALLY_ALPHAVANTAGE_API_KEY")
}

func setProviderKey(config *Config, id string, envNames ...string) {
	for _, name := range envNames {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		p, _ := config.MarketData.Provider(id)
		p.ID = id
		p.APIKey = v
		if config.MarketData.Providers == nil {
			config.MarketData.Providers = make(map[string]models.ProviderConfig)
		}
		config.MarketData.Providers[id] = p
		return
	}
}

// normalise upper-cases codes so lookups are case-insensitive and fills
// provider ids from their table keys.
func normalise(config *Config) {
	config.FX.Anchor = strings.ToUpper(config.FX.Anchor)

	providers := make(map[string]models.ProviderConfig, len(config.MarketData.Providers))
	for key, p := range config.MarketData.Providers {
		id := strings.ToUpper(key)
		p.ID = id
		providers[id] = p
	}
	config.MarketData.Providers = providers

	markets := make(map[string]MarketConfig, len(config.Markets))
	for code, m := range config.Markets {
		aliases := make(map[string]string, len(m.Aliases))
		for provider, alias := range m.Aliases {
			aliases[strings.ToUpper(provider)] = alias
		}
		m.Aliases = aliases
		m.Provider = strings.ToUpper(m.Provider)
		m.Fallback = strings.ToUpper(m.Fallback)
		m.Currency = strings.ToUpper(m.Currency)
		markets[strings.ToUpper(code)] = m
	}
	config.Markets = markets
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
