package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "USD", cfg.FX.Anchor)
	assert.Equal(t, int32(2), cfg.Numeric.MoneyScale)
	assert.Equal(t, int32(6), cfg.Numeric.AverageScale)
	assert.Equal(t, int32(8), cfg.Numeric.RateScale)
	assert.False(t, cfg.FX.IgnoreRates)
	assert.Equal(t, time.Date(1999, time.January, 4, 0, 0, 0, 0, time.UTC), cfg.FX.GetEarliest())

	eodhd, ok := cfg.MarketData.Provider("eodhd")
	require.True(t, ok)
	assert.Equal(t, ProviderEODHD, eodhd.ID)
	assert.True(t, eodhd.SupportsMarket("asx"))
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TALLY_ENV", "production")
	t.Setenv("TALLY_LOG_LEVEL", "debug")
	t.Setenv("TALLY_FX_ANCHOR", "eur")
	t.Setenv("TALLY_IGNORE_RATES", "true")
	t.Setenv("EODHD_API_KEY", "eodhd-key")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "EUR", cfg.FX.Anchor)
	assert.True(t, cfg.FX.IgnoreRates)

	eodhd, _ := cfg.MarketData.Provider(ProviderEODHD)
	assert.Equal(t, "eodhd-key", eodhd.APIKey)
	assert.Equal(t, 50, eodhd.BatchSize, "env key must not clobber other provider settings")
}

func TestConfig_InvalidIgnoreRatesIgnored(t *testing.T) {
	t.Setenv("TALLY_IGNORE_RATES", "sometimes")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)
	assert.False(t, cfg.FX.IgnoreRates)
}

func TestLoadConfig_MergesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "tally.toml")
	second := filepath.Join(dir, "tally.local.toml")

	require.NoError(t, os.WriteFile(first, []byte(`
environment = "staging"

[fx]
anchor = "eur"
ignore_rates = true

[marketdata.retry]
max_attempts = 5

[marketdata.providers.custom]
batch_size = 2
markets = ["XTEST"]

[markets.xtest]
currency = "nzd"
timezone = "Pacific/Auckland"
provider = "custom"
aliases = { custom = "XT" }
`), 0o644))
	require.NoError(t, os.WriteFile(second, []byte(`
[fx]
ignore_rates = false
`), 0o644))

	cfg, err := LoadConfig(first, second, filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "EUR", cfg.FX.Anchor)
	assert.False(t, cfg.FX.IgnoreRates)
	assert.Equal(t, 5, cfg.MarketData.Retry.MaxAttempts)

	custom, ok := cfg.MarketData.Providers["CUSTOM"]
	require.True(t, ok)
	assert.Equal(t, "CUSTOM", custom.ID)
	assert.Equal(t, 2, custom.BatchSize)

	market, ok := cfg.Markets["XTEST"]
	require.True(t, ok)
	assert.Equal(t, "NZD", market.Currency)
	assert.Equal(t, "CUSTOM", market.Provider)
	assert.Equal(t, "XT", market.Aliases["CUSTOM"])

	// defaults survive a partial file
	_, ok = cfg.Markets["ASX"]
	assert.True(t, ok)
}

func TestLoadConfig_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[fx\nanchor="), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDurations_FallBackOnInvalid(t *testing.T) {
	md := MarketDataConfig{Timeout: "nonsense"}
	assert.Equal(t, 30*time.Second, md.GetTimeout())

	md.Timeout = "250ms"
	assert.Equal(t, 250*time.Millisecond, md.GetTimeout())

	retry := RetryConfig{InitialInterval: "-1s"}
	assert.Equal(t, 500*time.Millisecond, retry.GetInitialInterval())
	assert.Equal(t, 5*time.Second, retry.GetMaxInterval())
}
