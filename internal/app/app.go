// Package app wires configuration, clients and services into a single
// container shared by the CLI commands.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/tally/internal/clients/alphavantage"
	"github.com/bobmcallan/tally/internal/clients/asx"
	"github.com/bobmcallan/tally/internal/clients/eodhd"
	"github.com/bobmcallan/tally/internal/clients/frankfurter"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/services/accumulator"
	"github.com/bobmcallan/tally/internal/services/fx"
	"github.com/bobmcallan/tally/internal/services/marketdata"
	"github.com/bobmcallan/tally/internal/services/portfolio"
	"github.com/bobmcallan/tally/internal/services/reference"
	"github.com/bobmcallan/tally/internal/services/valuation"
)

// App holds all initialized services and clients.
type App struct {
	Config            *common.Config
	Logger            *common.Logger
	RateSource        interfaces.RateSource
	Providers         []interfaces.PriceProvider
	ReferenceService  interfaces.ReferenceService
	FxService         interfaces.FxService
	MarketDataService interfaces.MarketDataService
	Accumulator       interfaces.AccumulatorService
	ValuationService  interfaces.ValuationService
	PortfolioService  *portfolio.Service
	StartupTime       time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPaths returns the config files to load, in merge order.
// An explicit path wins; otherwise TALLY_CONFIG, then tally.toml beside the
// binary, then config/tally.toml for development. A tally.local.toml next
// to the chosen file is layered on top when present.
func ResolveConfigPaths(configPath string) []string {
	if configPath == "" {
		configPath = os.Getenv("TALLY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "tally.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = filepath.Join("config", "tally.toml")
		}
	}
	local := filepath.Join(filepath.Dir(configPath), "tally.local.toml")
	return []string{configPath, local}
}

// NewApp loads configuration and initializes every client and service.
// configPath may be empty, in which case ResolveConfigPaths applies.
func NewApp(configPath string) (*App, error) {
	config, err := common.LoadConfig(ResolveConfigPaths(configPath)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative log file path to binary directory
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(getBinaryDir(), config.Logging.FilePath)
	}

	return NewAppWithConfig(config, common.NewLoggerFromConfig(config.Logging)), nil
}

// NewAppWithConfig wires the services for an already loaded config.
func NewAppWithConfig(config *common.Config, logger *common.Logger) *App {
	startupStart := time.Now()

	fxOpts := []frankfurter.ClientOption{
		frankfurter.WithLogger(logger.WithComponent("frankfurter")),
		frankfurter.WithRateLimit(config.FX.RateLimit),
		frankfurter.WithTimeout(config.FX.GetTimeout()),
		frankfurter.WithEarliest(config.FX.GetEarliest()),
	}
	if config.FX.BaseURL != "" {
		fxOpts = append(fxOpts, frankfurter.WithBaseURL(config.FX.BaseURL))
	}
	rates := frankfurter.NewClient(fxOpts...)

	providers := NewProviders(config.MarketData, logger)

	referenceService := reference.NewService(config.Markets, logger.WithComponent("reference"))
	fxService := fx.NewService(rates, referenceService, config.FX, config.Numeric, logger.WithComponent("fx"))
	marketDataService := marketdata.NewService(providers, config.MarketData, logger.WithComponent("marketdata"))
	acc := accumulator.NewAccumulator(config.Numeric, logger.WithComponent("accumulator"))
	valuationService := valuation.NewService(marketDataService, fxService, config.Numeric, logger.WithComponent("valuation"))
	portfolioService := portfolio.NewService(fxService, acc, valuationService, logger.WithComponent("portfolio"))

	ids := make([]string, 0, len(providers))
	for _, p := range providers {
		ids = append(ids, p.ID())
	}
	logger.Info().
		Strs("providers", ids).
		Int("markets", len(config.Markets)).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return &App{
		Config:            config,
		Logger:            logger,
		RateSource:        rates,
		Providers:         providers,
		ReferenceService:  referenceService,
		FxService:         fxService,
		MarketDataService: marketDataService,
		Accumulator:       acc,
		ValuationService:  valuationService,
		PortfolioService:  portfolioService,
		StartupTime:       startupStart,
	}
}

// NewProviders builds a client for every configured provider that has the
// credentials it needs. Markets routed to a provider without a key fall back
// to the default provider and price at zero.
func NewProviders(config common.MarketDataConfig, logger *common.Logger) []interfaces.PriceProvider {
	var providers []interfaces.PriceProvider

	if cfg, ok := config.Provider(common.ProviderEODHD); ok {
		if cfg.APIKey != "" {
			providers = append(providers, eodhd.NewClient(cfg, eodhd.WithLogger(logger.WithComponent("eodhd"))))
		} else {
			logger.Warn().Msg("EODHD API key not configured - its markets will price at zero")
		}
	}

	if cfg, ok := config.Provider(common.ProviderAlpha); ok {
		if cfg.APIKey != "" {
			providers = append(providers, alphavantage.NewClient(cfg, alphavantage.WithLogger(logger.WithComponent("alphavantage"))))
		} else {
			logger.Warn().Msg("Alpha Vantage API key not configured - its markets will price at zero")
		}
	}

	// Markit quotes need no key
	if cfg, ok := config.Provider(common.ProviderASX); ok {
		providers = append(providers, asx.NewClient(cfg, asx.WithLogger(logger.WithComponent("asx"))))
	}

	return providers
}
