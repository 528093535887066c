// Package interfaces defines service contracts for tally
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// PriceProvider is an upstream market-data source.
type PriceProvider interface {
	// ID returns the provider id markets are configured against
	ID() string

	// Config returns the provider's batching and date configuration
	Config() models.ProviderConfig

	// IsMarketSupported reports whether the provider can price the market
	IsMarketSupported(market models.Market) bool

	// GetPrices prices one batch of comma-joined provider symbols on one
	// market. Results are keyed by provider symbol. Symbols the provider
	// cannot price are simply absent; a non-nil error means the whole batch
	// failed and is wrapped as a common.SystemError when it may be retried.
	GetPrices(ctx context.Context, market models.Market, symbols string, date time.Time) (map[string]*models.PriceResult, error)
}

// RateSource supplies anchor-denominated FX rate tables.
type RateSource interface {
	// GetRates returns the rates of symbols against anchor as published on
	// or before date. The returned table carries the date actually used.
	GetRates(ctx context.Context, date time.Time, anchor string, symbols []string) (*models.RateTable, error)
}
