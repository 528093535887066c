package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// ReferenceService resolves static market and currency reference data
type ReferenceService interface {
	// Market resolves a market code or alias
	Market(code string) (models.Market, error)

	// Currency validates and normalises an ISO currency code
	Currency(code string) (string, error)

	// Markets returns every configured market, ordered by code
	Markets() []models.Market
}

// FxService resolves currency-pair rates and binds them onto transactions
type FxService interface {
	// GetRates resolves every pair for the given date
	GetRates(ctx context.Context, asAt time.Time, pairs []models.CurrencyPair) (*models.FxPairResults, error)

	// SetRates returns a copy of trn with trade/cash, trade/base and
	// trade/portfolio rates bound
	SetRates(ctx context.Context, portfolio models.Portfolio, trn models.Trn) (models.Trn, error)
}

// MarketDataService selects providers and dispatches batched price requests
type MarketDataService interface {
	// GetProvider returns the provider serving a market, never nil
	GetProvider(market models.Market) PriceProvider

	// GetPrices prices every asset on date. It never fails on provider
	// errors; unpriced assets carry a zero close.
	GetPrices(ctx context.Context, assets []models.Asset, date time.Time) (*models.PriceResults, error)
}

// AccumulatorService applies transactions to positions
type AccumulatorService interface {
	// Accumulate applies trn to position and returns it
	Accumulate(trn *models.Trn, portfolio models.Portfolio, position *models.Position) (*models.Position, error)
}

// ValuationService prices accumulated positions
type ValuationService interface {
	// Value mutates the money values of every position in place
	Value(ctx context.Context, positions *models.Positions) (*models.Positions, error)
}

// PortfolioService replays a portfolio's transactions into positions
type PortfolioService interface {
	// BuildPositions binds rates and accumulates trns in order
	BuildPositions(ctx context.Context, portfolio models.Portfolio, trns []models.Trn, asAt time.Time) (*models.Positions, error)

	// ValuePositions builds then values positions as at asAt
	ValuePositions(ctx context.Context, portfolio models.Portfolio, trns []models.Trn, asAt time.Time) (*models.Positions, error)
}
