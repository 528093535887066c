// Package marketdata selects price providers per market and dispatches
// batched price requests to them
package marketdata

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// maxConcurrentProviders bounds the provider fan-out of one GetPrices call.
const maxConcurrentProviders = 4

// Service implements MarketDataService.
type Service struct {
	providers map[string]interfaces.PriceProvider
	fallback  interfaces.PriceProvider
	timeout   time.Duration
	retry     common.RetryConfig
	logger    *common.Logger
	now       func() time.Time // injectable clock for testing
}

var _ interfaces.MarketDataService = (*Service)(nil)

// NewService creates a dispatcher over the given providers, keyed by their ID.
func NewService(providers []interfaces.PriceProvider, config common.MarketDataConfig, logger *common.Logger) *Service {
	s := &Service{
		providers: make(map[string]interfaces.PriceProvider, len(providers)),
		fallback:  DefaultProvider{},
		timeout:   config.GetTimeout(),
		retry:     config.Retry,
		logger:    logger,
		now:       time.Now,
	}
	for _, p := range providers {
		s.providers[strings.ToUpper(p.ID())] = p
	}
	return s
}

// GetProvider returns the market's configured provider when it reports
// support for the market, then the market's fallback provider, otherwise
// the default provider.
func (s *Service) GetProvider(market models.Market) interfaces.PriceProvider {
	for _, id := range []string{market.Provider, market.Fallback} {
		if id == "" {
			continue
		}
		if p, ok := s.providers[strings.ToUpper(id)]; ok && p.IsMarketSupported(market) {
			return p
		}
	}
	return s.fallback
}

// providerWork is every market group routed to one provider.
type providerWork struct {
	provider interfaces.PriceProvider
	markets  []models.Market
	assets   map[string][]models.Asset // market code -> assets in encounter order
}

// GetPrices prices assets as at date. Providers are called concurrently;
// batches for a single provider are issued in order. It only returns an
// error for a cancelled context: provider failures degrade to zero prices
// plus a recorded failure for the affected batch.
func (s *Service) GetPrices(ctx context.Context, assets []models.Asset, date time.Time) (*models.PriceResults, error) {
	results := &models.PriceResults{
		Date:   date,
		Prices: make(map[string]*models.PriceResult, len(assets)),
	}
	if len(assets) == 0 {
		return results, nil
	}

	requestID := common.ResolveRequestID(ctx)
	var order []string
	work := make(map[string]*providerWork)
	for _, asset := range assets {
		p := s.GetProvider(asset.Market)
		w, ok := work[p.ID()]
		if !ok {
			w = &providerWork{provider: p, assets: make(map[string][]models.Asset)}
			work[p.ID()] = w
			order = append(order, p.ID())
		}
		code := strings.ToUpper(asset.Market.Code)
		if _, ok := w.assets[code]; !ok {
			w.markets = append(w.markets, asset.Market)
		}
		w.assets[code] = append(w.assets[code], asset)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(maxConcurrentProviders)

	for _, id := range order {
		w := work[id]
		g.Go(func() error {
			for _, market := range w.markets {
				batch := BuildBatches(w.provider.Config(), market, w.assets[strings.ToUpper(market.Code)])
				for i := 0; i < batch.Count(); i++ {
					prices, failure := s.fetchBatch(ctx, w.provider, batch, i, date)

					mu.Lock()
					for key, price := range prices {
						results.Prices[key] = price
					}
					if failure != nil {
						results.Failures = append(results.Failures, *failure)
					}
					mu.Unlock()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Debug().
		Str("request_id", requestID).
		Int("assets", len(results.Prices)).
		Int("providers", len(order)).
		Int("failures", len(results.Failures)).
		Msg("Prices dispatched")

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// fetchBatch calls the provider for one batch, retrying system errors, and
// correlates the response back onto the batch's assets by symbol.
func (s *Service) fetchBatch(ctx context.Context, provider interfaces.PriceProvider, batch *models.ProviderBatch, index int, date time.Time) (map[string]*models.PriceResult, *models.BatchFailure) {
	cfg := provider.Config()
	if cfg.ID == "" {
		cfg.ID = provider.ID()
	}
	priceDate := PriceDate(cfg, batch.Market, date, s.now())
	codes := batch.Batches[index]

	var response map[string]*models.PriceResult
	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		res, err := provider.GetPrices(callCtx, batch.Market, codes, priceDate)
		if err != nil {
			if common.IsBusiness(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		response = res
		return nil
	}

	err := backoff.RetryNotify(attempt, s.backOff(ctx), func(err error, wait time.Duration) {
		s.logger.Warn().
			Err(err).
			Str("provider", cfg.ID).
			Str("market", batch.Market.Code).
			Int("batch", index).
			Dur("retry_in", wait).
			Msg("Price batch failed, retrying")
	})

	prices := make(map[string]*models.PriceResult, len(batch.Requests[index]))
	var failure *models.BatchFailure
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("provider", cfg.ID).
			Str("market", batch.Market.Code).
			Str("codes", codes).
			Msg("Price batch failed")
		failure = &models.BatchFailure{
			Provider: cfg.ID,
			Market:   batch.Market.Code,
			Codes:    codes,
			Error:    err.Error(),
		}
	}

	bySymbol := make(map[string]*models.PriceResult, len(response))
	for symbol, price := range response {
		if price != nil {
			bySymbol[strings.ToUpper(symbol)] = price
		}
	}

	for _, asset := range batch.Requests[index] {
		symbol := cfg.Symbol(asset)
		found, ok := bySymbol[symbol]
		if !ok {
			prices[asset.Key()] = models.ZeroPrice(asset, priceDate, cfg.ID)
			continue
		}
		price := *found
		price.Asset = asset
		price.Symbol = symbol
		if price.Date.IsZero() {
			price.Date = priceDate
		}
		if price.Source == "" {
			price.Source = cfg.ID
		}
		prices[asset.Key()] = &price
	}

	return prices, failure
}

func (s *Service) backOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.retry.GetInitialInterval()
	expo.MaxInterval = s.retry.GetMaxInterval()
	expo.MaxElapsedTime = 0

	attempts := s.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(attempts-1)), ctx)
}
