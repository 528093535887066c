// Package valuation prices accumulated positions in each currency bucket
package valuation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// Service implements ValuationService. Missing prices value at zero and
// missing rates convert at 1; Value only fails on a cancelled context.
type Service struct {
	marketData   interfaces.MarketDataService
	fx           interfaces.FxService
	moneyScale   int32
	averageScale int32
	logger       *common.Logger
}

var _ interfaces.ValuationService = (*Service)(nil)

// NewService creates a valuation service.
func NewService(marketData interfaces.MarketDataService, fx interfaces.FxService, numeric common.NumericConfig, logger *common.Logger) *Service {
	return &Service{
		marketData:   marketData,
		fx:           fx,
		moneyScale:   numeric.MoneyScale,
		averageScale: numeric.AverageScale,
		logger:       logger,
	}
}

// Value prices every position as at positions.AsAt, mutating MoneyValues
// in place, and returns the same aggregate.
func (s *Service) Value(ctx context.Context, positions *models.Positions) (*models.Positions, error) {
	if positions.IsEmpty() {
		return positions, nil
	}

	assets := positions.Assets()
	prices, err := s.marketData.GetPrices(ctx, assets, positions.AsAt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return positions, ctxErr
		}
		s.logger.Warn().Err(err).Msg("Pricing failed, valuing at zero")
	}

	var pairs []models.CurrencyPair
	for _, asset := range assets {
		position := positions.Positions[asset.Key()]
		for _, bucket := range models.Buckets {
			pairs = append(pairs, s.pair(positions.Portfolio, position, bucket))
		}
	}
	rates := s.rates(ctx, positions.AsAt, pairs)

	for _, asset := range assets {
		position := positions.Positions[asset.Key()]
		last := decimal.Zero
		if price := prices.Price(asset); price != nil {
			last = price.Close
		}
		total := position.QuantityValues.Total()

		for _, bucket := range models.Buckets {
			mv := position.Money(bucket)
			pair := s.pair(positions.Portfolio, position, bucket)
			if mv.Currency == "" {
				mv.Currency = pair.To
			}

			mv.Price = last.Mul(rates.RateOrOne(pair)).Round(s.averageScale)
			mv.MarketValue = total.Mul(mv.Price).Round(s.moneyScale)
			if total.IsZero() {
				mv.CostValue = decimal.Zero
			} else {
				mv.CostValue = total.Mul(mv.AverageCost).Round(s.moneyScale)
			}
			mv.UnrealisedGain = mv.MarketValue.Sub(mv.CostValue)
			mv.TotalGain = mv.UnrealisedGain.Add(mv.RealisedGain)
		}
	}

	s.logger.Debug().
		Str("portfolio", positions.Portfolio.Code).
		Int("positions", len(assets)).
		Msg("Positions valued")

	return positions, nil
}

// pair converts the asset's native price currency into the bucket currency.
func (s *Service) pair(portfolio models.Portfolio, position *models.Position, bucket models.Bucket) models.CurrencyPair {
	from := position.Asset.PriceCurrency()
	trade := position.Money(models.BucketTrade).Currency
	if from == "" {
		from = trade
	}
	to := position.Money(bucket).Currency
	if to == "" {
		if trade == "" {
			trade = from
		}
		to = portfolio.CurrencyFor(bucket, trade)
	}
	return models.NewCurrencyPair(from, to)
}

// rates resolves all pairs in one request. When that fails each pair is
// tried alone so one unresolvable currency does not lose every rate.
func (s *Service) rates(ctx context.Context, asAt time.Time, pairs []models.CurrencyPair) *models.FxPairResults {
	all, err := s.fx.GetRates(ctx, asAt, pairs)
	if err == nil {
		return all
	}
	s.logger.Warn().Err(err).Msg("Rate lookup failed, resolving pairs individually")

	results := models.NewFxPairResults()
	for _, pair := range pairs {
		if _, done := results.Rates[pair]; done {
			continue
		}
		one, err := s.fx.GetRates(ctx, asAt, []models.CurrencyPair{pair})
		if err != nil {
			s.logger.Warn().Err(err).Str("pair", pair.String()).Msg("Rate unavailable, using 1")
			continue
		}
		if rate, ok := one.Rate(pair); ok {
			results.Rates[pair] = rate
		}
	}
	return results
}
