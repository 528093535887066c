package fx

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// rateField pairs a transaction rate field with the currency it converts to.
type rateField struct {
	rate   *decimal.Decimal
	pair   models.CurrencyPair
	lookup bool
}

// SetRates returns a copy of trn with TradeCashRate, TradeBaseRate and
// TradePortfolioRate bound as of the trade date. A currency missing from
// the portfolio or transaction yields exactly 1. Rates already on trn are
// kept unless ignore-rates is in effect for ctx.
func (s *Service) SetRates(ctx context.Context, portfolio models.Portfolio, trn models.Trn) (models.Trn, error) {
	ignore := common.ResolveIgnoreRates(ctx, s.ignoreRates)
	one := decimal.NewFromInt(1)

	fields := []*rateField{
		{rate: &trn.TradeCashRate, pair: models.NewCurrencyPair(trn.TradeCurrency, trn.CashCurrency)},
		{rate: &trn.TradeBaseRate, pair: models.NewCurrencyPair(trn.TradeCurrency, portfolio.Base)},
		{rate: &trn.TradePortfolioRate, pair: models.NewCurrencyPair(trn.TradeCurrency, portfolio.Currency)},
	}

	var needed []models.CurrencyPair
	for _, f := range fields {
		switch {
		case !f.pair.IsDefined() || f.pair.IsSame():
			*f.rate = one
		case !ignore && !f.rate.IsZero():
			// supplied rate honoured
		default:
			f.lookup = true
			needed = append(needed, f.pair)
		}
	}

	if len(needed) == 0 {
		return trn, nil
	}

	rates, err := s.GetRates(ctx, trn.TradeDate, needed)
	if err != nil {
		return trn, err
	}
	for _, f := range fields {
		if f.lookup {
			*f.rate = rates.RateOrOne(f.pair)
		}
	}

	s.logger.Trace().
		Str("trn", trn.ID).
		Str("cash", trn.TradeCashRate.String()).
		Str("base", trn.TradeBaseRate.String()).
		Str("portfolio", trn.TradePortfolioRate.String()).
		Msg("Rates bound")

	return trn, nil
}
