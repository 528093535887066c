// Package accumulator applies transactions to positions one at a time
package accumulator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// behaviour applies one transaction type to a position. Rates on trn are
// already bound.
type behaviour func(a *Accumulator, trn *models.Trn, position *models.Position) error

var behaviours = map[models.TrnType]behaviour{
	models.TrnTypeBuy:      (*Accumulator).buy,
	models.TrnTypeSell:     (*Accumulator).sell,
	models.TrnTypeDividend: (*Accumulator).dividend,
	models.TrnTypeSplit:    (*Accumulator).split,
}

// Accumulator implements AccumulatorService. It holds no position state and
// is safe for concurrent use across independent Positions.
type Accumulator struct {
	moneyScale   int32
	averageScale int32
	logger       *common.Logger
}

var _ interfaces.AccumulatorService = (*Accumulator)(nil)

// NewAccumulator creates an accumulator rounding to the configured scales.
func NewAccumulator(numeric common.NumericConfig, logger *common.Logger) *Accumulator {
	return &Accumulator{
		moneyScale:   numeric.MoneyScale,
		averageScale: numeric.AverageScale,
		logger:       logger,
	}
}

// Accumulate applies trn to position, mutating and returning it. portfolio
// only supplies bucket currencies. Out-of-order and unknown-type
// transactions are business errors and leave position untouched.
func (a *Accumulator) Accumulate(trn *models.Trn, portfolio models.Portfolio, position *models.Position) (*models.Position, error) {
	apply, ok := behaviours[trn.Type]
	if !ok {
		return position, common.BusinessErrorf("accumulate", "trn %s: unsupported type %q", trn.ID, trn.Type)
	}

	tradeDay := dateOf(trn.TradeDate)
	last := position.DateValues.LastTrade
	if !last.IsZero() && tradeDay.Before(dateOf(last)) {
		return position, common.BusinessErrorf("accumulate", "trn %s for %s dated %s precedes %s: %w",
			trn.ID, position.Asset.Key(), tradeDay.Format("2006-01-02"), last.Format("2006-01-02"), common.ErrOutOfOrder)
	}

	if err := apply(a, trn, position); err != nil {
		return position, err
	}

	for _, bucket := range models.Buckets {
		mv := position.Money(bucket)
		if mv.Currency == "" {
			mv.Currency = portfolio.CurrencyFor(bucket, trn.TradeCurrency)
		}
	}

	position.DateValues.LastTrade = tradeDay
	a.logger.Trace().
		Str("trn", trn.ID).
		Str("asset", position.Asset.Key()).
		Str("type", string(trn.Type)).
		Str("total", position.QuantityValues.Total().String()).
		Msg("Accumulated")

	return position, nil
}

// convert expresses a trade-currency amount in a bucket's currency.
func (a *Accumulator) convert(amount decimal.Decimal, trn *models.Trn, bucket models.Bucket) decimal.Decimal {
	return amount.Mul(trn.RateFor(bucket)).Round(a.moneyScale)
}

// averageCost rolls amount into the average of the held units:
// (prevAvg*held + amount) / total at the average scale, HALF_UP. Zero at
// total 0. Cost basis is not used since sells leave it unreduced.
func (a *Accumulator) averageCost(prevAvg, held, amount, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return prevAvg.Mul(held).Add(amount).DivRound(total, a.averageScale)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
