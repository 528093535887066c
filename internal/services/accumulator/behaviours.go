package accumulator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// buy adds the lot to cost basis and rolls it into the running average of the
// units already held.
func (a *Accumulator) buy(trn *models.Trn, position *models.Position) error {
	qty := trn.Quantity.Abs()
	held := position.QuantityValues.Total()
	if held.IsZero() {
		position.DateValues.Opened = dateOf(trn.TradeDate)
		position.DateValues.Closed = time.Time{}
	}
	position.QuantityValues.Purchased = position.QuantityValues.Purchased.Add(qty)
	total := position.QuantityValues.Total()

	for _, bucket := range models.Buckets {
		mv := position.Money(bucket)
		amount := a.convert(trn.TradeAmount.Abs(), trn, bucket)
		mv.CostBasis = mv.CostBasis.Add(amount)
		mv.Purchases = mv.Purchases.Add(amount)
		mv.Fees = mv.Fees.Add(a.convert(trn.Fees, trn, bucket))
		mv.AverageCost = a.averageCost(mv.AverageCost, held, amount, total)
	}
	return nil
}

// sell realises proceeds less the average cost of the units sold. Cost basis
// is only released when the position closes.
func (a *Accumulator) sell(trn *models.Trn, position *models.Position) error {
	qty := trn.Quantity.Abs()
	position.QuantityValues.Sold = position.QuantityValues.Sold.Sub(qty)
	closed := position.QuantityValues.Total().IsZero()

	for _, bucket := range models.Buckets {
		mv := position.Money(bucket)
		proceeds := a.convert(trn.TradeAmount.Abs(), trn, bucket)
		mv.Sales = mv.Sales.Add(proceeds)
		mv.Fees = mv.Fees.Add(a.convert(trn.Fees, trn, bucket))

		gain := proceeds.Sub(mv.AverageCost.Mul(qty)).Round(a.moneyScale)
		mv.RealisedGain = mv.RealisedGain.Add(gain)

		if closed {
			mv.CostBasis = decimal.Zero
			mv.AverageCost = decimal.Zero
		}
	}

	if closed {
		position.DateValues.Closed = dateOf(trn.TradeDate)
	}
	return nil
}

func (a *Accumulator) dividend(trn *models.Trn, position *models.Position) error {
	for _, bucket := range models.Buckets {
		mv := position.Money(bucket)
		mv.Dividends = mv.Dividends.Add(a.convert(trn.TradeAmount.Abs(), trn, bucket))
	}
	return nil
}

// split treats the quantity as a ratio (7 = 7-for-1). Cost neutral.
func (a *Accumulator) split(trn *models.Trn, position *models.Position) error {
	if !trn.Quantity.IsPositive() {
		return common.BusinessErrorf("accumulate", "trn %s: split ratio %s must be positive", trn.ID, trn.Quantity)
	}
	total := position.QuantityValues.Total()
	delta := total.Mul(trn.Quantity).Sub(total)
	position.QuantityValues.Adjustment = position.QuantityValues.Adjustment.Add(delta)
	return nil
}
