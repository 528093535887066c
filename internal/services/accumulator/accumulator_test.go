package accumulator

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

var (
	msft      = models.Asset{Code: "MSFT", Market: models.Market{Code: "NASDAQ", Currency: "USD"}}
	portfolio = models.Portfolio{Code: "TEST", Currency: "NZD", Base: "USD"}
)

func newTestAccumulator() *Accumulator {
	return NewAccumulator(common.NewDefaultConfig().Numeric, common.NewSilentLogger())
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func trn(typ models.TrnType, qty, amount, date string) *models.Trn {
	return &models.Trn{
		ID:            fmt.Sprintf("%s-%s-%s", typ, qty, date),
		Asset:         msft,
		Type:          typ,
		Quantity:      d(qty),
		TradeAmount:   d(amount),
		TradeDate:     day(date),
		TradeCurrency: "USD",
	}
}

func apply(t *testing.T, a *Accumulator, p *models.Position, trns ...*models.Trn) {
	t.Helper()
	for _, tr := range trns {
		_, err := a.Accumulate(tr, portfolio, p)
		require.NoError(t, err, "trn %s", tr.ID)
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%s = %s, want %s", field, got, want)
}

func TestAccumulate_BuySellLifecycle(t *testing.T) {
	a := newTestAccumulator()
	p := models.NewPosition(msft)

	apply(t, a, p,
		trn(models.TrnTypeBuy, "8", "1695.02", "2019-01-10"),
		trn(models.TrnTypeBuy, "2", "405.21", "2019-01-11"),
	)
	trade := p.Money(models.BucketTrade)
	assertDecimal(t, "10", p.QuantityValues.Total(), "total")
	assertDecimal(t, "2100.23", trade.CostBasis, "costBasis")
	assertDecimal(t, "210.023", trade.AverageCost, "averageCost")
	assertDecimal(t, "0", trade.RealisedGain, "realisedGain")

	apply(t, a, p, trn(models.TrnTypeSell, "-3", "841.63", "2019-02-01"))
	assertDecimal(t, "7", p.QuantityValues.Total(), "total")
	assertDecimal(t, "-3", p.QuantityValues.Sold, "sold")
	assertDecimal(t, "211.56", trade.RealisedGain, "realisedGain")
	assertDecimal(t, "2100.23", trade.CostBasis, "costBasis")
	assertDecimal(t, "210.023", trade.AverageCost, "averageCost")

	apply(t, a, p, trn(models.TrnTypeSell, "-7", "1871.01", "2019-03-01"))
	assert.True(t, p.QuantityValues.Total().IsZero())
	assertDecimal(t, "0", trade.CostBasis, "costBasis")
	assertDecimal(t, "0", trade.AverageCost, "averageCost")
	assertDecimal(t, "612.41", trade.RealisedGain, "realisedGain")
	assertDecimal(t, "2712.64", trade.Sales, "sales")
	assert.Equal(t, day("2019-03-01"), p.DateValues.Closed)

	// A fresh cycle keeps realised gain
	apply(t, a, p, trn(models.TrnTypeBuy, "1", "100", "2019-04-01"))
	assertDecimal(t, "100", trade.CostBasis, "costBasis")
	assertDecimal(t, "100", trade.AverageCost, "averageCost")
	assertDecimal(t, "612.41", trade.RealisedGain, "realisedGain")
	assert.Equal(t, day("2019-04-01"), p.DateValues.Opened)
	assert.True(t, p.DateValues.Closed.IsZero())
}

func TestAccumulate_BuysSumToCostBasis(t *testing.T) {
	a := newTestAccumulator()
	p := models.NewPosition(msft)

	sum := decimal.Zero
	qty := decimal.Zero
	for i := 1; i <= 25; i++ {
		amount := decimal.NewFromInt(int64(i)).Mul(d("13.37")).Add(d("0.07"))
		q := decimal.NewFromInt(int64(i%4 + 1))
		apply(t, a, p, &models.Trn{
			ID: fmt.Sprintf("b%d", i), Type: models.TrnTypeBuy, Asset: msft,
			Quantity: q, TradeAmount: amount, TradeDate: day("2020-01-01"), TradeCurrency: "USD",
		})
		sum = sum.Add(amount)
		qty = qty.Add(q)

		// With no sells the running average tracks costBasis/total to within
		// the accumulated rounding at the average scale.
		trade := p.Money(models.BucketTrade)
		assertDecimal(t, sum.String(), trade.CostBasis, "costBasis")
		tolerance := decimal.NewFromInt(int64(i)).Mul(d("0.000001"))
		direct := sum.DivRound(qty, 6)
		assert.True(t, trade.AverageCost.Sub(direct).Abs().LessThanOrEqual(tolerance),
			"buy %d: averageCost %s, costBasis/total %s", i, trade.AverageCost, direct)
	}
}

func TestAccumulate_BuyAfterPartialSell(t *testing.T) {
	a := newTestAccumulator()
	p := models.NewPosition(msft)

	apply(t, a, p,
		trn(models.TrnTypeBuy, "10", "1000", "2019-01-10"),
		trn(models.TrnTypeSell, "-5", "500", "2019-01-11"),
		trn(models.TrnTypeBuy, "5", "500", "2019-01-12"),
	)
	trade := p.Money(models.BucketTrade)
	assertDecimal(t, "10", p.QuantityValues.Total(), "total")
	assertDecimal(t, "1500", trade.CostBasis, "costBasis")
	assertDecimal(t, "100", trade.AverageCost, "averageCost")
	assertDecimal(t, "0", trade.RealisedGain, "realisedGain")

	apply(t, a, p, trn(models.TrnTypeSell, "-10", "1000", "2019-01-13"))
	assert.True(t, p.QuantityValues.Total().IsZero())
	assertDecimal(t, "0", trade.RealisedGain, "realisedGain")
	assertDecimal(t, "0", trade.CostBasis, "costBasis")
}

// averageModel is an independent running-average reference: buys roll into
// the average of held units, sells realise against it, splits rescale units
// only.
type averageModel struct {
	held, avg, realised, costBasis decimal.Decimal
}

func (m *averageModel) buy(q, amount decimal.Decimal) {
	total := m.held.Add(q)
	m.avg = m.avg.Mul(m.held).Add(amount).DivRound(total, 6)
	m.held = total
	m.costBasis = m.costBasis.Add(amount)
}

func (m *averageModel) sell(q, proceeds decimal.Decimal) {
	m.realised = m.realised.Add(proceeds.Sub(m.avg.Mul(q)).Round(2))
	m.held = m.held.Sub(q)
	if m.held.IsZero() {
		m.avg = decimal.Zero
		m.costBasis = decimal.Zero
	}
}

func (m *averageModel) split(ratio decimal.Decimal) {
	m.held = m.held.Mul(ratio)
}

func TestAccumulate_AverageCostMatchesRunningAverage(t *testing.T) {
	a := newTestAccumulator()
	p := models.NewPosition(msft)
	model := &averageModel{}

	const steps = 200
	date := day("2020-01-01")
	sawDivergence := false
	for i := 1; i <= steps; i++ {
		var tr *models.Trn
		switch {
		case i == 97:
			ratio := d("2")
			tr = &models.Trn{ID: fmt.Sprintf("s%d", i), Type: models.TrnTypeSplit, Asset: msft,
				Quantity: ratio, TradeDate: date, TradeCurrency: "USD"}
			model.split(ratio)
		case i%5 == 0 && model.held.GreaterThan(d("3")):
			q := model.held.Div(d("3")).Floor()
			proceeds := q.Mul(decimal.NewFromInt(int64(i*31%400 + 50))).Div(decimal.NewFromInt(7)).Round(2)
			tr = &models.Trn{ID: fmt.Sprintf("x%d", i), Type: models.TrnTypeSell, Asset: msft,
				Quantity: q.Neg(), TradeAmount: proceeds, TradeDate: date, TradeCurrency: "USD"}
			model.sell(q, proceeds)
		default:
			amount := decimal.NewFromInt(int64(i*7919%1000 + 1)).Div(decimal.NewFromInt(3)).Round(2)
			q := decimal.NewFromInt(int64(i%7 + 1))
			tr = &models.Trn{ID: fmt.Sprintf("b%d", i), Type: models.TrnTypeBuy, Asset: msft,
				Quantity: q, TradeAmount: amount, TradeDate: date, TradeCurrency: "USD"}
			model.buy(q, amount)
		}
		apply(t, a, p, tr)

		trade := p.Money(models.BucketTrade)
		assertDecimal(t, model.held.String(), p.QuantityValues.Total(), fmt.Sprintf("step %d total", i))
		assertDecimal(t, model.avg.String(), trade.AverageCost, fmt.Sprintf("step %d averageCost", i))
		assertDecimal(t, model.realised.String(), trade.RealisedGain, fmt.Sprintf("step %d realisedGain", i))
		assertDecimal(t, model.costBasis.String(), trade.CostBasis, fmt.Sprintf("step %d costBasis", i))

		if !model.held.IsZero() && !trade.CostBasis.DivRound(model.held, 6).Equal(trade.AverageCost) {
			sawDivergence = true
		}
		date = date.AddDate(0, 0, 1)
	}
	// costBasis/total stops describing the held units once a partial sell
	// leaves cost basis unreduced.
	assert.True(t, sawDivergence)
}

func TestAccumulate_Split(t *testing.T) {
	a := newTestAccumulator()
	p := models.NewPosition(msft)

	apply(t, a, p,
		trn(models.TrnTypeBuy, "10", "2100.23", "2019-01-10"),
		trn(models.TrnTypeSplit, "7", "0", "2019-06-01"),
	)

	trade := p.Money(models.BucketTrade)
	assertDecimal(t, "70", p.QuantityValues.Total(), "total")
	assertDecimal(t, "60", p.QuantityValues.Adjustment, "adjustment")
	assertDecimal(t, "2100.23", trade.CostBasis, "costBasis")
	assertDecimal(t, "210.023", trade.AverageCost, "averageCost")

	_, err := a.Accumulate(trn(models.TrnTypeSplit, "0", "0", "2019-06-02"), portfolio, p)
	assert.True(t, common.IsBusiness(err))
	assertDecimal(t, "70", p.QuantityValues.Total(), "total")
	assert.Equal(t, day("2019-06-01"), p.DateValues.LastTrade)
}

func TestAccumulate_RejectedSplitLeavesPositionUntouched(t *testing.T) {
	a := newTestAccumulator()
	p := models.NewPosition(msft)

	_, err := a.Accumulate(trn(models.TrnTypeSplit, "0", "0", "2019-06-01"), portfolio, p)
	require.Error(t, err)
	assert.True(t, common.IsBusiness(err))
	for _, bucket := range models.Buckets {
		assert.Empty(t, p.Money(bucket).Currency, "%s currency", bucket)
	}
	assert.True(t, p.DateValues.LastTrade.IsZero())
	assert.True(t, p.QuantityValues.Total().IsZero())
}

func TestAccumulate_Dividend(t *testing.T) {
	a := newTestAccumulator()
	p := models.NewPosition(msft)

	apply(t, a, p,
		trn(models.TrnTypeBuy, "10", "1000", "2019-01-10"),
		trn(models.TrnTypeDividend, "0", "12.34", "2019-02-10"),
	)

	trade := p.Money(models.BucketTrade)
	assertDecimal(t, "12.34", trade.Dividends, "dividends")
	assertDecimal(t, "1000", trade.CostBasis, "costBasis")
	assertDecimal(t, "10", p.QuantityValues.Total(), "total")
}

func TestAccumulate_Ordering(t *testing.T) {
	a := newTestAccumulator()
	p := models.NewPosition(msft)
	first := trn(models.TrnTypeBuy, "10", "1000", "2019-01-10")
	first.TradeDate = first.TradeDate.Add(15 * time.Hour)
	apply(t, a, p, first)

	_, err := a.Accumulate(trn(models.TrnTypeBuy, "5", "500", "2019-01-09"), portfolio, p)
	require.Error(t, err)
	assert.True(t, common.IsBusiness(err))
	assert.ErrorIs(t, err, common.ErrOutOfOrder)
	assertDecimal(t, "10", p.QuantityValues.Total(), "total")

	// same day at an earlier clock time is accepted
	sameDay := trn(models.TrnTypeSell, "-5", "600", "2019-01-10")
	sameDay.TradeDate = sameDay.TradeDate.Add(9 * time.Hour)
	apply(t, a, p, sameDay)
	assertDecimal(t, "5", p.QuantityValues.Total(), "total")
}

func TestAccumulate_UnknownType(t *testing.T) {
	a := newTestAccumulator()
	p := models.NewPosition(msft)

	_, err := a.Accumulate(trn(models.TrnType("TRANSFER"), "1", "1", "2019-01-10"), portfolio, p)
	require.Error(t, err)
	assert.True(t, common.IsBusiness(err))
	assert.True(t, p.DateValues.LastTrade.IsZero())
}

func TestAccumulate_BucketsUseBoundRates(t *testing.T) {
	a := newTestAccumulator()
	p := models.NewPosition(msft)

	buy := trn(models.TrnTypeBuy, "10", "100", "2019-01-10")
	buy.TradeCurrency = "AUD"
	buy.TradeBaseRate = d("0.5")
	buy.TradePortfolioRate = d("2")
	sell := trn(models.TrnTypeSell, "-5", "60", "2019-01-11")
	sell.TradeCurrency = "AUD"
	sell.TradeBaseRate = d("0.5")
	sell.TradePortfolioRate = d("2")
	apply(t, a, p, buy, sell)

	want := map[models.Bucket]struct{ currency, cost, avg, gain string }{
		models.BucketTrade:     {"AUD", "100", "10", "10"},
		models.BucketBase:      {"USD", "50", "5", "5"},
		models.BucketPortfolio: {"NZD", "200", "20", "20"},
	}
	for bucket, w := range want {
		mv := p.Money(bucket)
		assert.Equal(t, w.currency, mv.Currency, "%s currency", bucket)
		assertDecimal(t, w.cost, mv.CostBasis, string(bucket)+" costBasis")
		assertDecimal(t, w.avg, mv.AverageCost, string(bucket)+" averageCost")
		assertDecimal(t, w.gain, mv.RealisedGain, string(bucket)+" realisedGain")
	}
}
