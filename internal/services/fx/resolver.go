// Package fx resolves currency-pair rates from anchor-denominated tables and
// binds them onto transactions
package fx

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// Resolver triangulates cross rates through a table's anchor currency. It
// is date-naive: every rate it emits carries the table's stamped date.
type Resolver struct {
	scale int32
}

// NewResolver creates a resolver rounding rates HALF_UP to scale places.
func NewResolver(scale int32) *Resolver {
	return &Resolver{scale: scale}
}

// Compute resolves each pair independently as table[to] / table[from].
// Same-currency and undefined pairs resolve to 1 dated asAt without a lookup.
// A code absent from the table is a business error.
func (r *Resolver) Compute(asAt time.Time, pairs []models.CurrencyPair, table *models.RateTable) (*models.FxPairResults, error) {
	results := models.NewFxPairResults()
	one := decimal.NewFromInt(1)

	for _, pair := range pairs {
		if _, done := results.Rates[pair]; done {
			continue
		}
		if pair.IsSame() || !pair.IsDefined() {
			results.Rates[pair] = models.FxRate{Pair: pair, Rate: one, Date: asAt}
			continue
		}
		if table == nil {
			return nil, common.BusinessErrorf("fx.Compute", "%s: no rate table: %w", pair, common.ErrUnknownCurrency)
		}

		from, ok := table.Lookup(pair.From)
		if !ok {
			return nil, common.BusinessErrorf("fx.Compute", "%s: no %s rate on %s: %w",
				pair, pair.From, table.Date.Format("2006-01-02"), common.ErrUnknownCurrency)
		}
		to, ok := table.Lookup(pair.To)
		if !ok {
			return nil, common.BusinessErrorf("fx.Compute", "%s: no %s rate on %s: %w",
				pair, pair.To, table.Date.Format("2006-01-02"), common.ErrUnknownCurrency)
		}

		results.Rates[pair] = models.FxRate{
			Pair: pair,
			Rate: to.DivRound(from, r.scale),
			Date: table.Date,
		}
	}

	return results, nil
}
