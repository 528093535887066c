package fx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/reference"
)

// stubSource returns the fixture table and records what it was asked for.
type stubSource struct {
	mu      sync.Mutex
	calls   int
	symbols []string
	err     error
}

func (s *stubSource) GetRates(ctx context.Context, date time.Time, anchor string, symbols []string) (*models.RateTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.symbols = symbols
	if s.err != nil {
		return nil, s.err
	}
	return fixtureTable(), nil
}

func newTestService(source *stubSource, ignoreRates bool) *Service {
	cfg := common.NewDefaultConfig()
	cfg.FX.IgnoreRates = ignoreRates
	ref := reference.NewService(cfg.Markets, common.NewSilentLogger())
	return NewService(source, ref, cfg.FX, cfg.Numeric, common.NewSilentLogger())
}

func TestGetRates_SameCurrencySkipsSource(t *testing.T) {
	source := &stubSource{}
	s := newTestService(source, false)

	rates, err := s.GetRates(context.Background(), fixtureDate, []models.CurrencyPair{{From: "nzd", To: "NZD"}})
	require.NoError(t, err)
	assert.Equal(t, 0, source.calls)
	assert.True(t, rates.RateOrOne(models.NewCurrencyPair("NZD", "NZD")).Equal(d("1")))
}

func TestGetRates_RequestsDistinctNonAnchorSymbols(t *testing.T) {
	source := &stubSource{}
	s := newTestService(source, false)

	_, err := s.GetRates(context.Background(), fixtureDate, []models.CurrencyPair{
		models.NewCurrencyPair("AUD", "USD"),
		models.NewCurrencyPair("NZD", "AUD"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, []string{"AUD", "NZD"}, source.symbols)
}

func TestGetRates_InvalidCurrencyIsBusinessError(t *testing.T) {
	source := &stubSource{}
	s := newTestService(source, false)

	_, err := s.GetRates(context.Background(), fixtureDate, []models.CurrencyPair{models.NewCurrencyPair("AUD", "XYZ")})
	assert.True(t, common.IsBusiness(err))
	assert.Equal(t, 0, source.calls)
}

func TestGetRates_SourceFailureIsSystemError(t *testing.T) {
	s := newTestService(&stubSource{err: errors.New("connection reset")}, false)

	_, err := s.GetRates(context.Background(), fixtureDate, []models.CurrencyPair{models.NewCurrencyPair("AUD", "USD")})
	assert.True(t, common.IsSystem(err))
}

func TestSetRates_UndefinedCurrenciesDefaultToOne(t *testing.T) {
	source := &stubSource{}
	s := newTestService(source, false)

	in := models.Trn{ID: "t1", TradeCurrency: "USD", TradeDate: fixtureDate}
	out, err := s.SetRates(context.Background(), models.Portfolio{Code: "P"}, in)
	require.NoError(t, err)

	assert.True(t, out.TradeCashRate.Equal(d("1")))
	assert.True(t, out.TradeBaseRate.Equal(d("1")))
	assert.True(t, out.TradePortfolioRate.Equal(d("1")))
	assert.Equal(t, 0, source.calls)
	assert.True(t, in.TradeBaseRate.IsZero(), "input transaction must not be mutated")
}

func TestSetRates_ComputesFromSource(t *testing.T) {
	s := newTestService(&stubSource{}, false)

	in := models.Trn{ID: "t1", TradeCurrency: "AUD", CashCurrency: "AUD", TradeDate: fixtureDate}
	out, err := s.SetRates(context.Background(), models.Portfolio{Code: "P", Currency: "NZD", Base: "USD"}, in)
	require.NoError(t, err)

	assert.True(t, out.TradeCashRate.Equal(d("1")))
	assert.True(t, out.TradeBaseRate.Equal(d("0.67448621")), "base %s", out.TradeBaseRate)
	assert.True(t, out.TradePortfolioRate.Equal(d("1.04790165")), "portfolio %s", out.TradePortfolioRate)
}

func TestSetRates_SuppliedRateHonouredUnlessIgnored(t *testing.T) {
	in := models.Trn{ID: "t1", TradeCurrency: "AUD", TradeDate: fixtureDate, TradeBaseRate: d("0.7")}
	portfolio := models.Portfolio{Code: "P", Currency: "AUD", Base: "USD"}

	kept, err := newTestService(&stubSource{}, false).SetRates(context.Background(), portfolio, in)
	require.NoError(t, err)
	assert.True(t, kept.TradeBaseRate.Equal(d("0.7")))

	recomputed, err := newTestService(&stubSource{}, true).SetRates(context.Background(), portfolio, in)
	require.NoError(t, err)
	assert.True(t, recomputed.TradeBaseRate.Equal(d("0.67448621")))

	// per-request override beats config
	ignore := true
	ctx := common.WithRequestContext(context.Background(), &common.RequestContext{IgnoreRates: &ignore})
	overridden, err := newTestService(&stubSource{}, false).SetRates(ctx, portfolio, in)
	require.NoError(t, err)
	assert.True(t, overridden.TradeBaseRate.Equal(d("0.67448621")))
}
