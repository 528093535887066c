package marketdata

import (
	"context"
	"time"

	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// DefaultProviderID identifies the fallback provider in results and logs.
const DefaultProviderID = "DEFAULT"

// DefaultProvider serves markets that have no supporting provider. It
// prices nothing, so every asset routed to it resolves to a zero price.
type DefaultProvider struct{}

var _ interfaces.PriceProvider = DefaultProvider{}

func (DefaultProvider) ID() string { return DefaultProviderID }

func (DefaultProvider) Config() models.ProviderConfig {
	return models.ProviderConfig{ID: DefaultProviderID, BatchSize: 100, TradesWeekends: true}
}

func (DefaultProvider) IsMarketSupported(models.Market) bool { return true }

func (DefaultProvider) GetPrices(context.Context, models.Market, string, time.Time) (map[string]*models.PriceResult, error) {
	return map[string]*models.PriceResult{}, nil
}
