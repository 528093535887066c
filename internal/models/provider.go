package models

import (
	"strings"
)

// ProviderConfig is the static configuration of one price provider.
type ProviderConfig struct {
	ID             string   `toml:"id" json:"id"`
	BaseURL        string   `toml:"base_url" json:"base_url,omitempty"`
	APIKey         string   `toml:"api_key" json:"-"`
	BatchSize      int      `toml:"batch_size" json:"batch_size"`
	RateLimit      int      `toml:"rate_limit" json:"rate_limit"` // requests per second
	Timeout        string   `toml:"timeout" json:"timeout,omitempty"`
	DateLag        int      `toml:"date_lag" json:"date_lag"` // T-n data availability, in days
	TradesWeekends bool     `toml:"trades_weekends" json:"trades_weekends"`
	Markets        []string `toml:"markets" json:"markets"`
}

// EffectiveBatchSize never returns less than 1.
func (c ProviderConfig) EffectiveBatchSize() int {
	if c.BatchSize < 1 {
		return 1
	}
	return c.BatchSize
}

// SupportsMarket reports whether the market code is in the provider's list.
func (c ProviderConfig) SupportsMarket(code string) bool {
	for _, m := range c.Markets {
		if strings.EqualFold(m, code) {
			return true
		}
	}
	return false
}

// Symbol returns the code the provider knows an asset by: the bare asset
// code, suffixed with the market alias when one is configured and non-empty.
func (c ProviderConfig) Symbol(asset Asset) string {
	code := strings.ToUpper(asset.Code)
	alias, ok := asset.Market.Alias(c.ID)
	if !ok {
		alias = strings.ToUpper(asset.Market.Code)
	}
	if alias == "" {
		return code
	}
	return code + "." + alias
}

// ProviderBatch is the immutable result of splitting a provider's assets
// into request-sized groups.
type ProviderBatch struct {
	Provider  string
	Market    Market
	BatchSize int

	// Batches maps batch index to the comma-joined provider symbols.
	Batches map[int]string

	// AssetBatch maps Asset.Key() to the batch index it was placed in.
	AssetBatch map[string]int

	// Requests maps batch index to the assets in the order they were joined.
	Requests map[int][]Asset
}

// Count returns the number of batches.
func (b *ProviderBatch) Count() int {
	return len(b.Batches)
}

// SymbolsFor returns the individual symbols of a batch.
func (b *ProviderBatch) SymbolsFor(index int) []string {
	codes, ok := b.Batches[index]
	if !ok || codes == "" {
		return nil
	}
	return strings.Split(codes, ",")
}
