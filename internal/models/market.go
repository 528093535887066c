// Package models defines data structures for tally
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Market is a trading venue as resolved by the reference service.
type Market struct {
	Code     string `json:"code"`
	Currency string `json:"currency,omitempty"` // native price currency
	Timezone string `json:"timezone,omitempty"` // IANA zone, e.g. "Australia/Sydney"
	Provider string `json:"provider,omitempty"` // configured price provider id, may be empty
	Fallback string `json:"fallback,omitempty"` // provider id used when Provider is not available

	// Aliases maps a provider id to the provider's own code for this market
	// (e.g. EODHD calls ASX "AU"). An empty alias means "bare symbol".
	Aliases map[string]string `json:"aliases,omitempty"`
}

// Location loads the market's timezone, falling back to UTC.
func (m Market) Location() *time.Location {
	if m.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Alias returns the provider's code for this market and whether one is configured.
func (m Market) Alias(providerID string) (string, bool) {
	alias, ok := m.Aliases[strings.ToUpper(providerID)]
	return alias, ok
}

// Asset is a priced instrument listed on one market.
type Asset struct {
	Code   string `json:"code"`
	Name   string `json:"name,omitempty"`
	Market Market `json:"market"`
}

// Key uniquely identifies an asset within a Positions aggregate.
func (a Asset) Key() string {
	return strings.ToUpper(a.Market.Code) + ":" + strings.ToUpper(a.Code)
}

// PriceCurrency is the currency the asset's market prices it in.
func (a Asset) PriceCurrency() string {
	return a.Market.Currency
}

// PriceResult is the price of one asset on one date as returned by a provider.
// A zero Close means "could not be priced".
type PriceResult struct {
	Asset         Asset           `json:"asset"`
	Symbol        string          `json:"symbol"`
	Date          time.Time       `json:"date"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Volume        int64           `json:"volume"`
	Source        string          `json:"source,omitempty"`
}

// ZeroPrice builds the fallback result for an asset a provider could not price.
func ZeroPrice(asset Asset, date time.Time, source string) *PriceResult {
	return &PriceResult{
		Asset:  asset,
		Symbol: asset.Code,
		Date:   date,
		Close:  decimal.Zero,
		Source: source,
	}
}

// BatchFailure records a provider batch that failed after retries.
type BatchFailure struct {
	Provider string `json:"provider"`
	Market   string `json:"market"`
	Codes    string `json:"codes"`
	Error    string `json:"error"`
}

// PriceResults is the merged response of a dispatch across providers.
type PriceResults struct {
	Date     time.Time               `json:"date"`
	Prices   map[string]*PriceResult `json:"prices"` // keyed by Asset.Key()
	Failures []BatchFailure          `json:"failures,omitempty"`
}

// Price returns the result for an asset, or nil if there is none.
func (r *PriceResults) Price(asset Asset) *PriceResult {
	if r == nil || r.Prices == nil {
		return nil
	}
	return r.Prices[asset.Key()]
}
