package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyPair is a directed (from, to) pair of ISO currency codes.
type CurrencyPair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NewCurrencyPair upper-cases and trims both codes.
func NewCurrencyPair(from, to string) CurrencyPair {
	return CurrencyPair{
		From: strings.ToUpper(strings.TrimSpace(from)),
		To:   strings.ToUpper(strings.TrimSpace(to)),
	}
}

// ParseCurrencyPair parses "FROM:TO" (or "FROM/TO").
func ParseCurrencyPair(s string) (CurrencyPair, bool) {
	from, to, ok := strings.Cut(strings.ReplaceAll(s, "/", ":"), ":")
	if !ok {
		return CurrencyPair{}, false
	}
	pair := NewCurrencyPair(from, to)
	return pair, pair.IsDefined()
}

// String renders the pair as "FROM:TO".
func (p CurrencyPair) String() string {
	return p.From + ":" + p.To
}

// IsSame is true for pairs that always resolve to 1.
func (p CurrencyPair) IsSame() bool {
	return p.From == p.To
}

// IsDefined is false when either side is missing.
func (p CurrencyPair) IsDefined() bool {
	return p.From != "" && p.To != ""
}

// Inverse returns the (to, from) pair.
func (p CurrencyPair) Inverse() CurrencyPair {
	return CurrencyPair{From: p.To, To: p.From}
}

// FxRate is the number of To units per one From unit, observed on Date.
type FxRate struct {
	Pair CurrencyPair    `json:"pair"`
	Rate decimal.Decimal `json:"rate"`
	Date time.Time       `json:"date"`
}

// FxPairResults maps each requested pair to its rate.
type FxPairResults struct {
	Rates map[CurrencyPair]FxRate `json:"-"`
}

// NewFxPairResults creates an empty result set.
func NewFxPairResults() *FxPairResults {
	return &FxPairResults{Rates: make(map[CurrencyPair]FxRate)}
}

// Rate returns the rate for a pair, or false when it was not resolved.
func (r *FxPairResults) Rate(pair CurrencyPair) (FxRate, bool) {
	if r == nil {
		return FxRate{}, false
	}
	rate, ok := r.Rates[pair]
	return rate, ok
}

// RateOrOne returns the resolved rate, or 1 when the pair is missing.
func (r *FxPairResults) RateOrOne(pair CurrencyPair) decimal.Decimal {
	if rate, ok := r.Rate(pair); ok {
		return rate.Rate
	}
	return decimal.NewFromInt(1)
}

// List returns the rates as a slice keyed by "FROM:TO" for serialisation.
func (r *FxPairResults) List() map[string]FxRate {
	out := make(map[string]FxRate, len(r.Rates))
	for pair, rate := range r.Rates {
		out[pair.String()] = rate
	}
	return out
}

// RateTable holds one rate per currency against a fixed anchor currency,
// as published on Date (which may precede the requested date).
type RateTable struct {
	Anchor string                     `json:"anchor"`
	Date   time.Time                  `json:"date"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// Lookup returns the anchor-relative rate for a code. The anchor itself is
// always 1 even if the source omitted it.
func (t *RateTable) Lookup(code string) (decimal.Decimal, bool) {
	if code == t.Anchor {
		return decimal.NewFromInt(1), true
	}
	rate, ok := t.Rates[code]
	if !ok || rate.IsZero() {
		return decimal.Zero, false
	}
	return rate, true
}
