package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TrnType is the closed set of transaction kinds the accumulator understands.
type TrnType string

const (
	TrnTypeBuy      TrnType = "BUY"
	TrnTypeSell     TrnType = "SELL"
	TrnTypeDividend TrnType = "DIVI"
	TrnTypeSplit    TrnType = "SPLIT"
)

var validTrnTypes = map[TrnType]bool{
	TrnTypeBuy:      true,
	TrnTypeSell:     true,
	TrnTypeDividend: true,
	TrnTypeSplit:    true,
}

// ValidTrnType returns true if t is one of BUY, SELL, DIVI or SPLIT.
func ValidTrnType(t TrnType) bool {
	return validTrnTypes[t]
}

// ParseTrnType normalises a raw type string. Unknown values are returned
// upper-cased and fail ValidTrnType.
func ParseTrnType(s string) TrnType {
	return TrnType(strings.ToUpper(strings.TrimSpace(s)))
}

// Trn is a single already-parsed transaction against one asset.
//
// The three rate fields hold "units of target currency per one unit of the
// trade currency". A zero rate means "not supplied"; the rate binder fills
// them in before accumulation.
type Trn struct {
	ID                 string          `json:"id"`
	Asset              Asset           `json:"asset"`
	Type               TrnType         `json:"type"`
	Quantity           decimal.Decimal `json:"quantity"`
	Price              decimal.Decimal `json:"price"`
	TradeAmount        decimal.Decimal `json:"trade_amount"` // quantity x price net of fees, trade currency
	Fees               decimal.Decimal `json:"fees"`
	TradeDate          time.Time       `json:"trade_date"`
	TradeCurrency      string          `json:"trade_currency"`
	CashCurrency       string          `json:"cash_currency,omitempty"`
	TradeCashRate      decimal.Decimal `json:"trade_cash_rate"`
	TradeBaseRate      decimal.Decimal `json:"trade_base_rate"`
	TradePortfolioRate decimal.Decimal `json:"trade_portfolio_rate"`
	Comments           string          `json:"comments,omitempty"`
}

// RateFor returns the bound rate that converts trade currency amounts into
// the given bucket. The TRADE bucket always converts at 1.
func (t *Trn) RateFor(bucket Bucket) decimal.Decimal {
	var rate decimal.Decimal
	switch bucket {
	case BucketTrade:
		return decimal.NewFromInt(1)
	case BucketBase:
		rate = t.TradeBaseRate
	case BucketPortfolio:
		rate = t.TradePortfolioRate
	}
	if rate.IsZero() {
		return decimal.NewFromInt(1)
	}
	return rate
}

// Portfolio owns a Positions aggregate. Currency is the reporting currency,
// Base the base currency; either may be empty.
type Portfolio struct {
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	Currency string `json:"currency,omitempty"`
	Base     string `json:"base,omitempty"`
}

// CurrencyFor returns the currency a bucket is denominated in, given the
// trade currency of the position.
func (p Portfolio) CurrencyFor(bucket Bucket, tradeCurrency string) string {
	switch bucket {
	case BucketBase:
		return p.Base
	case BucketPortfolio:
		return p.Currency
	default:
		return tradeCurrency
	}
}
