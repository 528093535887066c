package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Bucket names one of the three currency perspectives a position is kept in.
type Bucket string

const (
	BucketTrade     Bucket = "TRADE"
	BucketBase      Bucket = "BASE"
	BucketPortfolio Bucket = "PORTFOLIO"
)

// Buckets lists every currency bucket in a stable order.
var Buckets = [...]Bucket{BucketTrade, BucketBase, BucketPortfolio}

// QuantityValues tracks held units. Sold is stored as a negative magnitude
// and Total is always derived, never stored.
type QuantityValues struct {
	Purchased  decimal.Decimal `json:"purchased"`
	Sold       decimal.Decimal `json:"sold"`
	Adjustment decimal.Decimal `json:"adjustment"`
}

// Total returns purchased + sold + adjustment.
func (q QuantityValues) Total() decimal.Decimal {
	return q.Purchased.Add(q.Sold).Add(q.Adjustment)
}

// MoneyValues holds the running money state of a position in one bucket.
type MoneyValues struct {
	Currency       string          `json:"currency"`
	CostBasis      decimal.Decimal `json:"cost_basis"`
	AverageCost    decimal.Decimal `json:"average_cost"`
	RealisedGain   decimal.Decimal `json:"realised_gain"`
	UnrealisedGain decimal.Decimal `json:"unrealised_gain"`
	TotalGain      decimal.Decimal `json:"total_gain"`
	MarketValue    decimal.Decimal `json:"market_value"`
	CostValue      decimal.Decimal `json:"cost_value"`
	Price          decimal.Decimal `json:"price"`
	Purchases      decimal.Decimal `json:"purchases"`
	Sales          decimal.Decimal `json:"sales"`
	Dividends      decimal.Decimal `json:"dividends"`
	Fees           decimal.Decimal `json:"fees"`
}

// DateValues records the lifecycle dates of a position.
type DateValues struct {
	Opened    time.Time `json:"opened,omitempty"`
	LastTrade time.Time `json:"last_trade,omitempty"`
	Closed    time.Time `json:"closed,omitempty"`
}

// Position is the accumulated state of one asset within a portfolio.
type Position struct {
	Asset          Asset                   `json:"asset"`
	QuantityValues QuantityValues          `json:"quantity_values"`
	MoneyValues    map[Bucket]*MoneyValues `json:"money_values"`
	DateValues     DateValues              `json:"date_values"`
}

// NewPosition creates an empty position with all three buckets present.
func NewPosition(asset Asset) *Position {
	p := &Position{
		Asset:       asset,
		MoneyValues: make(map[Bucket]*MoneyValues, len(Buckets)),
	}
	for _, b := range Buckets {
		p.MoneyValues[b] = &MoneyValues{}
	}
	return p
}

// Money returns the bucket's values, creating them if missing.
func (p *Position) Money(bucket Bucket) *MoneyValues {
	if p.MoneyValues == nil {
		p.MoneyValues = make(map[Bucket]*MoneyValues, len(Buckets))
	}
	mv, ok := p.MoneyValues[bucket]
	if !ok {
		mv = &MoneyValues{}
		p.MoneyValues[bucket] = mv
	}
	return mv
}

// Positions is the per-request aggregate of a portfolio's positions.
// It is built fresh for every accumulation or valuation and never shared.
type Positions struct {
	Portfolio Portfolio            `json:"portfolio"`
	AsAt      time.Time            `json:"as_at"`
	Positions map[string]*Position `json:"positions"`
}

// NewPositions creates an empty aggregate for the portfolio.
func NewPositions(portfolio Portfolio, asAt time.Time) *Positions {
	return &Positions{
		Portfolio: portfolio,
		AsAt:      asAt,
		Positions: make(map[string]*Position),
	}
}

// Get returns the position for the asset, creating it on first reference.
func (p *Positions) Get(asset Asset) *Position {
	key := asset.Key()
	if pos, ok := p.Positions[key]; ok {
		return pos
	}
	pos := NewPosition(asset)
	p.Positions[key] = pos
	return pos
}

// Add stores a position under its asset key, replacing any existing one.
func (p *Positions) Add(position *Position) {
	p.Positions[position.Asset.Key()] = position
}

// Contains reports whether the asset already has a position.
func (p *Positions) Contains(asset Asset) bool {
	_, ok := p.Positions[asset.Key()]
	return ok
}

// IsEmpty returns true when there are no positions.
func (p *Positions) IsEmpty() bool {
	return p == nil || len(p.Positions) == 0
}

// Assets returns the asset of every position, ordered by asset key.
func (p *Positions) Assets() []Asset {
	keys := make([]string, 0, len(p.Positions))
	for k := range p.Positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assets := make([]Asset, 0, len(keys))
	for _, k := range keys {
		assets = append(assets, p.Positions[k].Asset)
	}
	return assets
}
