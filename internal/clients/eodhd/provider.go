package eodhd

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// bulkEODResponse is one row of /eod-bulk-last-day. Exchanges disagree on
// whether prices are numbers or strings.
type bulkEODResponse struct {
	Code          string      `json:"code"`
	ExchangeShort string      `json:"exchange_short_name"`
	Date          string      `json:"date"`
	Open          flexDecimal `json:"open"`
	High          flexDecimal `json:"high"`
	Low           flexDecimal `json:"low"`
	Close         flexDecimal `json:"close"`
	AdjClose      flexDecimal `json:"adjusted_close"`
	PrevClose     flexDecimal `json:"prev_close"`
	Volume        flexDecimal `json:"volume"`
}

func (c *Client) ID() string { return c.config.ID }

func (c *Client) Config() models.ProviderConfig { return c.config }

// IsMarketSupported reports whether the market is in the configured list.
func (c *Client) IsMarketSupported(market models.Market) bool {
	return c.config.SupportsMarket(market.Code)
}

// GetPrices prices a batch on one market with a single bulk request. The
// response is a blob keyed by code and exchange; rows with no close are
// omitted so the dispatcher zero-prices them.
func (c *Client) GetPrices(ctx context.Context, market models.Market, symbols string, date time.Time) (map[string]*models.PriceResult, error) {
	exchange, ok := market.Alias(c.config.ID)
	if !ok || exchange == "" {
		exchange = strings.ToUpper(market.Code)
	}
	var list []string
	for _, s := range strings.Split(symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	return c.GetBulkEOD(ctx, exchange, list, date)
}

// GetBulkEOD fetches end-of-day rows for tickers on one exchange, keyed by
// "CODE.EXCHANGE".
func (c *Client) GetBulkEOD(ctx context.Context, exchange string, tickers []string, date time.Time) (map[string]*models.PriceResult, error) {
	result := make(map[string]*models.PriceResult, len(tickers))
	if len(tickers) == 0 {
		return result, nil
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(tickers, ","))
	if !date.IsZero() {
		params.Set("date", date.Format("2006-01-02"))
	}

	var rows []bulkEODResponse
	if err := c.get(ctx, "/eod-bulk-last-day/"+exchange, params, &rows); err != nil {
		return nil, err
	}

	for _, row := range rows {
		if row.Code == "" || row.Close.Decimal().IsZero() {
			continue
		}
		short := row.ExchangeShort
		if short == "" {
			short = exchange
		}
		symbol := strings.ToUpper(row.Code + "." + short)

		price := &models.PriceResult{
			Symbol:        symbol,
			Open:          row.Open.Decimal(),
			High:          row.High.Decimal(),
			Low:           row.Low.Decimal(),
			Close:         row.Close.Decimal(),
			PreviousClose: row.PrevClose.Decimal(),
			Volume:        row.Volume.Decimal().IntPart(),
			Source:        c.config.ID,
		}
		if d, err := time.Parse("2006-01-02", row.Date); err == nil {
			price.Date = d
		}
		result[symbol] = price
	}

	c.logger.Debug().
		Str("exchange", exchange).
		Int("requested", len(tickers)).
		Int("priced", len(result)).
		Msg("EODHD bulk prices")

	return result, nil
}
