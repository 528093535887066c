// Package alphavantage provides a price provider backed by the Alpha
// Vantage daily time series API
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// ProviderID is the id markets reference Alpha Vantage by.
const ProviderID = "ALPHA"

const (
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 1 // requests per second; the free tier is far lower per day
)

// ErrUnknownSymbol is returned for "Error Message" payloads.
var ErrUnknownSymbol = errors.New("alphavantage: unknown symbol")

// Client implements PriceProvider. Alpha Vantage prices one symbol per
// request, so batches are normally configured with a size of 1.
type Client struct {
	config     models.ProviderConfig
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

var _ interfaces.PriceProvider = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// NewClient creates a new Alpha Vantage client from its provider config
func NewClient(config models.ProviderConfig, opts ...ClientOption) *Client {
	if config.ID == "" {
		config.ID = ProviderID
	}
	c := &Client{
		config:     config,
		baseURL:    DefaultBaseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     common.NewSilentLogger(),
	}
	if config.BaseURL != "" {
		WithBaseURL(config.BaseURL)(c)
	}
	WithRateLimit(config.RateLimit)(c)
	if timeout, err := time.ParseDuration(config.Timeout); err == nil && timeout > 0 {
		c.httpClient.Timeout = timeout
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Alpha Vantage API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type dailyResponse struct {
	ErrorMessage string              `json:"Error Message"`
	Note         string              `json:"Note"`
	Information  string              `json:"Information"`
	Series       map[string]dailyBar `json:"Time Series (Daily)"`
}

func (c *Client) ID() string { return c.config.ID }

func (c *Client) Config() models.ProviderConfig { return c.config }

// IsMarketSupported reports whether the market is in the configured list.
func (c *Client) IsMarketSupported(market models.Market) bool {
	return c.config.SupportsMarket(market.Code)
}

// GetPrices issues one request per symbol. Unknown symbols are left out of
// the result; a throttled or failed request fails the batch.
func (c *Client) GetPrices(ctx context.Context, market models.Market, symbols string, date time.Time) (map[string]*models.PriceResult, error) {
	result := make(map[string]*models.PriceResult)
	for _, symbol := range strings.Split(symbols, ",") {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		price, err := c.GetDaily(ctx, symbol, date)
		if err != nil {
			if common.IsBusiness(err) {
				c.logger.Debug().Err(err).Str("symbol", symbol).Msg("Alpha Vantage could not price symbol")
				continue
			}
			return nil, err
		}
		if price != nil {
			result[symbol] = price
		}
	}
	return result, nil
}

// GetDaily returns the bar for date, or the latest bar before it. The
// previous close is the bar before that one.
func (c *Client) GetDaily(ctx context.Context, symbol string, date time.Time) (*models.PriceResult, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)

	var resp dailyResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	switch {
	case resp.ErrorMessage != "":
		return nil, common.BusinessErrorf("alphavantage.GetDaily", "%s: %s: %w", symbol, resp.ErrorMessage, ErrUnknownSymbol)
	case resp.Note != "":
		return nil, common.SystemErrorf("alphavantage.GetDaily", "%s: throttled: %s", symbol, resp.Note)
	case resp.Information != "":
		return nil, common.SystemErrorf("alphavantage.GetDaily", "%s: %s", symbol, resp.Information)
	}

	days := make([]string, 0, len(resp.Series))
	for day := range resp.Series {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	want := date.Format("2006-01-02")
	for i, day := range days {
		if !date.IsZero() && day > want {
			continue
		}
		bar := resp.Series[day]
		closePrice, err := decimal.NewFromString(bar.Close)
		if err != nil || closePrice.IsZero() {
			return nil, nil
		}
		price := &models.PriceResult{
			Symbol: symbol,
			Open:   parseDecimal(bar.Open),
			High:   parseDecimal(bar.High),
			Low:    parseDecimal(bar.Low),
			Close:  closePrice,
			Volume: parseDecimal(bar.Volume).IntPart(),
			Source: c.config.ID,
		}
		price.Date, _ = time.Parse("2006-01-02", day)
		if i+1 < len(days) {
			price.PreviousClose = parseDecimal(resp.Series[days[i+1]].Close)
		}
		return price, nil
	}
	return nil, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// get performs a rate-limited GET request against /query
func (c *Client) get(ctx context.Context, params url.Values, result interface{}) error {
	const op = "alphavantage.get"
	const path = "/query"

	if err := c.limiter.Wait(ctx); err != nil {
		return common.SystemErrorf(op, "rate limit wait: %w", err)
	}

	params.Set("apikey", c.apiKey)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return common.SystemErrorf(op, "failed to create request: %w", err)
	}

	c.logger.Debug().Str("function", params.Get("function")).Str("symbol", params.Get("symbol")).Msg("Alpha Vantage API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.SystemErrorf(op, "failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return common.NewSystemError(op, &APIError{StatusCode: resp.StatusCode, Message: string(body), Endpoint: path})
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return common.SystemErrorf(op, "failed to decode response: %w", err)
	}
	return nil
}
