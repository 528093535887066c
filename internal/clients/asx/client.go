// Package asx provides a live price provider backed by the ASX Markit
// Digital API
package asx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// ProviderID is the id markets reference this provider by.
const ProviderID = "ASX"

const (
	DefaultBaseURL   = "https://asx.api.markitdigital.com/asx-research/1.0"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client implements PriceProvider using the Markit Digital header endpoint.
// It only knows the current price, so requests for earlier dates return no
// rows and the dispatcher zero-prices them.
type Client struct {
	config     models.ProviderConfig
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
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

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new ASX Markit Digital client.
// No API key is required; this is a public endpoint.
func NewClient(config models.ProviderConfig, opts ...ClientOption) *Client {
	if config.ID == "" {
		config.ID = ProviderID
	}
	c := &Client{
		config:  config,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}
	if config.BaseURL != "" {
		WithBaseURL(config.BaseURL)(c)
	}
	WithRateLimit(config.RateLimit)(c)
	if timeout, err := time.ParseDuration(config.Timeout); err == nil && timeout > 0 {
		WithTimeout(timeout)(c)
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
	return fmt.Sprintf("ASX Markit API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// headerResponse represents the ASX Markit Digital header API response.
// The endpoint only reliably returns priceLast, priceChange,
// priceChangePercent and volume.
type headerResponse struct {
	Data struct {
		PriceLast          decimal.Decimal `json:"priceLast"`
		PriceChange        decimal.Decimal `json:"priceChange"`
		PriceChangePercent decimal.Decimal `json:"priceChangePercent"`
		Volume             int64           `json:"volume"`
	} `json:"data"`
}

func (c *Client) ID() string { return c.config.ID }

func (c *Client) Config() models.ProviderConfig { return c.config }

// IsMarketSupported reports whether the market is in the configured list.
func (c *Client) IsMarketSupported(market models.Market) bool {
	return c.config.SupportsMarket(market.Code)
}

// GetPrices quotes each symbol. Dates before today in the market's
// timezone are not served.
func (c *Client) GetPrices(ctx context.Context, market models.Market, symbols string, date time.Time) (map[string]*models.PriceResult, error) {
	result := make(map[string]*models.PriceResult)

	loc := market.Location()
	y, m, d := c.now().In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if !date.IsZero() {
		dy, dm, dd := date.Date()
		if time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC).Before(today) {
			c.logger.Debug().Str("date", date.Format("2006-01-02")).Msg("ASX live quotes cannot price past dates")
			return result, nil
		}
	}

	for _, symbol := range strings.Split(symbols, ",") {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		price, err := c.GetQuote(ctx, symbol)
		if err != nil {
			if common.IsBusiness(err) {
				c.logger.Debug().Err(err).Str("symbol", symbol).Msg("ASX could not price symbol")
				continue
			}
			return nil, err
		}
		price.Date = today
		result[symbol] = price
	}
	return result, nil
}

// GetQuote retrieves a live price snapshot for an ASX-listed code. Any
// exchange suffix ("BHP.AU") is stripped before calling the API.
func (c *Client) GetQuote(ctx context.Context, ticker string) (*models.PriceResult, error) {
	const op = "asx.GetQuote"

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, common.SystemErrorf(op, "rate limit wait: %w", err)
	}

	code := ticker
	if idx := strings.Index(ticker, "."); idx > 0 {
		code = ticker[:idx]
	}

	endpoint := fmt.Sprintf("/companies/%s/header", strings.ToLower(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, common.SystemErrorf(op, "failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Error().Err(err).Str("ticker", code).Dur("elapsed", elapsed).Msg("ASX Markit API request failed")
		return nil, common.SystemErrorf(op, "failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body), Endpoint: endpoint}
		c.logger.Warn().Str("ticker", code).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("ASX Markit API non-OK response")
		if resp.StatusCode == http.StatusNotFound {
			return nil, common.NewBusinessError(op, apiErr)
		}
		return nil, common.NewSystemError(op, apiErr)
	}

	var apiResp headerResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, common.SystemErrorf(op, "failed to decode response: %w", err)
	}
	q := apiResp.Data
	if q.PriceLast.IsZero() {
		return nil, common.BusinessErrorf(op, "%s: no last price", code)
	}

	c.logger.Debug().Str("ticker", code).Str("price", q.PriceLast.String()).Dur("elapsed", elapsed).Msg("ASX Markit API call")

	return &models.PriceResult{
		Symbol:        ticker,
		Close:         q.PriceLast,
		PreviousClose: q.PriceLast.Sub(q.PriceChange),
		Volume:        q.Volume,
		Source:        c.config.ID,
	}, nil
}
