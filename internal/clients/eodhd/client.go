// Package eodhd provides a price provider backed by the EODHD bulk
// end-of-day API
package eodhd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// ProviderID is the id markets reference EODHD by.
const ProviderID = "EODHD"

// flexDecimal handles JSON values that may be either a number or a string.
type flexDecimal decimal.Decimal

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexDecimal(decimal.Zero)
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "N/A" {
		*f = flexDecimal(decimal.Zero)
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		*f = flexDecimal(decimal.Zero)
		return nil
	}
	*f = flexDecimal(d)
	return nil
}

func (f flexDecimal) Decimal() decimal.Decimal { return decimal.Decimal(f) }

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements PriceProvider
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

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new EODHD client from its provider config. Options
// are applied after the config.
func NewClient(config models.ProviderConfig, opts ...ClientOption) *Client {
	if config.ID == "" {
		config.ID = ProviderID
	}
	c := &Client{
		config:  config,
		baseURL: DefaultBaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
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
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	const op = "eodhd.get"

	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return common.SystemErrorf(op, "rate limit wait: %w", err)
	}

	// Add API key
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return common.SystemErrorf(op, "failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.SystemErrorf(op, "failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
		// Bad key or unknown exchange will not fix itself on retry
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return common.NewBusinessError(op, apiErr)
		}
		return common.NewSystemError(op, apiErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return common.SystemErrorf(op, "failed to decode response: %w", err)
	}

	return nil
}
