// Package frankfurter provides a historical FX rate table client for the
// Frankfurter (ECB reference rate) API
package frankfurter

import (
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

const (
	DefaultBaseURL   = "https://api.frankfurter.app"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// DefaultEarliest is the first date the ECB reference series publishes.
var DefaultEarliest = time.Date(1999, time.January, 4, 0, 0, 0, 0, time.UTC)

// Client implements RateSource
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	earliest   time.Time
	now        func() time.Time
}

var _ interfaces.RateSource = (*Client)(nil)

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

// WithEarliest sets the earliest date the source covers
func WithEarliest(earliest time.Time) ClientOption {
	return func(c *Client) {
		c.earliest = earliest
	}
}

// NewClient creates a new Frankfurter client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:   common.NewSilentLogger(),
		earliest: DefaultEarliest,
		now:      time.Now,
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
	return fmt.Sprintf("frankfurter API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

type ratesResponse struct {
	Amount decimal.Decimal            `json:"amount"`
	Base   string                     `json:"base"`
	Date   string                     `json:"date"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// RequestDate applies the source's coverage policy: weekends resolve to the
// previous Friday, dates before coverage to the earliest date and future
// dates to today.
func (c *Client) RequestDate(date time.Time) time.Time {
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	ty, tm, td := c.now().UTC().Date()
	today := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	if day.After(today) {
		day = today
	}

	switch day.Weekday() {
	case time.Saturday:
		day = day.AddDate(0, 0, -1)
	case time.Sunday:
		day = day.AddDate(0, 0, -2)
	}

	if day.Before(c.earliest) {
		day = c.earliest
	}
	return day
}

// GetRates returns the rates of symbols per one unit of anchor. The table
// is stamped with the date the source actually published, which may precede
// the requested date on holidays.
func (c *Client) GetRates(ctx context.Context, date time.Time, anchor string, symbols []string) (*models.RateTable, error) {
	anchor = strings.ToUpper(anchor)
	day := c.RequestDate(date)

	params := url.Values{}
	params.Set("from", anchor)
	var wanted []string
	for _, s := range symbols {
		s = strings.ToUpper(s)
		if s != anchor {
			wanted = append(wanted, s)
		}
	}
	if len(wanted) > 0 {
		params.Set("to", strings.Join(wanted, ","))
	}

	path := "/" + day.Format("2006-01-02")

	var resp ratesResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}

	published, err := time.Parse("2006-01-02", resp.Date)
	if err != nil {
		return nil, common.SystemErrorf("frankfurter.GetRates", "unexpected date %q: %w", resp.Date, err)
	}

	table := &models.RateTable{
		Anchor: anchor,
		Date:   published,
		Rates:  make(map[string]decimal.Decimal, len(resp.Rates)+1),
	}
	table.Rates[anchor] = decimal.NewFromInt(1)
	for code, r := range resp.Rates {
		table.Rates[strings.ToUpper(code)] = r
	}

	c.logger.Debug().
		Str("anchor", anchor).
		Str("requested", date.Format("2006-01-02")).
		Str("published", resp.Date).
		Int("rates", len(resp.Rates)).
		Msg("Rate table fetched")

	return table, nil
}

// get performs a rate-limited GET request. Transport failures and server
// errors are system errors; 4xx replies are business errors.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	const op = "frankfurter.get"

	if err := c.limiter.Wait(ctx); err != nil {
		return common.SystemErrorf(op, "rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return common.SystemErrorf(op, "failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", reqURL).Msg("Frankfurter API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.SystemErrorf(op, "failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body), Endpoint: path}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return common.NewBusinessError(op, apiErr)
		}
		return common.NewSystemError(op, apiErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return common.SystemErrorf(op, "failed to decode response: %w", err)
	}

	return nil
}
