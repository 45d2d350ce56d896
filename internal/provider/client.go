package provider

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Default client settings.
const (
	DefaultBaseURL      = "https://api.coingecko.com/api/v3"
	DefaultAPIKeyHeader = "x-cg-demo-api-key"
	DefaultCurrency     = "usd"
	DefaultTimeout      = 5 * time.Second
)

// DefaultBackoff is the fixed delay before each retry. Its length is the retry count.
var DefaultBackoff = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

// Client provides access to the market data provider.
type Client struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	currency     string
	httpClient   *http.Client
	logger       *slog.Logger

	timeout       time.Duration   // Per-attempt deadline
	backoff       []time.Duration // Delay before retry i+1
	maxRetryAfter time.Duration   // Cap on a 429 Retry-After; 0 means the longest backoff

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new provider client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		apiKeyHeader: DefaultAPIKeyHeader,
		currency:     DefaultCurrency,
		httpClient:   &http.Client{},
		logger:       slog.Default(),
		timeout:      DefaultTimeout,
		backoff:      append([]time.Duration(nil), DefaultBackoff...),
		sleep:        sleepContext,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithBackoff sets the fixed retry delays. The number of delays is the number of retries.
func WithBackoff(delays ...time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = append([]time.Duration(nil), delays...)
	}
}

// WithMaxRetryAfter caps how long a 429 Retry-After may delay a retry.
// Zero caps it at the longest backoff delay.
func WithMaxRetryAfter(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetryAfter = d
	}
}

// retryAfterCap returns the effective Retry-After ceiling.
func (c *Client) retryAfterCap() time.Duration {
	if c.maxRetryAfter > 0 {
		return c.maxRetryAfter
	}
	var longest time.Duration
	for _, d := range c.backoff {
		longest = max(longest, d)
	}
	return longest
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCurrency sets the quote currency (vs_currency).
func WithCurrency(currency string) ClientOption {
	return func(c *Client) {
		c.currency = currency
	}
}

// WithAPIKeyHeader sets the header that carries the API key.
func WithAPIKeyHeader(header string) ClientOption {
	return func(c *Client) {
		c.apiKeyHeader = header
	}
}

// WithSleep replaces the backoff sleep. Used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = sleep
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
