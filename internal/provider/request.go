package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/market-sync/internal/metrics"
	"github.com/rickgao/market-sync/internal/version"
)

// Errors returned by the client. Match with errors.Is.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrTimeout             = errors.New("provider request timed out")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrAllAssetsInvalid    = errors.New("all assets failed validation")
	ErrMalformedResponse   = errors.New("malformed provider response")
)

// APIError represents a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
	RetryAfter time.Duration // From the Retry-After header, 0 if absent
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider api error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether the provider asked us to slow down.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// doRequest performs a single GET attempt bounded by the per-attempt timeout.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values, apiKey string) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if apiKey != "" {
		req.Header.Set(c.apiKeyHeader, apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, attemptCtx, "do request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classify(ctx, attemptCtx, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
		}
	}

	return body, nil
}

// classify maps a transport error to ErrTimeout when the attempt deadline fired
// while the caller's context is still live.
func (c *Client) classify(parent, attempt context.Context, op string, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%s: %w", op, parent.Err())
	}

	var netErr net.Error
	if errors.Is(attempt.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: %w after %s", op, ErrTimeout, c.timeout)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// getJSON performs a GET with fixed-delay retries and decodes the body into result.
// Every failure except caller cancellation is retryable.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, apiKey string, result any) error {
	attempts := len(c.backoff) + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff[attempt-1]

			var apiErr *APIError
			if errors.As(lastErr, &apiErr) && apiErr.IsRateLimited() && apiErr.RetryAfter > 0 {
				delay = apiErr.RetryAfter
				if limit := c.retryAfterCap(); delay > limit {
					c.logger.Warn("clamping provider retry-after",
						"retry_after", apiErr.RetryAfter,
						"max", limit,
						"path", path,
					)
					delay = limit
				}
			}

			c.logger.Warn("retrying provider request",
				"attempt", attempt+1,
				"max_attempts", attempts,
				"delay", delay,
				"path", path,
				"error", lastErr,
			)
			metrics.RecordProviderRetry()

			if err := c.sleep(ctx, delay); err != nil {
				return fmt.Errorf("wait for retry: %w", err)
			}
		}

		body, err := c.doRequest(ctx, path, query, apiKey)
		if err == nil {
			if err = json.Unmarshal(body, result); err != nil {
				err = fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
		}
		metrics.RecordProviderAttempt(statusClass(err))

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrProviderUnavailable, attempts, lastErr)
}

// parseRetryAfter accepts delta-seconds or an HTTP-date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}

	return 0
}

// statusClass labels an attempt outcome for metrics.
func statusClass(err error) string {
	if err == nil {
		return "2xx"
	}

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.IsRateLimited() {
			return "429"
		}
		return strconv.Itoa(apiErr.StatusCode/100) + "xx"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "transport"
	}
}
