package openf1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/pitwall/internal/adapters/cache"
	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/httputil"
	"github.com/okian/pitwall/internal/timeutil"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Client defaults.
const (
	DefaultBaseURL     = "https://api.openf1.org/v1"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	maxBodyBytes       = 32 << 20
)

// Client issues cached GET requests against the REST API and retries rate
// limits, transport failures and server errors with linear backoff.
type Client struct {
	baseURL     string
	http        httputil.HTTPClient
	cache       *cache.DiskCache
	clock       timeutil.Clock
	timeout     time.Duration
	maxAttempts int
	log         logger.Logger
}

// NewClient creates a client with defaults applied before opts.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		clock:       timeutil.RealClock{},
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httputil.NewStandardClient(c.timeout)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	return c
}

// URL builds the request URL with query parameters in lexicographic order,
// so the same query always maps to the same cache entry.
func (c *Client) URL(endpoint string, params map[string]string) string {
	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) == 0 {
		return u
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = url.QueryEscape(k) + "=" + url.QueryEscape(params[k])
	}
	return u + "?" + strings.Join(parts, "&")
}

// GetJSON fetches endpoint and decodes the JSON array into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params map[string]string, out any) error {
	if c == nil {
		return ErrNoClient
	}
	u := c.URL(endpoint, params)
	data, err := c.cache.GetOrFetch(ctx, u, func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, endpoint, u)
	})
	if errors.Is(err, errNoResults) {
		data, err = []byte("[]"), nil
	}
	if errors.Is(err, cache.ErrNotJSON) {
		return fmt.Errorf("%w: %s: %v", provider.ErrMalformed, u, err)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", provider.ErrMalformed, u, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, endpoint, u string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		final := attempt == c.maxAttempts-1
		start := c.clock.Now()
		body, wait, err := c.try(ctx, u, attempt)
		metrics.RecordProviderLatency(provider.SourceOpenF1, endpoint, c.clock.Since(start).Seconds())
		if err == nil {
			metrics.RecordProviderRequest(provider.SourceOpenF1, endpoint, "ok")
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
		if errors.Is(err, errNoResults) {
			metrics.RecordProviderRequest(provider.SourceOpenF1, endpoint, "empty")
			return nil, err
		}
		if errors.Is(err, ErrRejected) {
			metrics.RecordProviderRequest(provider.SourceOpenF1, endpoint, "rejected")
			return nil, err
		}
		if final {
			break
		}

		reason := "transport"
		switch {
		case errors.Is(err, ErrRateLimited):
			reason = "rate_limited"
		case errors.Is(err, ErrServer):
			reason = "server"
		}
		metrics.RecordProviderRetry(provider.SourceOpenF1, reason)
		c.log.Debug(ctx, "retrying request",
			logger.String("url", u),
			logger.Int("attempt", attempt+1),
			logger.Duration("wait", wait),
			logger.Error(err))
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	metrics.RecordProviderRequest(provider.SourceOpenF1, endpoint, "failed")
	if errors.Is(lastErr, provider.ErrUnavailable) {
		return nil, fmt.Errorf("%s after %d attempts: %w", u, c.maxAttempts, lastErr)
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %v", provider.ErrUnavailable, u, c.maxAttempts, lastErr)
}

// try performs one request. On a retryable failure it also returns how long
// to wait before the next attempt.
func (c *Client) try(ctx context.Context, u string, attempt int) ([]byte, time.Duration, error) {
	backoff := time.Duration(attempt+1) * time.Second

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request: %v", ErrRejected, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, backoff, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retryAfter(resp.Header.Get("Retry-After"), backoff), ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, errNoResults
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, backoff, fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, 0, fmt.Errorf("%w: %s: status %d", ErrRejected, u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, backoff, err
	}
	return body, 0, nil
}

// retryAfter honours a numeric Retry-After header with a one second floor.
func retryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return fallback
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil {
		return fallback
	}
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs * float64(time.Second))
}
