package openf1

import (
	"time"

	"github.com/okian/pitwall/internal/adapters/cache"
	"github.com/okian/pitwall/internal/httputil"
	"github.com/okian/pitwall/internal/timeutil"
	"github.com/okian/pitwall/pkg/logger"
)

// ClientOption applies a configuration option to the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets the transport used for requests.
func WithHTTPClient(h httputil.HTTPClient) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithCache sets the on-disk response cache.
func WithCache(dc *cache.DiskCache) ClientOption {
	return func(c *Client) {
		c.cache = dc
	}
}

// WithClock sets the clock used for retry backoff.
func WithClock(clk timeutil.Clock) ClientOption {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxAttempts sets how many times a request is tried.
func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Option applies a configuration option to the Provider.
type Option func(*Provider)

// WithTarget sets the year and round whose meeting may be resolved by name
// or country instead of by calendar index.
func WithTarget(year, round int, meetingName, countryName string) Option {
	return func(p *Provider) {
		p.targetYear = year
		p.targetRound = round
		p.meetingName = meetingName
		p.countryName = countryName
	}
}

// WithLogger sets the provider logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}
