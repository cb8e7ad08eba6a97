package cache

import "github.com/okian/pitwall/pkg/logger"

// Option applies a configuration option to the DiskCache.
type Option func(*DiskCache)

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(c *DiskCache) {
		if l != nil {
			c.log = l
		}
	}
}
