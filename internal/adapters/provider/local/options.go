package local

import "github.com/okian/pitwall/pkg/logger"

// Option applies a configuration option to the Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}
