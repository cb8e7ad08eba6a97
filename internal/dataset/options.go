package dataset

import "github.com/okian/pitwall/pkg/logger"

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}
