package pipeline

import "github.com/okian/pitwall/pkg/logger"

// Option applies a configuration option to Run.
type Option func(*runner)

// WithLogger sets the pipeline logger.
func WithLogger(l logger.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.log = l
		}
	}
}
