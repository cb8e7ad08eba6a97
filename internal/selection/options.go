package selection

import (
	"github.com/okian/pitwall/internal/domain/regression"
	"github.com/okian/pitwall/pkg/logger"
)

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithCandidates replaces the candidate catalogue.
func WithCandidates(c []regression.Candidate) Option {
	return func(s *Selector) {
		s.candidates = c
	}
}

// WithLogger sets the selector logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.log = l
		}
	}
}
