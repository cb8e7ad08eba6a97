package service

import (
	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/adapters/repository"
	"github.com/okian/pitwall/internal/config"
	"github.com/okian/pitwall/internal/timeutil"
	"github.com/okian/pitwall/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the defaults applied to run requests and the provider
// settings used by the default factory.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = *cfg
		}
	}
}

// WithProviderFactory replaces the config-backed provider factory.
func WithProviderFactory(f provider.Factory) Option {
	return func(s *Service) {
		if f != nil {
			s.factory = f
		}
	}
}

// WithStore sets the run store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClock sets the clock used for timestamps and durations.
func WithClock(clk timeutil.Clock) Option {
	return func(s *Service) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// WithIDGenerator sets the run id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithWorkerCount sets the number of async workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued async jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
