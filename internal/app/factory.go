package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/pitwall/internal/adapters/cache"
	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/adapters/provider/local"
	"github.com/okian/pitwall/internal/adapters/provider/openf1"
	"github.com/okian/pitwall/internal/config"
	"github.com/okian/pitwall/internal/httputil"
	"github.com/okian/pitwall/pkg/logger"
)

// FactoryOption configures NewFactory.
type FactoryOption func(*factory)

type factory struct {
	cfg     *config.Config
	year    int
	round   int
	meeting string
	country string
	http    httputil.HTTPClient
	log     logger.Logger
}

// WithTarget names the year and round whose meeting the REST source resolves
// by name or country.
func WithTarget(year, round int, meetingName, countryName string) FactoryOption {
	return func(f *factory) {
		f.year = year
		f.round = round
		f.meeting = meetingName
		f.country = countryName
	}
}

// WithFactoryHTTPClient overrides the REST transport.
func WithFactoryHTTPClient(h httputil.HTTPClient) FactoryOption {
	return func(f *factory) {
		if h != nil {
			f.http = h
		}
	}
}

// WithFactoryLogger sets the logger handed to providers.
func WithFactoryLogger(l logger.Logger) FactoryOption {
	return func(f *factory) {
		if l != nil {
			f.log = l
		}
	}
}

// NewFactory returns a provider factory backed by cfg: the local variant reads
// cfg.DataDir, the REST variant uses the configured base URL, timeout, retry
// budget and response cache.
func NewFactory(cfg *config.Config, opts ...FactoryOption) provider.Factory {
	f := &factory{cfg: cfg, log: logger.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f.build
}

func (f *factory) build(_ context.Context, source string) (provider.HistoricalDataProvider, error) {
	name, err := provider.Canonical(source)
	if err != nil {
		return nil, err
	}
	switch name {
	case provider.SourceLocal:
		return local.New(f.cfg.DataDir, local.WithLogger(f.log.Named("local")))
	default:
		dc, err := cache.New(f.cfg.CacheDir, cache.WithLogger(f.log.Named("cache")))
		if err != nil {
			return nil, fmt.Errorf("%w: response cache: %v", provider.ErrMisconfigured, err)
		}
		copts := []openf1.ClientOption{
			openf1.WithBaseURL(f.cfg.OpenF1BaseURL),
			openf1.WithCache(dc),
			openf1.WithTimeout(time.Duration(f.cfg.RequestTimeoutS) * time.Second),
			openf1.WithMaxAttempts(f.cfg.MaxAttempts),
			openf1.WithClientLogger(f.log.Named("openf1")),
		}
		if f.http != nil {
			copts = append(copts, openf1.WithHTTPClient(f.http))
		}
		return openf1.New(openf1.NewClient(copts...),
			openf1.WithTarget(f.year, f.round, f.meeting, f.country),
			openf1.WithLogger(f.log.Named("openf1")),
		), nil
	}
}
