// Package config defines process configuration and its loading hooks.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validate reports problems wrapped in ErrInvalidConfig.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/regression"
)

// SeasonsAuto selects the two seasons before the target plus the target.
const SeasonsAuto = "auto"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Mode is qualifying or race.
	Mode string `koanf:"mode"`

	// Source selects the historical provider: openf1, local (alias fastf1).
	Source string `koanf:"source"`

	// Year and Round identify the event to predict.
	Year  int `koanf:"year"`
	Round int `koanf:"round"`

	// TrainSeasons lists training years, or "auto".
	TrainSeasons []string `koanf:"train_seasons"`

	// IncludeStandings adds the championship position as a race feature.
	IncludeStandings bool `koanf:"include_standings"`

	// CacheDir holds the REST response cache; empty disables it.
	CacheDir string `koanf:"cache_dir"`

	// DataDir is the root of the local session export.
	DataDir string `koanf:"data_dir"`

	// MeetingName and CountryName pick the target round's meeting on the
	// REST source.
	MeetingName string `koanf:"meeting_name"`
	CountryName string `koanf:"country_name"`

	// OpenF1BaseURL is the REST API root.
	OpenF1BaseURL string `koanf:"openf1_base_url"`

	// RequestTimeoutS bounds each REST request, in seconds.
	RequestTimeoutS int `koanf:"request_timeout_s"`

	// MaxAttempts bounds REST retries.
	MaxAttempts int `koanf:"max_attempts"`

	// DisabledModels removes candidates from model selection.
	DisabledModels []string `koanf:"disabled_models"`

	// TopN caps the prediction table.
	TopN int `koanf:"top_n"`

	// Workers and QueueSize size the async prediction pool.
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`

	// StoreCapacity bounds the runs kept for GET /predictions/{id}.
	StoreCapacity int `koanf:"store_capacity"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		Mode:            string(model.ModeQualifying),
		Source:          provider.SourceOpenF1,
		TrainSeasons:    []string{SeasonsAuto},
		CacheDir:        ".cache/pitwall",
		OpenF1BaseURL:   "https://api.openf1.org/v1",
		RequestTimeoutS: 30,
		MaxAttempts:     3,
		TopN:            10,
		Workers:         2,
		QueueSize:       64,
		StoreCapacity:   256,
	}
}

// Validate checks every field that does not depend on a specific run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if _, err := model.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := provider.Canonical(c.Source); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.RequestTimeoutS <= 0 {
		return fmt.Errorf("%w: request_timeout_s must be positive", ErrInvalidConfig)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max_attempts must be positive", ErrInvalidConfig)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("%w: top_n must be positive", ErrInvalidConfig)
	}
	if c.Workers <= 0 || c.QueueSize <= 0 || c.StoreCapacity <= 0 {
		return fmt.Errorf("%w: workers, queue_size and store_capacity must be positive", ErrInvalidConfig)
	}
	for _, m := range c.DisabledModels {
		if !regression.KnownModel(m) {
			return fmt.Errorf("%w: unknown model %q in disabled_models", ErrInvalidConfig, m)
		}
	}
	if _, err := ParseSeasons(c.TrainSeasons, 0); err != nil {
		return err
	}
	return nil
}

// ValidateRun checks the fields a one-shot prediction needs.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Year <= 0 {
		return fmt.Errorf("%w: year must be set", ErrInvalidConfig)
	}
	if c.Round <= 0 {
		return fmt.Errorf("%w: round must be positive", ErrInvalidConfig)
	}
	return nil
}

// ParseSeasons resolves training seasons for a target year. Entries may be
// comma separated; an empty list or "auto" yields target-2..target.
func ParseSeasons(raw []string, target int) ([]int, error) {
	var parts []string
	for _, r := range raw {
		for _, p := range strings.Split(r, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	}
	if len(parts) == 0 || (len(parts) == 1 && strings.EqualFold(parts[0], SeasonsAuto)) {
		return []int{target - 2, target - 1, target}, nil
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		y, err := strconv.Atoi(p)
		if err != nil || y <= 0 {
			return nil, fmt.Errorf("%w: bad training season %q", ErrInvalidConfig, p)
		}
		out = append(out, y)
	}
	return out, nil
}
