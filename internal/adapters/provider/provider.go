// Package provider defines the historical data source contract shared by the
// local session cache and the remote REST variant.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/pitwall/internal/domain/model"
)

// Source names accepted by the factory.
const (
	SourceLocal  = "local"
	SourceFastF1 = "fastf1"
	SourceOpenF1 = "openf1"
)

// HistoricalDataProvider exposes per-round session data in one schema. Data
// that genuinely does not exist yields an empty slice and a nil error; an
// error means the provider could not answer.
type HistoricalDataProvider interface {
	// Name returns the canonical source name.
	Name() string
	// ListRounds returns the season's rounds in calendar order.
	ListRounds(ctx context.Context, year int) ([]model.Round, error)
	// PracticeFeatures returns merged FP1-FP3 features for the round.
	PracticeFeatures(ctx context.Context, year, round int) ([]model.DriverRecord, error)
	// QualifyingResults returns the qualifying classification.
	QualifyingResults(ctx context.Context, year, round int) ([]model.QualifyingResult, error)
	// RaceResults returns the race classification.
	RaceResults(ctx context.Context, year, round int) ([]model.RaceResult, error)
	// StandingsBefore returns championship positions entering the round.
	StandingsBefore(ctx context.Context, year, round int) ([]model.Standing, error)
}

// Factory builds a provider for a source name.
type Factory func(ctx context.Context, source string) (HistoricalDataProvider, error)

// Canonical maps a source name or alias to its canonical name.
func Canonical(source string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case SourceLocal, SourceFastF1:
		return SourceLocal, nil
	case SourceOpenF1:
		return SourceOpenF1, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
	}
}
