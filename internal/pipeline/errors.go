package pipeline

import "errors"

// Sentinel kinds for pipeline errors.
var (
	// ErrNoSources is returned when the run names no source.
	ErrNoSources = errors.New("no sources to ingest")
	// ErrNoYears is returned when the run names no season.
	ErrNoYears = errors.New("no years to ingest")
)
