package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrInvalidRequest marks a run request that cannot be served as given.
	ErrInvalidRequest = errors.New("invalid prediction request")
	// ErrProviderSetup marks a provider that could not be constructed.
	ErrProviderSetup = errors.New("provider setup failed")
	// ErrNotStarted is returned by async submission before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrQueueFull is returned when the async queue rejects a job.
	ErrQueueFull = errors.New("prediction queue full")
)
