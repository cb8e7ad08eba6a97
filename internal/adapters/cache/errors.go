package cache

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrEmptyKey   = errors.New("cache key is empty")
	ErrNotJSON    = errors.New("fetched payload is not valid JSON")
	ErrNilFetcher = errors.New("fetch function is nil")
)
