package api

import "errors"

var (
	// ErrBadRequest marks a malformed body, query parameter or path.
	ErrBadRequest = errors.New("bad request")
	// ErrLimitExceeded marks a list limit above the handler's maximum.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrBadRunID marks a run path that does not name exactly one run.
	ErrBadRunID = errors.New("bad run id")
)
