package selection

import "errors"

// Sentinel kinds for selection errors.
var (
	ErrNoRows    = errors.New("no rows to prepare")
	ErrNoColumns = errors.New("no feature columns")
)
