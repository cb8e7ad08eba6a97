package model

import "errors"

// Sentinel error kinds for this package.
var (
	ErrUnknownMode = errors.New("unknown prediction mode")
)
