package provider

import (
	"errors"
	"fmt"
)

// Sentinel kinds for provider errors.
var (
	// ErrUnavailable marks an upstream that could not be reached or kept
	// failing after retries. Runs record it and skip the round.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrMalformed marks a payload that could not be decoded.
	ErrMalformed = errors.New("malformed provider payload")
	// ErrMisconfigured marks a provider that cannot serve any request.
	ErrMisconfigured = errors.New("provider misconfigured")

	// ErrTerminal is wrapped by errors that must abort a run.
	ErrTerminal = errors.New("terminal provider error")

	ErrNoMeeting         = fmt.Errorf("%w: no meeting for round", ErrTerminal)
	ErrRoundOutOfRange   = fmt.Errorf("%w: round out of range", ErrTerminal)
	ErrUnsupportedSource = fmt.Errorf("%w: unsupported source", ErrTerminal)
)

// IsTerminal reports whether err must abort the run.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrTerminal)
}
