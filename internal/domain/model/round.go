// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Mode selects what a run predicts.
type Mode string

const (
	// ModeQualifying predicts the gap to pole in seconds.
	ModeQualifying Mode = "qualifying"
	// ModeRace predicts the finishing position.
	ModeRace Mode = "race"
)

// ParseMode normalizes a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeQualifying:
		return ModeQualifying, nil
	case ModeRace:
		return ModeRace, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// eventKeyStride separates seasons in the event key. Seasons with 100 or more
// rounds would collide with the next season.
const eventKeyStride = 100

// EventKey is the chronological sort key of a round.
func EventKey(year, round int) int {
	return year*eventKeyStride + round
}

// Round is one event instance of a season.
type Round struct {
	Source    string
	Year      int
	Number    int
	EventName string

	// Remote-provider metadata; zero for the local variant.
	MeetingKey  int
	CountryName string
}

// EventKey returns the chronological key of the round.
func (r Round) EventKey() int { return EventKey(r.Year, r.Number) }

// Name returns the event name, falling back to the country or the round number.
func (r Round) Name() string {
	switch {
	case r.EventName != "":
		return r.EventName
	case r.CountryName != "":
		return r.CountryName
	default:
		return fmt.Sprintf("Round %d", r.Number)
	}
}
