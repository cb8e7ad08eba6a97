package openf1

import (
	"bytes"
	"encoding/json"
)

type meeting struct {
	MeetingKey  int    `json:"meeting_key"`
	MeetingName string `json:"meeting_name"`
	CountryName string `json:"country_name"`
	DateStart   string `json:"date_start"`
	Year        int    `json:"year"`
}

type session struct {
	SessionKey  int    `json:"session_key"`
	SessionName string `json:"session_name"`
	MeetingKey  int    `json:"meeting_key"`
}

type driver struct {
	DriverNumber json.Number `json:"driver_number"`
	NameAcronym  string      `json:"name_acronym"`
}

type sessionResult struct {
	DriverNumber json.Number     `json:"driver_number"`
	Position     *float64        `json:"position"`
	Duration     json.RawMessage `json:"duration"`
}

// bestLap reads a practice duration, which is a single number of seconds.
func (r sessionResult) bestLap() *float64 {
	var v *float64
	if err := json.Unmarshal(r.Duration, &v); err != nil {
		return nil
	}
	return v
}

// q3 reads the third knockout segment of a qualifying duration array.
func (r sessionResult) q3() *float64 {
	d := bytes.TrimSpace(r.Duration)
	if len(d) == 0 || d[0] != '[' {
		return nil
	}
	var segments []*float64
	if err := json.Unmarshal(d, &segments); err != nil || len(segments) < 3 {
		return nil
	}
	return segments[2]
}

type championshipDriver struct {
	DriverNumber    json.Number `json:"driver_number"`
	PositionStart   *float64    `json:"position_start"`
	PositionCurrent *float64    `json:"position_current"`
}
