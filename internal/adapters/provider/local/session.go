package local

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Session file names under <root>/<year>/<round>/.
const (
	sessionFP1        = "FP1"
	sessionFP2        = "FP2"
	sessionFP3        = "FP3"
	sessionQualifying = "Q"
	sessionRace       = "R"
	scheduleFile      = "schedule.json"
)

// scheduleEntry is one row of <root>/<year>/schedule.json.
type scheduleEntry struct {
	RoundNumber int    `json:"round_number"`
	EventName   string `json:"event_name"`
}

// sessionFile is an exported session: timed laps plus the classification.
type sessionFile struct {
	Laps    []lapEntry    `json:"laps"`
	Results []resultEntry `json:"results"`
}

type lapEntry struct {
	Driver  string   `json:"driver"`
	LapTime *float64 `json:"lap_time"`
}

type resultEntry struct {
	Abbreviation       string   `json:"abbreviation"`
	DriverNumber       flexID   `json:"driver_number"`
	FullName           string   `json:"full_name"`
	Position           *float64 `json:"position"`
	GridPosition       *float64 `json:"grid_position"`
	ClassifiedPosition string   `json:"classified_position"`
	Q1                 *float64 `json:"q1"`
	Q2                 *float64 `json:"q2"`
	Q3                 *float64 `json:"q3"`
}

// driverID picks the first available identifier.
func (r resultEntry) driverID() string {
	switch {
	case r.Abbreviation != "":
		return r.Abbreviation
	case r.DriverNumber != "":
		return string(r.DriverNumber)
	default:
		return r.FullName
	}
}

// classified parses the classified position; retirements like "R" or "D"
// have no numeric position.
func (r resultEntry) classified() *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(r.ClassifiedPosition), 64)
	if err != nil {
		return nil
	}
	return &v
}

// flexID accepts both numeric and string JSON identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}
