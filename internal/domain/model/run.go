package model

import (
	"fmt"
	"strings"
	"time"
)

// PredictionRow is one ranked driver. Lower predictions rank higher.
type PredictionRow struct {
	Rank       int     `json:"rank"`
	DriverID   string  `json:"driver_id"`
	DriverName string  `json:"driver_name"`
	Pred       float64 `json:"pred"`
}

// Score is a candidate model's mean walk-forward error.
type Score struct {
	Name string  `json:"name"`
	MAE  float64 `json:"mae"`
}

// RunStatus tracks a run through the async path.
type RunStatus string

// Run states. Synchronous runs are stored as done or failed directly.
const (
	RunPending RunStatus = "pending"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// RunRequest identifies the event to predict and how to train for it. Zero
// fields take the configured defaults.
type RunRequest struct {
	Year             int    `json:"year"`
	Round            int    `json:"round"`
	Mode             Mode   `json:"mode"`
	Source           string `json:"source,omitempty"`
	TrainSeasons     []int  `json:"train_seasons,omitempty"`
	IncludeStandings bool   `json:"include_standings,omitempty"`
	MeetingName      string `json:"meeting_name,omitempty"`
	CountryName      string `json:"country_name,omitempty"`
	TopN             int    `json:"top_n,omitempty"`
}

// Fingerprint identifies requests that would produce the same run.
func (r RunRequest) Fingerprint() string {
	seasons := make([]string, len(r.TrainSeasons))
	for i, y := range r.TrainSeasons {
		seasons[i] = fmt.Sprint(y)
	}
	return strings.Join([]string{
		fmt.Sprint(r.Year), fmt.Sprint(r.Round), string(r.Mode),
		strings.ToLower(r.Source), strings.Join(seasons, ","),
		fmt.Sprint(r.IncludeStandings),
		strings.ToLower(r.MeetingName), strings.ToLower(r.CountryName),
		fmt.Sprint(r.TopN),
	}, "|")
}

// Job is a queued async run.
type Job struct {
	RunID       string
	Request     RunRequest
	SubmittedAt time.Time
}

// Run is a prediction with everything needed to explain it.
type Run struct {
	ID           string          `json:"run_id"`
	Status       RunStatus       `json:"status"`
	Error        string          `json:"error,omitempty"`
	Version      string          `json:"version"`
	Mode         Mode            `json:"mode"`
	Source       string          `json:"source"`
	Year         int             `json:"year"`
	Round        int             `json:"round"`
	Model        string          `json:"model"`
	Score        *float64        `json:"score,omitempty"`
	Leaderboard  []Score         `json:"leaderboard,omitempty"`
	TrainingRows int             `json:"training_rows"`
	Rows         []PredictionRow `json:"rows"`
	Notes        []Note          `json:"notes"`
	GeneratedAt  time.Time       `json:"generated_at"`
	DurationMS   int64           `json:"duration_ms"`
}
