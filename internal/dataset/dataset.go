// Package dataset assembles leakage-safe training tables and the feature rows
// of the round being predicted.
package dataset

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Round outcomes reported to metrics.
const (
	outcomeUsed     = "used"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
	outcomeFiltered = "filtered"
)

// InsufficientHistory is the note emitted when no training row survives.
const InsufficientHistory = "insufficient historical data"

// TrainingRequest selects the seasons and the round that bounds them.
type TrainingRequest struct {
	Seasons          []int
	TargetYear       int
	TargetRound      int
	Mode             model.Mode
	IncludeStandings bool
}

// CurrentRequest identifies the round to predict.
type CurrentRequest struct {
	Year             int
	Round            int
	Mode             model.Mode
	IncludeStandings bool
}

// TrainingSet is the labelled table in the order rounds were visited.
type TrainingSet struct {
	Rows []model.TrainingRow
}

// Len returns the number of rows.
func (t TrainingSet) Len() int { return len(t.Rows) }

// Records returns the feature records of every row.
func (t TrainingSet) Records() []model.DriverRecord {
	out := make([]model.DriverRecord, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.DriverRecord
	}
	return out
}

// Targets returns the target of every row.
func (t TrainingSet) Targets() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Target
	}
	return out
}

// EventKeys returns the event key of every row.
func (t TrainingSet) EventKeys() []int {
	out := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.EventKey
	}
	return out
}

// Builder pulls rounds from a provider and joins them into rows.
type Builder struct {
	log logger.Logger
}

// NewBuilder creates a dataset builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{log: logger.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildTrainingData collects rows from every round strictly before the target
// round. Upstream failures become notes and skip the round; terminal provider
// errors abort and are returned.
func (b *Builder) BuildTrainingData(ctx context.Context, p provider.HistoricalDataProvider, req TrainingRequest) (TrainingSet, []model.Note, error) {
	var (
		set   TrainingSet
		notes []model.Note
	)
	for _, year := range req.Seasons {
		if err := ctx.Err(); err != nil {
			return TrainingSet{}, notes, err
		}
		rounds, err := p.ListRounds(ctx, year)
		if err != nil {
			if provider.IsTerminal(err) {
				return TrainingSet{}, notes, err
			}
			notes = append(notes, model.NewNote(model.NoteUpstreamFailure, strconv.Itoa(year), "listing rounds failed: %v", err))
			b.log.Warn(ctx, "listing rounds failed", logger.Int("year", year), logger.Error(err))
			continue
		}
		for _, rnd := range rounds {
			if year == req.TargetYear && rnd.Number >= req.TargetRound {
				metrics.RecordRoundProcessed(string(req.Mode), outcomeFiltered)
				continue
			}
			rows, roundNotes, err := b.trainingRound(ctx, p, req, year, rnd.Number)
			if err != nil {
				return TrainingSet{}, notes, err
			}
			notes = append(notes, roundNotes...)
			switch {
			case len(rows) > 0:
				metrics.RecordRoundProcessed(string(req.Mode), outcomeUsed)
				set.Rows = append(set.Rows, rows...)
			case len(roundNotes) > 0:
				metrics.RecordRoundProcessed(string(req.Mode), outcomeFailed)
			default:
				b.log.Debug(ctx, "round skipped", logger.Int("year", year), logger.Int("round", rnd.Number))
				metrics.RecordRoundProcessed(string(req.Mode), outcomeSkipped)
			}
		}
	}

	metrics.UpdateTrainingRows(string(req.Mode), set.Len())
	if set.Len() == 0 {
		notes = append(notes, model.NewNote(model.NoteHeuristicFallback, "", InsufficientHistory))
	}
	return set, notes, nil
}

// trainingRound returns the joined rows of one round and the notes it raised.
// Notes without rows mean an upstream failure that skips the round; a failed
// standings fetch keeps the rows without position_start.
func (b *Builder) trainingRound(ctx context.Context, p provider.HistoricalDataProvider, req TrainingRequest, year, round int) ([]model.TrainingRow, []model.Note, error) {
	roundCtx := model.RoundContext(year, round)
	var notes []model.Note
	upstream := func(what string, err error) {
		notes = append(notes, model.NewNote(model.NoteUpstreamFailure, roundCtx, "%s failed: %v", what, err))
		b.log.Warn(ctx, "round fetch failed", logger.String("round", roundCtx), logger.String("what", what), logger.Error(err))
	}
	fail := func(what string, err error) ([]model.TrainingRow, []model.Note, error) {
		if provider.IsTerminal(err) {
			return nil, nil, err
		}
		upstream(what, err)
		return nil, notes, nil
	}

	practice, err := p.PracticeFeatures(ctx, year, round)
	if err != nil {
		return fail("practice", err)
	}
	if len(practice) == 0 {
		return nil, nil, nil
	}

	var labelled []model.DriverRecord
	var targets []float64
	switch req.Mode {
	case model.ModeQualifying:
		q, err := p.QualifyingResults(ctx, year, round)
		if err != nil {
			return fail("qualifying", err)
		}
		labelled, targets = joinQualifying(practice, q)
	default:
		race, err := p.RaceResults(ctx, year, round)
		if err != nil {
			return fail("race", err)
		}
		q, err := p.QualifyingResults(ctx, year, round)
		if err != nil {
			return fail("qualifying", err)
		}
		labelled, targets = joinRace(practice, q, race)
		if req.IncludeStandings && len(labelled) > 0 {
			standings, err := p.StandingsBefore(ctx, year, round)
			if err != nil {
				if provider.IsTerminal(err) {
					return nil, nil, err
				}
				upstream("standings", err)
			}
			attachStandings(labelled, standings)
		}
	}

	rows := make([]model.TrainingRow, len(labelled))
	for i, rec := range labelled {
		rows[i] = model.TrainingRow{
			DriverRecord: rec,
			Target:       targets[i],
			Year:         year,
			Round:        round,
			EventKey:     model.EventKey(year, round),
		}
	}
	return rows, notes, nil
}

// BuildCurrentFeatures returns the feature rows of the round to predict. No
// target is attached and no temporal filter applies.
func (b *Builder) BuildCurrentFeatures(ctx context.Context, p provider.HistoricalDataProvider, req CurrentRequest) ([]model.DriverRecord, []model.Note, error) {
	var notes []model.Note
	roundCtx := model.RoundContext(req.Year, req.Round)
	upstream := func(what string, err error) ([]model.DriverRecord, []model.Note, error) {
		if provider.IsTerminal(err) {
			return nil, notes, err
		}
		notes = append(notes, model.NewNote(model.NoteUpstreamFailure, roundCtx, "%s failed: %v", what, err))
		return nil, notes, nil
	}

	practice, err := p.PracticeFeatures(ctx, req.Year, req.Round)
	if err != nil {
		return upstream("practice", err)
	}
	if len(practice) == 0 {
		notes = append(notes, model.NewNote(model.NoteMissingData, roundCtx, "no practice data available"))
		return nil, notes, nil
	}
	if req.Mode == model.ModeQualifying {
		return practice, notes, nil
	}

	q, err := p.QualifyingResults(ctx, req.Year, req.Round)
	if err != nil {
		return upstream("qualifying", err)
	}
	if len(q) == 0 {
		notes = append(notes, model.NewNote(model.NoteMissingData, roundCtx, "qualifying results unavailable, cannot predict the race"))
		return nil, notes, nil
	}
	qualy := make(map[string]model.QualifyingResult, len(q))
	for _, r := range q {
		qualy[r.DriverID] = r
	}
	out := make([]model.DriverRecord, 0, len(practice))
	for _, rec := range practice {
		r, ok := qualy[rec.DriverID]
		if !ok {
			continue
		}
		rec = rec.Clone()
		if r.Position != nil {
			rec.Set(model.ColQualyPos, *r.Position)
		}
		out = append(out, rec)
	}

	if req.IncludeStandings {
		standings, err := p.StandingsBefore(ctx, req.Year, req.Round)
		if err != nil {
			if provider.IsTerminal(err) {
				return nil, notes, err
			}
			notes = append(notes, model.NewNote(model.NoteUpstreamFailure, roundCtx, "standings failed: %v", err))
		}
		attachStandings(out, standings)
	}
	return out, notes, nil
}

// joinQualifying pairs practice records with drivers holding a Q3 time. The
// target is the gap to the fastest Q3 time of the round.
func joinQualifying(practice []model.DriverRecord, q []model.QualifyingResult) ([]model.DriverRecord, []float64) {
	q3 := make(map[string]float64, len(q))
	pole := math.Inf(1)
	for _, r := range q {
		if r.Q3Time == nil || math.IsNaN(*r.Q3Time) {
			continue
		}
		q3[r.DriverID] = *r.Q3Time
		pole = math.Min(pole, *r.Q3Time)
	}
	if len(q3) == 0 {
		return nil, nil
	}
	var recs []model.DriverRecord
	var targets []float64
	for _, rec := range practice {
		t, ok := q3[rec.DriverID]
		if !ok {
			continue
		}
		recs = append(recs, rec.Clone())
		targets = append(targets, t-pole)
	}
	return recs, targets
}

// joinRace keeps drivers with practice data, a qualifying position and a
// race position; the race position is the target.
func joinRace(practice []model.DriverRecord, q []model.QualifyingResult, race []model.RaceResult) ([]model.DriverRecord, []float64) {
	if len(q) == 0 || len(race) == 0 {
		return nil, nil
	}
	qualy := make(map[string]float64, len(q))
	for _, r := range q {
		if r.Position != nil {
			qualy[r.DriverID] = *r.Position
		}
	}
	finish := make(map[string]float64, len(race))
	for _, r := range race {
		if r.Position != nil {
			finish[r.DriverID] = *r.Position
		}
	}
	var recs []model.DriverRecord
	var targets []float64
	for _, rec := range practice {
		qp, okQ := qualy[rec.DriverID]
		fp, okR := finish[rec.DriverID]
		if !okQ || !okR {
			continue
		}
		rec = rec.Clone()
		rec.Set(model.ColQualyPos, qp)
		recs = append(recs, rec)
		targets = append(targets, fp)
	}
	return recs, targets
}

// attachStandings left-joins the championship position onto recs in place.
func attachStandings(recs []model.DriverRecord, standings []model.Standing) {
	if len(standings) == 0 {
		return
	}
	pos := make(map[string]float64, len(standings))
	for _, s := range standings {
		pos[s.DriverID] = s.PositionStart
	}
	for i := range recs {
		if v, ok := pos[recs[i].DriverID]; ok {
			recs[i].Set(model.ColPositionStart, v)
		}
	}
}

// DefaultSeasons returns the two seasons before year and year itself.
func DefaultSeasons(year int) []int {
	return []int{year - 2, year - 1, year}
}

// DistinctEventKeys returns the sorted distinct event keys of rows.
func DistinctEventKeys(rows []model.TrainingRow) []int {
	seen := make(map[int]bool)
	var out []int
	for _, r := range rows {
		if !seen[r.EventKey] {
			seen[r.EventKey] = true
			out = append(out, r.EventKey)
		}
	}
	sort.Ints(out)
	return out
}
