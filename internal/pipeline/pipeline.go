// Package pipeline ingests every round of the requested seasons from one or
// more providers into a flat per-driver dataset, with a coverage report of
// which sessions each round had.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Joined fact columns added next to the practice features.
const (
	ColQualyPosition  = model.ColQualyPos
	ColQualyQ3Time    = "qualy_q3_time"
	ColRacePosition   = "race_position"
	ColStandingsStart = "standings_position_start"
)

// FactColumns lists the joined fact columns in export order.
var FactColumns = []string{ColQualyPosition, ColQualyQ3Time, ColRacePosition, ColStandingsStart}

// Round outcomes reported to metrics.
const (
	metricsMode   = "pipeline"
	outcomeRows   = "rows"
	outcomeEmpty  = "empty"
	outcomeFailed = "failed"
)

// Config selects what to ingest. MaxRounds <= 0 ingests every round.
type Config struct {
	Sources   []string
	Years     []int
	MaxRounds int
}

// Row is one driver at one round with every fact that could be joined.
type Row struct {
	Source    string
	EventName string
	Year      int
	Round     int
	EventKey  int
	Record    model.DriverRecord
}

// Coverage reports what one round contributed.
type Coverage struct {
	Source     string
	Year       int
	Round      int
	EventName  string
	Drivers    int
	Practice   bool
	Qualifying bool
	Race       bool
	Standings  bool
}

// Result is the ingested dataset, one coverage entry per visited round and the
// diagnostics collected on the way.
type Result struct {
	Rows     []Row
	Coverage []Coverage
	Notes    []model.Note
}

type runner struct {
	factory provider.Factory
	log     logger.Logger
	notes   []model.Note
}

// Run ingests cfg.Years from every source in cfg.Sources. A source that cannot
// be built, a season that cannot be listed and a session that cannot be
// fetched each add a note and are skipped. Only cancellation aborts.
func Run(ctx context.Context, factory provider.Factory, cfg Config, opts ...Option) (Result, error) {
	if len(cfg.Sources) == 0 {
		return Result{}, ErrNoSources
	}
	if len(cfg.Years) == 0 {
		return Result{}, ErrNoYears
	}
	r := &runner{factory: factory, log: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}

	var res Result
	for _, source := range cfg.Sources {
		name := strings.ToLower(strings.TrimSpace(source))
		p, err := r.factory(ctx, name)
		if err != nil {
			r.note(model.NoteUpstreamFailure, name, "provider unavailable: %v", err)
			r.log.Warn(ctx, "provider unavailable", logger.String("source", name), logger.Error(err))
			continue
		}
		for _, year := range cfg.Years {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			rounds, err := p.ListRounds(ctx, year)
			if err != nil {
				r.note(model.NoteUpstreamFailure, fmt.Sprintf("%s %d", name, year), "listing rounds failed: %v", err)
				r.log.Warn(ctx, "listing rounds failed", logger.String("source", name), logger.Int("year", year), logger.Error(err))
				continue
			}
			rounds = append([]model.Round(nil), rounds...)
			sort.SliceStable(rounds, func(i, j int) bool { return rounds[i].Number < rounds[j].Number })
			if cfg.MaxRounds > 0 && len(rounds) > cfg.MaxRounds {
				rounds = rounds[:cfg.MaxRounds]
			}
			for _, rnd := range rounds {
				rows, cov := r.collect(ctx, p, name, year, rnd)
				if err := ctx.Err(); err != nil {
					return Result{}, err
				}
				res.Coverage = append(res.Coverage, cov)
				res.Rows = append(res.Rows, rows...)
			}
		}
	}
	res.Notes = r.notes
	r.log.Info(ctx, "pipeline finished",
		logger.Int("rows", len(res.Rows)),
		logger.Int("rounds", len(res.Coverage)),
		logger.Int("notes", len(res.Notes)))
	return res, nil
}

func (r *runner) note(kind model.NoteKind, where, format string, args ...any) {
	r.notes = append(r.notes, model.NewNote(kind, where, format, args...))
}

// collect fetches every session of one round and outer-joins them by driver.
func (r *runner) collect(ctx context.Context, p provider.HistoricalDataProvider, source string, year int, rnd model.Round) ([]Row, Coverage) {
	noteCtx := fmt.Sprintf("%s %s", source, model.RoundContext(year, rnd.Number))
	failed := false
	fetchFailed := func(what string, err error) {
		failed = true
		r.note(model.NoteUpstreamFailure, noteCtx, "%s fetch failed: %v", what, err)
		r.log.Debug(ctx, "session fetch failed", logger.String("round", noteCtx), logger.String("session", what), logger.Error(err))
	}

	practice, err := p.PracticeFeatures(ctx, year, rnd.Number)
	if err != nil {
		fetchFailed("practice", err)
		practice = nil
	}
	qualy, err := p.QualifyingResults(ctx, year, rnd.Number)
	if err != nil {
		fetchFailed("qualifying", err)
		qualy = nil
	}
	race, err := p.RaceResults(ctx, year, rnd.Number)
	if err != nil {
		fetchFailed("race", err)
		race = nil
	}
	standings, err := p.StandingsBefore(ctx, year, rnd.Number)
	if err != nil {
		fetchFailed("standings", err)
		standings = nil
	}

	records := Merge(practice, qualy, race, standings)
	cov := Coverage{
		Source:     source,
		Year:       year,
		Round:      rnd.Number,
		EventName:  rnd.Name(),
		Drivers:    len(records),
		Practice:   len(practice) > 0,
		Qualifying: len(qualy) > 0,
		Race:       len(race) > 0,
		Standings:  len(standings) > 0,
	}
	switch {
	case failed:
		metrics.RecordRoundProcessed(metricsMode, outcomeFailed)
	case len(records) == 0:
		metrics.RecordRoundProcessed(metricsMode, outcomeEmpty)
	default:
		metrics.RecordRoundProcessed(metricsMode, outcomeRows)
	}

	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = Row{
			Source:    source,
			EventName: cov.EventName,
			Year:      year,
			Round:     rnd.Number,
			EventKey:  model.Round{Year: year, Number: rnd.Number}.EventKey(),
			Record:    rec,
		}
	}
	return rows, cov
}

// Merge outer-unions the driver ids of all four sessions and left-joins every
// fact onto them. A later session's driver name wins. Records are ordered by
// qualifying position, then race position (missing last), then driver id.
func Merge(practice []model.DriverRecord, qualy []model.QualifyingResult, race []model.RaceResult, standings []model.Standing) []model.DriverRecord {
	byID := make(map[string]*model.DriverRecord)
	var order []string
	touch := func(id, name string) *model.DriverRecord {
		rec, ok := byID[id]
		if !ok {
			r := model.NewDriverRecord(id, "")
			rec = &r
			byID[id] = rec
			order = append(order, id)
		}
		if name != "" {
			rec.DriverName = name
		}
		return rec
	}

	for _, p := range practice {
		rec := touch(p.DriverID, p.DriverName)
		for k, v := range p.Values {
			rec.Set(k, v)
		}
	}
	for _, q := range qualy {
		rec := touch(q.DriverID, q.DriverName)
		if q.Position != nil {
			rec.Set(ColQualyPosition, *q.Position)
		}
		if q.Q3Time != nil {
			rec.Set(ColQualyQ3Time, *q.Q3Time)
		}
	}
	for _, rr := range race {
		rec := touch(rr.DriverID, rr.DriverName)
		if rr.Position != nil {
			rec.Set(ColRacePosition, *rr.Position)
		}
	}
	for _, s := range standings {
		rec := touch(s.DriverID, s.DriverName)
		rec.Set(ColStandingsStart, s.PositionStart)
	}

	out := make([]model.DriverRecord, 0, len(order))
	for _, id := range order {
		rec := byID[id]
		if rec.DriverName == "" {
			rec.DriverName = rec.DriverID
		}
		out = append(out, *rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, col := range []string{ColQualyPosition, ColRacePosition} {
			if c := compareMissingLast(out[i], out[j], col); c != 0 {
				return c < 0
			}
		}
		return out[i].DriverID < out[j].DriverID
	})
	return out
}

func compareMissingLast(a, b model.DriverRecord, col string) int {
	av, aok := a.Get(col)
	bv, bok := b.Get(col)
	switch {
	case aok && bok:
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case aok:
		return -1
	case bok:
		return 1
	default:
		return 0
	}
}
