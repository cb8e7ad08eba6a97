// Package local serves historical session data exported from a local
// telemetry cache laid out as <root>/<year>/<round>/<session>.json.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// pointsTable awards championship points for finishing positions 1-10.
var pointsTable = map[int]float64{1: 25, 2: 18, 3: 15, 4: 12, 5: 10, 6: 8, 7: 6, 8: 4, 9: 2, 10: 1}

var practiceSessions = []struct{ file, label string }{
	{sessionFP1, features.FP1},
	{sessionFP2, features.FP2},
	{sessionFP3, features.FP3},
}

type sessionKey struct {
	year, round int
	name        string
}

// Provider reads session exports from disk. Each session file is decoded at
// most once per Provider; missing files are remembered as absent.
type Provider struct {
	root string
	log  logger.Logger

	mu        sync.Mutex
	sessions  map[sessionKey]*sessionFile
	schedules map[int][]model.Round
}

var _ provider.HistoricalDataProvider = (*Provider)(nil)

// New creates a provider rooted at dir. The directory must exist.
func New(dir string, opts ...Option) (*Provider, error) {
	if dir == "" {
		return nil, ErrNoDataRoot
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrMisconfigured, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", provider.ErrMisconfigured, dir)
	}
	p := &Provider{
		root:      dir,
		log:       logger.Nop(),
		sessions:  make(map[sessionKey]*sessionFile),
		schedules: make(map[int][]model.Round),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the canonical source name.
func (p *Provider) Name() string { return provider.SourceLocal }

// ListRounds reads the season schedule. Rounds numbered below 1, such as
// pre-season testing, are dropped.
func (p *Provider) ListRounds(ctx context.Context, year int) ([]model.Round, error) {
	p.mu.Lock()
	cached, ok := p.schedules[year]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	var entries []scheduleEntry
	found, err := p.readJSON(ctx, "schedule", filepath.Join(p.root, strconv.Itoa(year), scheduleFile), &entries)
	if err != nil {
		return nil, err
	}
	rounds := make([]model.Round, 0, len(entries))
	if found {
		for _, e := range entries {
			if e.RoundNumber < 1 {
				continue
			}
			rounds = append(rounds, model.Round{
				Source:    provider.SourceLocal,
				Year:      year,
				Number:    e.RoundNumber,
				EventName: e.EventName,
			})
		}
		sort.SliceStable(rounds, func(i, j int) bool { return rounds[i].Number < rounds[j].Number })
	}

	p.mu.Lock()
	p.schedules[year] = rounds
	p.mu.Unlock()
	return rounds, nil
}

// PracticeFeatures merges the best laps of FP1-FP3.
func (p *Provider) PracticeFeatures(ctx context.Context, year, round int) ([]model.DriverRecord, error) {
	var sessions []features.Session
	for _, ps := range practiceSessions {
		s, err := p.session(ctx, year, round, ps.file)
		if err != nil {
			return nil, err
		}
		if s == nil {
			continue
		}
		laps := make([]features.Lap, 0, len(s.Laps))
		for _, l := range s.Laps {
			laps = append(laps, features.Lap{DriverID: l.Driver, DriverName: l.Driver, Seconds: l.LapTime})
		}
		bests := features.BestLaps(laps)
		if len(bests) == 0 {
			continue
		}
		sessions = append(sessions, features.AssembleSession(ps.label, bests))
	}
	return features.Merge(sessions), nil
}

// QualifyingResults returns qualifying positions and Q3 times.
func (p *Provider) QualifyingResults(ctx context.Context, year, round int) ([]model.QualifyingResult, error) {
	s, err := p.session(ctx, year, round, sessionQualifying)
	if err != nil || s == nil {
		return nil, err
	}
	out := make([]model.QualifyingResult, 0, len(s.Results))
	for _, r := range s.Results {
		id := r.driverID()
		if id == "" {
			continue
		}
		pos := r.Position
		if pos == nil {
			pos = r.GridPosition
		}
		out = append(out, model.QualifyingResult{DriverID: id, DriverName: id, Position: pos, Q3Time: r.Q3})
	}
	return out, nil
}

// RaceResults returns race positions, falling back to the classified position.
func (p *Provider) RaceResults(ctx context.Context, year, round int) ([]model.RaceResult, error) {
	s, err := p.session(ctx, year, round, sessionRace)
	if err != nil || s == nil {
		return nil, err
	}
	out := make([]model.RaceResult, 0, len(s.Results))
	for _, r := range s.Results {
		id := r.driverID()
		if id == "" {
			continue
		}
		pos := r.Position
		if pos == nil {
			pos = r.classified()
		}
		out = append(out, model.RaceResult{DriverID: id, DriverName: id, Position: pos})
	}
	return out, nil
}

// StandingsBefore derives championship positions from the points scored in
// rounds 1..round-1. Equal points share the best position.
func (p *Provider) StandingsBefore(ctx context.Context, year, round int) ([]model.Standing, error) {
	if round <= 1 {
		return nil, nil
	}
	points := make(map[string]float64)
	for rnd := 1; rnd < round; rnd++ {
		results, err := p.RaceResults(ctx, year, rnd)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if r.Position == nil {
				continue
			}
			if pts, ok := pointsTable[int(*r.Position)]; ok {
				points[r.DriverID] += pts
			}
		}
	}
	if len(points) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(points))
	for id := range points {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	negated := make([]float64, len(ids))
	for i, id := range ids {
		negated[i] = -points[id]
	}
	ranks := features.CompetitionRank(negated)

	out := make([]model.Standing, len(ids))
	for i, id := range ids {
		out[i] = model.Standing{DriverID: id, DriverName: id, PositionStart: ranks[i]}
	}
	return out, nil
}

func (p *Provider) session(ctx context.Context, year, round int, name string) (*sessionFile, error) {
	key := sessionKey{year: year, round: round, name: name}
	p.mu.Lock()
	s, ok := p.sessions[key]
	p.mu.Unlock()
	if ok {
		return s, nil
	}

	path := filepath.Join(p.root, strconv.Itoa(year), strconv.Itoa(round), name+".json")
	var decoded sessionFile
	found, err := p.readJSON(ctx, name, path, &decoded)
	if err != nil {
		return nil, err
	}
	if found {
		s = &decoded
	}
	p.mu.Lock()
	p.sessions[key] = s
	p.mu.Unlock()
	return s, nil
}

// readJSON decodes path into v. A missing file reports found=false.
func (p *Provider) readJSON(ctx context.Context, endpoint, path string, v any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	start := time.Now()
	data, err := os.ReadFile(path)
	metrics.RecordProviderLatency(provider.SourceLocal, endpoint, time.Since(start).Seconds())
	if errors.Is(err, fs.ErrNotExist) {
		metrics.RecordProviderRequest(provider.SourceLocal, endpoint, "missing")
		p.log.Debug(ctx, "session file missing", logger.String("path", path))
		return false, nil
	}
	if err != nil {
		metrics.RecordProviderRequest(provider.SourceLocal, endpoint, "error")
		return false, fmt.Errorf("%w: read %s: %v", provider.ErrUnavailable, path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		metrics.RecordProviderRequest(provider.SourceLocal, endpoint, "malformed")
		return false, fmt.Errorf("%w: decode %s: %v", provider.ErrMalformed, path, err)
	}
	metrics.RecordProviderRequest(provider.SourceLocal, endpoint, "ok")
	return true, nil
}
