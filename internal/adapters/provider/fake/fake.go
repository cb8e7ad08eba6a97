// Package fake provides an in-memory HistoricalDataProvider for tests.
package fake

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/domain/model"
)

// Method names used to inject errors and count calls.
const (
	MethodListRounds = "ListRounds"
	MethodPractice   = "PracticeFeatures"
	MethodQualifying = "QualifyingResults"
	MethodRace       = "RaceResults"
	MethodStandings  = "StandingsBefore"
)

// RoundData is everything the fake knows about one round.
type RoundData struct {
	EventName  string
	Practice   []model.DriverRecord
	Qualifying []model.QualifyingResult
	Race       []model.RaceResult
	Standings  []model.Standing
}

type key struct{ year, round int }

type errKey struct {
	method      string
	year, round int
}

// Provider serves rounds added with AddRound. It is safe for concurrent use.
type Provider struct {
	name string

	mu     sync.Mutex
	rounds map[key]RoundData
	errs   map[errKey]error
	calls  map[errKey]int
}

var _ provider.HistoricalDataProvider = (*Provider)(nil)

// New creates an empty fake reporting the given source name.
func New(name string) *Provider {
	return &Provider{
		name:   name,
		rounds: make(map[key]RoundData),
		errs:   make(map[errKey]error),
		calls:  make(map[errKey]int),
	}
}

// AddRound registers data for a round.
func (p *Provider) AddRound(year, round int, d RoundData) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rounds[key{year, round}] = d
	return p
}

// FailWith makes method fail for the round. Use round 0 with ListRounds.
func (p *Provider) FailWith(method string, year, round int, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[errKey{method, year, round}] = err
	return p
}

// Calls returns how often method was called for the round.
func (p *Provider) Calls(method string, year, round int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[errKey{method, year, round}]
}

// Name returns the configured source name.
func (p *Provider) Name() string { return p.name }

// ListRounds returns registered rounds of year in order.
func (p *Provider) ListRounds(_ context.Context, year int) ([]model.Round, error) {
	if err := p.enter(MethodListRounds, year, 0); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.Round
	for k, d := range p.rounds {
		if k.year == year {
			out = append(out, model.Round{Source: p.name, Year: year, Number: k.round, EventName: d.EventName})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// PracticeFeatures returns the registered practice records.
func (p *Provider) PracticeFeatures(_ context.Context, year, round int) ([]model.DriverRecord, error) {
	if err := p.enter(MethodPractice, year, round); err != nil {
		return nil, err
	}
	d := p.round(year, round)
	out := make([]model.DriverRecord, len(d.Practice))
	for i, r := range d.Practice {
		out[i] = r.Clone()
	}
	return out, nil
}

// QualifyingResults returns the registered qualifying results.
func (p *Provider) QualifyingResults(_ context.Context, year, round int) ([]model.QualifyingResult, error) {
	if err := p.enter(MethodQualifying, year, round); err != nil {
		return nil, err
	}
	return p.round(year, round).Qualifying, nil
}

// RaceResults returns the registered race results.
func (p *Provider) RaceResults(_ context.Context, year, round int) ([]model.RaceResult, error) {
	if err := p.enter(MethodRace, year, round); err != nil {
		return nil, err
	}
	return p.round(year, round).Race, nil
}

// StandingsBefore returns the registered standings.
func (p *Provider) StandingsBefore(_ context.Context, year, round int) ([]model.Standing, error) {
	if err := p.enter(MethodStandings, year, round); err != nil {
		return nil, err
	}
	return p.round(year, round).Standings, nil
}

func (p *Provider) enter(method string, year, round int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := errKey{method, year, round}
	p.calls[k]++
	return p.errs[k]
}

func (p *Provider) round(year, round int) RoundData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rounds[key{year, round}]
}

// Record builds a practice record from column/value pairs.
func Record(id string, kv ...any) model.DriverRecord {
	r := model.NewDriverRecord(id, id)
	for i := 0; i+1 < len(kv); i += 2 {
		col, _ := kv[i].(string)
		switch v := kv[i+1].(type) {
		case float64:
			r.Set(col, v)
		case int:
			r.Set(col, float64(v))
		}
	}
	return r
}
