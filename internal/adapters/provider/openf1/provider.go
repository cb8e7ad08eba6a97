// Package openf1 implements the historical data provider over the OpenF1
// REST API.
package openf1

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
)

// REST endpoints.
const (
	endpointMeetings     = "meetings"
	endpointSessions     = "sessions"
	endpointResults      = "session_result"
	endpointDrivers      = "drivers"
	endpointChampionship = "championship_drivers"
)

// Session names as published by the API.
const (
	sessionQualifying = "Qualifying"
	sessionRace       = "Race"
)

var practiceSessions = []struct{ name, label string }{
	{"Practice 1", features.FP1},
	{"Practice 2", features.FP2},
	{"Practice 3", features.FP3},
}

// Provider maps meetings, sessions and results onto rounds. Rounds are the
// year's meetings ordered by start date and numbered from 1.
type Provider struct {
	client *Client
	log    logger.Logger

	targetYear  int
	targetRound int
	meetingName string
	countryName string

	mu       sync.Mutex
	meetings map[int][]meeting
}

var _ provider.HistoricalDataProvider = (*Provider)(nil)

// New creates a provider over client.
func New(client *Client, opts ...Option) *Provider {
	p := &Provider{
		client:   client,
		log:      logger.Nop(),
		meetings: make(map[int][]meeting),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the canonical source name.
func (p *Provider) Name() string { return provider.SourceOpenF1 }

// ListRounds returns the year's meetings as rounds.
func (p *Provider) ListRounds(ctx context.Context, year int) ([]model.Round, error) {
	ms, err := p.yearMeetings(ctx, year)
	if err != nil {
		return nil, err
	}
	rounds := make([]model.Round, len(ms))
	for i, m := range ms {
		rounds[i] = toRound(year, i+1, m)
	}
	return rounds, nil
}

// PracticeFeatures builds FP1-FP3 features from session results.
func (p *Provider) PracticeFeatures(ctx context.Context, year, round int) ([]model.DriverRecord, error) {
	m, err := p.meetingForRound(ctx, year, round)
	if err != nil {
		return nil, err
	}
	var sessions []features.Session
	for _, ps := range practiceSessions {
		key, ok, err := p.sessionKey(ctx, m.MeetingKey, ps.name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		results, names, err := p.results(ctx, key)
		if err != nil {
			return nil, err
		}
		bests := make([]features.Best, 0, len(results))
		for _, r := range results {
			lap := r.bestLap()
			if lap == nil {
				continue
			}
			id := r.DriverNumber.String()
			bests = append(bests, features.Best{DriverID: id, DriverName: displayName(names, id), Seconds: *lap})
		}
		if len(bests) == 0 {
			continue
		}
		sessions = append(sessions, features.AssembleSession(ps.label, bests))
	}
	return features.Merge(sessions), nil
}

// QualifyingResults returns qualifying positions with Q3 times.
func (p *Provider) QualifyingResults(ctx context.Context, year, round int) ([]model.QualifyingResult, error) {
	results, names, err := p.roundSession(ctx, year, round, sessionQualifying)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	out := make([]model.QualifyingResult, 0, len(results))
	for _, r := range results {
		id := r.DriverNumber.String()
		out = append(out, model.QualifyingResult{
			DriverID:   id,
			DriverName: displayName(names, id),
			Position:   r.Position,
			Q3Time:     r.q3(),
		})
	}
	return out, nil
}

// RaceResults returns race finishing positions.
func (p *Provider) RaceResults(ctx context.Context, year, round int) ([]model.RaceResult, error) {
	results, names, err := p.roundSession(ctx, year, round, sessionRace)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	out := make([]model.RaceResult, 0, len(results))
	for _, r := range results {
		id := r.DriverNumber.String()
		out = append(out, model.RaceResult{DriverID: id, DriverName: displayName(names, id), Position: r.Position})
	}
	return out, nil
}

// StandingsBefore reads the championship table published after the previous
// round's race.
func (p *Provider) StandingsBefore(ctx context.Context, year, round int) ([]model.Standing, error) {
	if round <= 1 {
		return nil, nil
	}
	m, err := p.meetingByIndex(ctx, year, round-1)
	if err != nil {
		return nil, err
	}
	key, ok, err := p.sessionKey(ctx, m.MeetingKey, sessionRace)
	if err != nil || !ok {
		return nil, err
	}
	var rows []championshipDriver
	if err := p.client.GetJSON(ctx, endpointChampionship, map[string]string{"session_key": strconv.Itoa(key)}, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Standing, 0, len(rows))
	for _, r := range rows {
		pos := r.PositionCurrent
		if pos == nil {
			pos = r.PositionStart
		}
		if pos == nil {
			continue
		}
		id := r.DriverNumber.String()
		out = append(out, model.Standing{DriverID: id, DriverName: id, PositionStart: *pos})
	}
	return out, nil
}

func (p *Provider) roundSession(ctx context.Context, year, round int, name string) ([]sessionResult, map[string]string, error) {
	m, err := p.meetingForRound(ctx, year, round)
	if err != nil {
		return nil, nil, err
	}
	key, ok, err := p.sessionKey(ctx, m.MeetingKey, name)
	if err != nil || !ok {
		return nil, nil, err
	}
	return p.results(ctx, key)
}

// yearMeetings returns the year's meetings sorted by start date.
func (p *Provider) yearMeetings(ctx context.Context, year int) ([]meeting, error) {
	p.mu.Lock()
	cached, ok := p.meetings[year]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	var ms []meeting
	if err := p.client.GetJSON(ctx, endpointMeetings, map[string]string{"year": strconv.Itoa(year)}, &ms); err != nil {
		return nil, err
	}
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].DateStart < ms[j].DateStart })

	p.mu.Lock()
	p.meetings[year] = ms
	p.mu.Unlock()
	return ms, nil
}

// meetingForRound resolves a round to a meeting. For the target round of the
// target year a configured meeting name or country takes precedence over
// calendar order; every other round, including the same round number in
// training seasons, resolves by calendar index.
func (p *Provider) meetingForRound(ctx context.Context, year, round int) (meeting, error) {
	if p.isTarget(year, round) {
		switch {
		case p.meetingName != "":
			return p.meetingBy(ctx, year, "meeting_name", p.meetingName)
		case p.countryName != "":
			return p.meetingBy(ctx, year, "country_name", p.countryName)
		}
	}
	return p.meetingByIndex(ctx, year, round)
}

func (p *Provider) isTarget(year, round int) bool {
	return p.targetRound != 0 && year == p.targetYear && round == p.targetRound
}

func (p *Provider) meetingBy(ctx context.Context, year int, field, value string) (meeting, error) {
	var ms []meeting
	if err := p.client.GetJSON(ctx, endpointMeetings, map[string]string{"year": strconv.Itoa(year), field: value}, &ms); err != nil {
		return meeting{}, err
	}
	if len(ms) == 0 {
		return meeting{}, fmt.Errorf("%w: %s=%q in %d", provider.ErrNoMeeting, field, value, year)
	}
	return ms[0], nil
}

func (p *Provider) meetingByIndex(ctx context.Context, year, round int) (meeting, error) {
	ms, err := p.yearMeetings(ctx, year)
	if err != nil {
		return meeting{}, err
	}
	if round < 1 || round > len(ms) {
		return meeting{}, fmt.Errorf("%w: round %d of %d in %d", provider.ErrRoundOutOfRange, round, len(ms), year)
	}
	return ms[round-1], nil
}

func (p *Provider) sessionKey(ctx context.Context, meetingKey int, name string) (int, bool, error) {
	var ss []session
	params := map[string]string{"meeting_key": strconv.Itoa(meetingKey), "session_name": name}
	if err := p.client.GetJSON(ctx, endpointSessions, params, &ss); err != nil {
		return 0, false, err
	}
	if len(ss) == 0 || ss[0].SessionKey == 0 {
		p.log.Debug(ctx, "session not found", logger.Int("meeting_key", meetingKey), logger.String("session", name))
		return 0, false, nil
	}
	return ss[0].SessionKey, true, nil
}

// results fetches a session classification with its driver acronyms.
func (p *Provider) results(ctx context.Context, sessionKey int) ([]sessionResult, map[string]string, error) {
	params := map[string]string{"session_key": strconv.Itoa(sessionKey)}
	var rs []sessionResult
	if err := p.client.GetJSON(ctx, endpointResults, params, &rs); err != nil {
		return nil, nil, err
	}
	if len(rs) == 0 {
		return nil, nil, nil
	}
	var ds []driver
	if err := p.client.GetJSON(ctx, endpointDrivers, params, &ds); err != nil {
		return nil, nil, err
	}
	names := make(map[string]string, len(ds))
	for _, d := range ds {
		names[d.DriverNumber.String()] = d.NameAcronym
	}
	return rs, names, nil
}

func displayName(names map[string]string, id string) string {
	if n := names[id]; n != "" {
		return n
	}
	return id
}

func toRound(year, number int, m meeting) model.Round {
	return model.Round{
		Source:      provider.SourceOpenF1,
		Year:        year,
		Number:      number,
		EventName:   m.MeetingName,
		MeetingKey:  m.MeetingKey,
		CountryName: m.CountryName,
	}
}
