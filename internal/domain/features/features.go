// Package features turns per-session best laps into per-driver feature records.
package features

import (
	"math"
	"sort"
	"strings"

	"github.com/okian/pitwall/internal/domain/model"
)

// Practice session labels in merge order.
const (
	FP1 = "fp1"
	FP2 = "fp2"
	FP3 = "fp3"
)

// Lap is a single timed lap. A nil time is a lap without a valid time.
type Lap struct {
	DriverID   string
	DriverName string
	Seconds    *float64
}

// Best is a driver's best lap of one session.
type Best struct {
	DriverID   string
	DriverName string
	Seconds    float64
}

// SessionRow holds a driver's gap and rank within one session.
type SessionRow struct {
	DriverID   string
	DriverName string
	Delta      float64
	Rank       float64
}

// Session is the assembled table of one practice session.
type Session struct {
	Label string
	Rows  []SessionRow
}

// CompetitionRank ranks values ascending starting at 1. Tied values share
// the lowest rank of their group and the next distinct value skips ahead.
func CompetitionRank(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, len(values))
	for pos, i := range idx {
		if pos > 0 && values[idx[pos-1]] == values[i] {
			ranks[i] = ranks[idx[pos-1]]
			continue
		}
		ranks[i] = float64(pos + 1)
	}
	return ranks
}

// BestLaps reduces laps to the minimum valid time per driver. Drivers with
// no valid lap are dropped. Output is sorted by driver id.
func BestLaps(laps []Lap) []Best {
	byDriver := make(map[string]*Best)
	for _, l := range laps {
		if l.DriverID == "" || l.Seconds == nil || math.IsNaN(*l.Seconds) {
			continue
		}
		b, ok := byDriver[l.DriverID]
		if !ok {
			byDriver[l.DriverID] = &Best{DriverID: l.DriverID, DriverName: l.DriverName, Seconds: *l.Seconds}
			continue
		}
		if *l.Seconds < b.Seconds {
			b.Seconds = *l.Seconds
		}
		if b.DriverName == "" {
			b.DriverName = l.DriverName
		}
	}
	out := make([]Best, 0, len(byDriver))
	for _, b := range byDriver {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out
}

// AssembleSession computes the gap to the session's fastest driver and the
// competition rank for each best lap.
func AssembleSession(label string, bests []Best) Session {
	s := Session{Label: strings.ToLower(label)}
	if len(bests) == 0 {
		return s
	}
	times := make([]float64, len(bests))
	for i, b := range bests {
		times[i] = b.Seconds
	}
	fastest := times[0]
	for _, t := range times[1:] {
		fastest = math.Min(fastest, t)
	}
	ranks := CompetitionRank(times)

	s.Rows = make([]SessionRow, len(bests))
	for i, b := range bests {
		s.Rows[i] = SessionRow{
			DriverID:   b.DriverID,
			DriverName: b.DriverName,
			Delta:      b.Seconds - fastest,
			Rank:       ranks[i],
		}
	}
	return s
}

// Merge outer-joins session tables by driver id. Each session contributes
// <label>_delta and <label>_rank; fp_mean_delta and fp_mean_rank average the
// sessions the driver actually took part in. Output is sorted by driver id.
func Merge(sessions []Session) []model.DriverRecord {
	type acc struct {
		rec               model.DriverRecord
		deltaSum, rankSum float64
		n                 float64
	}
	byDriver := make(map[string]*acc)
	for _, s := range sessions {
		for _, row := range s.Rows {
			a, ok := byDriver[row.DriverID]
			if !ok {
				a = &acc{rec: model.NewDriverRecord(row.DriverID, row.DriverName)}
				byDriver[row.DriverID] = a
			}
			if a.rec.DriverName == "" {
				a.rec.DriverName = row.DriverName
			}
			a.rec.Set(s.Label+"_delta", row.Delta)
			a.rec.Set(s.Label+"_rank", row.Rank)
			a.deltaSum += row.Delta
			a.rankSum += row.Rank
			a.n++
		}
	}

	out := make([]model.DriverRecord, 0, len(byDriver))
	for _, a := range byDriver {
		if a.n > 0 {
			a.rec.Set(model.ColFPMeanDelta, a.deltaSum/a.n)
			a.rec.Set(model.ColFPMeanRank, a.rankSum/a.n)
		}
		out = append(out, a.rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out
}

// Index maps records by driver id.
func Index(records []model.DriverRecord) map[string]model.DriverRecord {
	out := make(map[string]model.DriverRecord, len(records))
	for _, r := range records {
		out[r.DriverID] = r
	}
	return out
}
