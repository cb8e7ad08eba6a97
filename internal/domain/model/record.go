package model

import "sort"

// Feature and context columns carried by DriverRecord.Values.
const (
	ColFP1Delta      = "fp1_delta"
	ColFP2Delta      = "fp2_delta"
	ColFP3Delta      = "fp3_delta"
	ColFPMeanDelta   = "fp_mean_delta"
	ColFP1Rank       = "fp1_rank"
	ColFP2Rank       = "fp2_rank"
	ColFP3Rank       = "fp3_rank"
	ColFPMeanRank    = "fp_mean_rank"
	ColQualyPos      = "qualy_position"
	ColPositionStart = "position_start"
)

// PracticeColumns lists the practice feature columns in model order.
var PracticeColumns = []string{
	ColFP1Delta, ColFP2Delta, ColFP3Delta, ColFPMeanDelta,
	ColFP1Rank, ColFP2Rank, ColFP3Rank, ColFPMeanRank,
}

// DriverRecord is one driver's data for one round. A column missing from
// Values is unavailable for the round; it is never read as zero.
type DriverRecord struct {
	DriverID   string
	DriverName string
	Values     map[string]float64
}

// NewDriverRecord returns a record with an empty value map.
func NewDriverRecord(id, name string) DriverRecord {
	return DriverRecord{DriverID: id, DriverName: name, Values: make(map[string]float64)}
}

// Get returns a column value and whether it is present.
func (r DriverRecord) Get(col string) (float64, bool) {
	v, ok := r.Values[col]
	return v, ok
}

// Set stores a column value, allocating the map if needed.
func (r *DriverRecord) Set(col string, v float64) {
	if r.Values == nil {
		r.Values = make(map[string]float64)
	}
	r.Values[col] = v
}

// DisplayName returns the driver name, or the id when no name is known.
func (r DriverRecord) DisplayName() string {
	if r.DriverName != "" {
		return r.DriverName
	}
	return r.DriverID
}

// Clone returns a deep copy so joins never alias the source record.
func (r DriverRecord) Clone() DriverRecord {
	out := DriverRecord{DriverID: r.DriverID, DriverName: r.DriverName, Values: make(map[string]float64, len(r.Values))}
	for k, v := range r.Values {
		out.Values[k] = v
	}
	return out
}

// Columns returns the sorted names of the present columns.
func (r DriverRecord) Columns() []string {
	cols := make([]string, 0, len(r.Values))
	for k := range r.Values {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// TrainingRow is a labelled record tied to the round it came from.
type TrainingRow struct {
	DriverRecord
	Target   float64
	Year     int
	Round    int
	EventKey int
}

// QualifyingResult is one classified qualifying entry.
type QualifyingResult struct {
	DriverID   string
	DriverName string
	Position   *float64
	Q3Time     *float64
}

// RaceResult is one race classification entry.
type RaceResult struct {
	DriverID   string
	DriverName string
	Position   *float64
}

// Standing is a driver's championship position before a round.
type Standing struct {
	DriverID      string
	DriverName    string
	PositionStart float64
}

// Float returns a pointer to v; handy for optional result fields.
func Float(v float64) *float64 { return &v }
