package selection

import (
	"math"
	"sort"

	"github.com/okian/pitwall/internal/domain/model"
	"gonum.org/v1/gonum/mat"
)

// PrepareMatrix lays records out in cols order. A missing value takes the
// median of its column over these records; a column with no values at all
// is filled with 0.
func PrepareMatrix(records []model.DriverRecord, cols []string) (*mat.Dense, error) {
	if len(records) == 0 {
		return nil, ErrNoRows
	}
	if len(cols) == 0 {
		return nil, ErrNoColumns
	}
	X := mat.NewDense(len(records), len(cols), nil)
	present := make([]float64, 0, len(records))
	for j, c := range cols {
		present = present[:0]
		for _, r := range records {
			if v, ok := r.Get(c); ok && !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		fill := Median(present)
		for i, r := range records {
			v, ok := r.Get(c)
			if !ok || math.IsNaN(v) {
				v = fill
			}
			X.Set(i, j, v)
		}
	}
	return X, nil
}

// Median returns the middle value, averaging the two central values for an
// even count. It returns 0 for no values.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
