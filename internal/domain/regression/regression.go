// Package regression provides the candidate regressors ranked by walk-forward
// selection: two gradient-boosted tree variants and ridge regression.
package regression

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Candidate model names in priority order.
const (
	ModelGBTExact = "gbt_exact"
	ModelGBTHist  = "gbt_hist"
	ModelRidge    = "ridge"
)

// Regressor is a numeric model over a dense feature matrix.
type Regressor interface {
	// Fit trains on rows of X against y.
	Fit(X mat.Matrix, y []float64) error
	// Predict returns one value per row of X.
	Predict(X mat.Matrix) ([]float64, error)
}

// Candidate describes a model that may take part in selection. New returns a
// fresh unfitted model on every call.
type Candidate struct {
	Name      string
	Available bool
	New       func() Regressor
}

// Catalogue returns the candidates in priority order. Names listed in
// disabled are marked unavailable.
func Catalogue(disabled ...string) []Candidate {
	off := make(map[string]bool, len(disabled))
	for _, d := range disabled {
		off[strings.ToLower(strings.TrimSpace(d))] = true
	}
	return []Candidate{
		{Name: ModelGBTExact, Available: !off[ModelGBTExact], New: func() Regressor { return NewGBT(ExactParams()) }},
		{Name: ModelGBTHist, Available: !off[ModelGBTHist], New: func() Regressor { return NewGBT(HistParams()) }},
		{Name: ModelRidge, Available: !off[ModelRidge], New: func() Regressor { return NewRidge(DefaultRidgeAlpha) }},
	}
}

// KnownModel reports whether name is a catalogue entry.
func KnownModel(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ModelGBTExact, ModelGBTHist, ModelRidge:
		return true
	}
	return false
}

func checkTraining(X mat.Matrix, y []float64) (int, int, error) {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return 0, 0, ErrEmptyTraining
	}
	if len(y) != n {
		return 0, 0, fmt.Errorf("%w: %d rows, %d targets", ErrDimensionMismatch, n, len(y))
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, fmt.Errorf("%w: target %d", ErrNonFinite, i)
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			if v := X.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, fmt.Errorf("%w: feature (%d,%d)", ErrNonFinite, i, j)
			}
		}
	}
	return n, p, nil
}
