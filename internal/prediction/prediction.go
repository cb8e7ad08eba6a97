// Package prediction scores the round's drivers with the selected model, or
// with a feature-average heuristic when there is none, and ranks them.
package prediction

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/regression"
	"github.com/okian/pitwall/internal/selection"
)

// DefaultTopN is the number of rows in a prediction table.
const DefaultTopN = 10

// FeatureColumns returns the model columns for mode.
func FeatureColumns(mode model.Mode, includeStandings bool) []string {
	cols := append([]string(nil), model.PracticeColumns...)
	if mode == model.ModeQualifying {
		return cols
	}
	cols = append(cols, model.ColQualyPos)
	if includeStandings {
		cols = append(cols, model.ColPositionStart)
	}
	return cols
}

// FallbackColumns returns the columns averaged by the heuristic: the practice
// deltas for qualifying, the qualifying position for the race.
func FallbackColumns(mode model.Mode) []string {
	if mode == model.ModeQualifying {
		var out []string
		for _, c := range model.PracticeColumns {
			if strings.HasSuffix(c, "_delta") {
				out = append(out, c)
			}
		}
		return out
	}
	return []string{model.ColQualyPos}
}

// Predict scores records with m over cols, or with the row mean of the
// imputed fallback columns when m is nil.
func Predict(m regression.Regressor, records []model.DriverRecord, cols, fallback []string) ([]float64, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if m != nil {
		X, err := selection.PrepareMatrix(records, cols)
		if err != nil {
			return nil, err
		}
		preds, err := m.Predict(X)
		if err != nil {
			return nil, fmt.Errorf("model predict: %w", err)
		}
		return preds, nil
	}
	if len(fallback) == 0 {
		return make([]float64, len(records)), nil
	}
	X, err := selection.PrepareMatrix(records, fallback)
	if err != nil {
		return nil, err
	}
	n, p := X.Dims()
	out := make([]float64, n)
	for i := range out {
		var sum float64
		for j := 0; j < p; j++ {
			sum += X.At(i, j)
		}
		out[i] = sum / float64(p)
	}
	return out, nil
}

// Table sorts drivers by ascending prediction, breaking ties by driver id,
// and keeps the first topN with ranks 1..n.
func Table(records []model.DriverRecord, preds []float64, topN int) []model.PredictionRow {
	if topN <= 0 {
		topN = DefaultTopN
	}
	rows := make([]model.PredictionRow, 0, len(records))
	for i, r := range records {
		if i >= len(preds) {
			break
		}
		rows = append(rows, model.PredictionRow{DriverID: r.DriverID, DriverName: r.DisplayName(), Pred: preds[i]})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Pred != rows[j].Pred {
			return rows[i].Pred < rows[j].Pred
		}
		return rows[i].DriverID < rows[j].DriverID
	})
	if len(rows) > topN {
		rows = rows[:topN]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
