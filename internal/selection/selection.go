// Package selection ranks candidate regressors by walk-forward error, refits
// the winner on the full training table and reports what it decided.
package selection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/pitwall/internal/dataset"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/regression"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
	"gonum.org/v1/gonum/floats"
)

// ModelHeuristic names the result when no model could be fitted.
const ModelHeuristic = "heuristic"

// TrainingResult is the outcome of selection. Model is nil when prediction
// must use the heuristic.
type TrainingResult struct {
	Model       regression.Regressor
	ModelName   string
	Score       *float64
	Leaderboard []model.Score
	Notes       []model.Note
}

// Selector evaluates candidates in priority order.
type Selector struct {
	candidates []regression.Candidate
	log        logger.Logger
}

// New creates a selector over the default catalogue.
func New(opts ...Option) *Selector {
	s := &Selector{candidates: regression.Catalogue(), log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select scores every available candidate on walk-forward folds and fits the
// best one on all rows. Candidates that fail on any fold are disqualified.
func (s *Selector) Select(ctx context.Context, train dataset.TrainingSet, cols []string) TrainingResult {
	res := TrainingResult{ModelName: ModelHeuristic}
	if train.Len() == 0 {
		return res
	}
	var avail []regression.Candidate
	for _, c := range s.candidates {
		if c.Available {
			avail = append(avail, c)
		}
	}
	if len(avail) == 0 {
		res.Notes = append(res.Notes, model.NewNote(model.NoteModelFallback, "", "no candidate model available"))
		return res
	}

	var chosen *regression.Candidate
	folds := Folds(train.EventKeys())
	if len(folds) == 0 {
		res.Notes = append(res.Notes, model.NewNote(model.NoteModelFallback, "",
			"too few events for walk-forward validation, selecting by priority"))
	} else {
		for _, c := range avail {
			mae, ok := s.evaluate(ctx, c, train, cols, folds)
			if !ok {
				continue
			}
			metrics.UpdateCandidateMAE(c.Name, mae)
			res.Leaderboard = append(res.Leaderboard, model.Score{Name: c.Name, MAE: mae})
		}
		sort.SliceStable(res.Leaderboard, func(i, j int) bool { return res.Leaderboard[i].MAE < res.Leaderboard[j].MAE })
		if len(res.Leaderboard) > 0 {
			best := res.Leaderboard[0]
			res.Notes = append(res.Notes,
				model.NewNote(model.NoteModelSelection, "", "walk-forward MAE: %s", leaderboard(res.Leaderboard)),
				model.NewNote(model.NoteModelSelection, "", "selected %s (MAE=%.3f)", best.Name, best.MAE))
			score := best.MAE
			res.Score = &score
			for i := range avail {
				if avail[i].Name == best.Name {
					chosen = &avail[i]
				}
			}
		} else {
			res.Notes = append(res.Notes, model.NewNote(model.NoteModelFallback, "",
				"every candidate failed walk-forward validation, selecting by priority"))
		}
	}
	if chosen == nil {
		chosen = &avail[0]
		res.Notes = append(res.Notes, model.NewNote(model.NoteModelFallback, "", "default model %s", chosen.Name))
	}

	X, err := PrepareMatrix(train.Records(), cols)
	if err != nil {
		res.Notes = append(res.Notes, model.NewNote(model.NoteTrainingFailure, chosen.Name, "empty training features: %v", err))
		return res
	}
	m := chosen.New()
	start := time.Now()
	if err := m.Fit(X, train.Targets()); err != nil {
		metrics.RecordCandidateFailure(chosen.Name, "final")
		s.log.Warn(ctx, "final fit failed", logger.String("model", chosen.Name), logger.Error(err))
		res.Notes = append(res.Notes, model.NewNote(model.NoteTrainingFailure, chosen.Name, "training failed: %v, using heuristic", err))
		res.Score = nil
		return res
	}
	metrics.RecordFitDuration(chosen.Name, time.Since(start).Seconds())
	metrics.RecordModelSelected(chosen.Name)
	s.log.Info(ctx, "model selected", logger.String("model", chosen.Name), logger.Int("rows", train.Len()))
	res.Model = m
	res.ModelName = chosen.Name
	return res
}

// evaluate returns the mean fold MAE of c, or false when c is disqualified
// or no fold could be scored.
func (s *Selector) evaluate(ctx context.Context, c regression.Candidate, train dataset.TrainingSet, cols []string, folds []Fold) (float64, bool) {
	var scores []float64
	for _, f := range folds {
		inTrain := make(map[int]bool, len(f.Train))
		for _, k := range f.Train {
			inTrain[k] = true
		}
		var fit, val dataset.TrainingSet
		for _, r := range train.Rows {
			switch {
			case inTrain[r.EventKey]:
				fit.Rows = append(fit.Rows, r)
			case r.EventKey == f.Validate:
				val.Rows = append(val.Rows, r)
			}
		}
		if fit.Len() == 0 || val.Len() == 0 {
			continue
		}
		mae, err := foldMAE(c.New(), fit, val, cols)
		if err != nil {
			metrics.RecordCandidateFailure(c.Name, "fold")
			s.log.Debug(ctx, "candidate disqualified",
				logger.String("model", c.Name), logger.Int("fold", f.Validate), logger.Error(err))
			return 0, false
		}
		scores = append(scores, mae)
	}
	if len(scores) == 0 {
		return 0, false
	}
	return floats.Sum(scores) / float64(len(scores)), true
}

func foldMAE(m regression.Regressor, fit, val dataset.TrainingSet, cols []string) (float64, error) {
	Xf, err := PrepareMatrix(fit.Records(), cols)
	if err != nil {
		return 0, err
	}
	Xv, err := PrepareMatrix(val.Records(), cols)
	if err != nil {
		return 0, err
	}
	if err := m.Fit(Xf, fit.Targets()); err != nil {
		return 0, err
	}
	preds, err := m.Predict(Xv)
	if err != nil {
		return 0, err
	}
	return MAE(val.Targets(), preds), nil
}

// MAE is the mean absolute error between truth and preds.
func MAE(truth, preds []float64) float64 {
	if len(truth) == 0 {
		return 0
	}
	return floats.Distance(truth, preds, 1) / float64(len(truth))
}

func leaderboard(scores []model.Score) string {
	parts := make([]string, len(scores))
	for i, sc := range scores {
		parts[i] = fmt.Sprintf("%s=%.3f", sc.Name, sc.MAE)
	}
	return strings.Join(parts, ", ")
}
