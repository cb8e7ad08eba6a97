// Package service runs end-to-end predictions: it builds a provider, assembles
// the leakage-safe training table and the current features, selects and fits
// a model, ranks the drivers and keeps the result in the run store. Runs can
// be executed synchronously or submitted to an async worker pool.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	eventqueue "github.com/okian/pitwall/internal/adapters/mq/queue"
	workerpool "github.com/okian/pitwall/internal/adapters/mq/worker"
	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/adapters/repository"
	"github.com/okian/pitwall/internal/config"
	"github.com/okian/pitwall/internal/dataset"
	"github.com/okian/pitwall/internal/domain/dedupe"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/regression"
	"github.com/okian/pitwall/internal/prediction"
	"github.com/okian/pitwall/internal/selection"
	"github.com/okian/pitwall/internal/timeutil"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Prediction outcomes reported to metrics.
const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

// Service owns the run pipeline and the async job machinery.
type Service struct {
	mu sync.RWMutex

	// Core components
	cfg     config.Config
	factory provider.Factory
	store   repository.Store
	deduper dedupe.Deduper
	clock   timeutil.Clock
	newID   func() string

	// Async components, created by Start
	queue *eventqueue.InMemoryQueue
	pool  *workerpool.Pool

	workerCount int
	queueSize   int

	// State
	started   bool
	runs      atomic.Int64
	failures  atomic.Int64
	lastModel atomic.Value

	logger logger.Logger
}

// New constructs a Service. Without options it uses the default config, the
// config-backed provider factory and an in-memory run store.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:     *config.New(),
		clock:   timeutil.RealClock{},
		newID:   uuid.NewString,
		deduper: dedupe.NewInMemoryDeduper(),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithCapacity(s.cfg.StoreCapacity))
	}
	if s.workerCount == 0 {
		s.workerCount = s.cfg.Workers
	}
	if s.queueSize == 0 {
		s.queueSize = s.cfg.QueueSize
	}
	s.lastModel.Store("")
	return s
}

// Start creates the queue and starts the async workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting prediction service...")

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s, s.store,
		workerpool.WithLogger(s.logger),
		workerpool.WithOnDone(func(j workerpool.Job) {
			s.deduper.Release(context.Background(), j.Request.Fingerprint(), j.RunID)
		}),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "prediction service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("source", s.cfg.Source),
	)
	return nil
}

// Stop drains the queue and stops the workers.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping prediction service...")

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}
	s.started = false
	s.logger.Info(ctx, "prediction service stopped")
}

// Version labels a run: V1 for the opening round, V<round> afterwards.
func Version(round int) string {
	if round <= 1 {
		return "V1"
	}
	return "V" + strconv.Itoa(round)
}

// Normalize validates req and fills its defaults from the service config.
func (s *Service) Normalize(req model.RunRequest) (model.RunRequest, error) {
	if req.Mode == "" {
		req.Mode = model.Mode(s.cfg.Mode)
	}
	mode, err := model.ParseMode(string(req.Mode))
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Mode = mode

	if req.Source == "" {
		req.Source = s.cfg.Source
	}
	src, err := provider.Canonical(req.Source)
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Source = src

	if req.Year <= 0 {
		return req, fmt.Errorf("%w: year must be set", ErrInvalidRequest)
	}
	if req.Round <= 0 {
		return req, fmt.Errorf("%w: round must be positive", ErrInvalidRequest)
	}

	if len(req.TrainSeasons) == 0 {
		seasons, err := config.ParseSeasons(s.cfg.TrainSeasons, req.Year)
		if err != nil {
			return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		req.TrainSeasons = seasons
	}
	for _, y := range req.TrainSeasons {
		if y <= 0 {
			return req, fmt.Errorf("%w: bad training season %d", ErrInvalidRequest, y)
		}
	}

	if req.TopN <= 0 {
		req.TopN = s.cfg.TopN
	}
	if req.MeetingName == "" {
		req.MeetingName = s.cfg.MeetingName
	}
	if req.CountryName == "" {
		req.CountryName = s.cfg.CountryName
	}
	req.IncludeStandings = req.IncludeStandings || s.cfg.IncludeStandings
	return req, nil
}

// Predict runs a prediction synchronously and stores the result.
func (s *Service) Predict(ctx context.Context, req model.RunRequest) (model.Run, error) {
	req, err := s.Normalize(req)
	if err != nil {
		return model.Run{}, err
	}
	run, err := s.execute(ctx, s.newID(), req)
	if err != nil {
		return model.Run{}, err
	}
	if err := s.store.Save(ctx, run); err != nil {
		s.logger.Warn(ctx, "could not store run", logger.String("run_id", run.ID), logger.Error(err))
	}
	return run, nil
}

// Submit queues a prediction and returns its pending run. A request identical
// to one still in flight returns that run and true instead of queueing again.
func (s *Service) Submit(ctx context.Context, req model.RunRequest) (model.Run, bool, error) {
	req, err := s.Normalize(req)
	if err != nil {
		return model.Run{}, false, err
	}

	s.mu.RLock()
	q, started := s.queue, s.started
	s.mu.RUnlock()
	if !started {
		return model.Run{}, false, ErrNotStarted
	}

	id := s.newID()
	key := req.Fingerprint()
	if owner, dup := s.deduper.Claim(ctx, key, id); dup {
		metrics.RecordDuplicateSubmission()
		if run, err := s.store.Get(ctx, owner); err == nil {
			return run, true, nil
		}
		return pendingRun(owner, req, s.clock.Now()), true, nil
	}

	now := s.clock.Now()
	pending := pendingRun(id, req, now)
	if err := s.store.Save(ctx, pending); err != nil {
		s.deduper.Release(ctx, key, id)
		return model.Run{}, false, fmt.Errorf("store pending run: %w", err)
	}
	if !q.Enqueue(ctx, model.Job{RunID: id, Request: req, SubmittedAt: now}) {
		s.deduper.Release(ctx, key, id)
		failed := pending
		failed.Status = model.RunFailed
		failed.Error = ErrQueueFull.Error()
		_ = s.store.Save(ctx, failed)
		return model.Run{}, false, ErrQueueFull
	}
	s.logger.Debug(ctx, "prediction queued", logger.String("run_id", id))
	return pending, false, nil
}

// Execute runs a queued job. It implements the worker Runner contract.
func (s *Service) Execute(ctx context.Context, job model.Job) (model.Run, error) { //nolint:gocritic // hugeParam: matches the worker contract
	return s.execute(ctx, job.RunID, job.Request)
}

// Run returns a stored run.
func (s *Service) Run(ctx context.Context, id string) (model.Run, error) {
	return s.store.Get(ctx, id)
}

// Recent returns up to n stored runs, newest first.
func (s *Service) Recent(ctx context.Context, n int) ([]model.Run, error) {
	return s.store.Recent(ctx, n)
}

// execute performs one run on a normalized request.
func (s *Service) execute(ctx context.Context, id string, req model.RunRequest) (model.Run, error) {
	start := s.clock.Now()
	run, err := s.pipeline(ctx, id, req)
	elapsed := s.clock.Since(start)
	metrics.RecordPredictionDuration(elapsed.Seconds())
	if err != nil {
		s.failures.Add(1)
		metrics.RecordPrediction(string(req.Mode), outcomeFailed)
		metrics.RecordErrorByComponent("service", errorType(err))
		s.logger.Error(ctx, "prediction failed",
			logger.String("run_id", id),
			logger.Int("year", req.Year),
			logger.Int("round", req.Round),
			logger.Error(err),
		)
		return model.Run{}, err
	}
	run.DurationMS = elapsed.Milliseconds()

	s.runs.Add(1)
	s.lastModel.Store(run.Model)
	metrics.RecordPrediction(string(req.Mode), outcomeOK)
	s.logger.Info(ctx, "prediction complete",
		logger.String("run_id", id),
		logger.String("version", run.Version),
		logger.String("model", run.Model),
		logger.Int("rows", len(run.Rows)),
		logger.Int("notes", len(run.Notes)),
	)
	return run, nil
}

func (s *Service) pipeline(ctx context.Context, id string, req model.RunRequest) (model.Run, error) {
	p, err := s.providerFor(ctx, req)
	if err != nil {
		return model.Run{}, err
	}

	builder := dataset.NewBuilder(dataset.WithLogger(s.logger.Named("dataset")))
	train, trainNotes, err := builder.BuildTrainingData(ctx, p, dataset.TrainingRequest{
		Seasons:          req.TrainSeasons,
		TargetYear:       req.Year,
		TargetRound:      req.Round,
		Mode:             req.Mode,
		IncludeStandings: req.IncludeStandings,
	})
	if err != nil {
		return model.Run{}, fmt.Errorf("training data: %w", err)
	}
	current, currentNotes, err := builder.BuildCurrentFeatures(ctx, p, dataset.CurrentRequest{
		Year:             req.Year,
		Round:            req.Round,
		Mode:             req.Mode,
		IncludeStandings: req.IncludeStandings,
	})
	if err != nil {
		return model.Run{}, fmt.Errorf("current features: %w", err)
	}

	cols := prediction.FeatureColumns(req.Mode, req.IncludeStandings)
	selector := selection.New(
		selection.WithCandidates(regression.Catalogue(s.cfg.DisabledModels...)),
		selection.WithLogger(s.logger.Named("selection")),
	)
	res := selector.Select(ctx, train, cols)

	fallback := prediction.FallbackColumns(req.Mode)
	preds, err := prediction.Predict(res.Model, current, cols, fallback)
	if err != nil && res.Model != nil {
		res.Notes = append(res.Notes, model.NewNote(model.NoteTrainingFailure, res.ModelName,
			"prediction failed: %v, using heuristic", err))
		res.ModelName, res.Score = selection.ModelHeuristic, nil
		preds, err = prediction.Predict(nil, current, cols, fallback)
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("predict: %w", err)
	}

	notes := make([]model.Note, 0, len(trainNotes)+len(currentNotes)+len(res.Notes))
	notes = append(notes, trainNotes...)
	notes = append(notes, currentNotes...)
	notes = append(notes, res.Notes...)

	rows := prediction.Table(current, preds, req.TopN)
	if rows == nil {
		rows = []model.PredictionRow{}
	}
	return model.Run{
		ID:           id,
		Status:       model.RunDone,
		Version:      Version(req.Round),
		Mode:         req.Mode,
		Source:       p.Name(),
		Year:         req.Year,
		Round:        req.Round,
		Model:        res.ModelName,
		Score:        res.Score,
		Leaderboard:  res.Leaderboard,
		TrainingRows: train.Len(),
		Rows:         rows,
		Notes:        notes,
		GeneratedAt:  s.clock.Now().UTC(),
	}, nil
}

// providerFor builds the provider for a request. Construction failures are
// terminal for the run.
func (s *Service) providerFor(ctx context.Context, req model.RunRequest) (provider.HistoricalDataProvider, error) {
	f := s.factory
	if f == nil {
		cfg := s.cfg
		f = NewFactory(&cfg,
			WithTarget(req.Year, req.Round, req.MeetingName, req.CountryName),
			WithFactoryLogger(s.logger),
		)
	}
	p, err := f(ctx, req.Source)
	if err != nil {
		if provider.IsTerminal(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderSetup, err)
	}
	return p, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"source":      s.cfg.Source,
		"runs":        s.runs.Load(),
		"failures":    s.failures.Load(),
		"lastModel":   s.lastModel.Load(),
		"storedRuns":  s.store.Count(ctx),
		"inFlight":    s.deduper.Size(),
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
	}
	return stats
}

func pendingRun(id string, req model.RunRequest, now time.Time) model.Run {
	return model.Run{
		ID:          id,
		Status:      model.RunPending,
		Version:     Version(req.Round),
		Mode:        req.Mode,
		Source:      req.Source,
		Year:        req.Year,
		Round:       req.Round,
		Rows:        []model.PredictionRow{},
		Notes:       []model.Note{},
		GeneratedAt: now.UTC(),
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrProviderSetup):
		return "provider_setup"
	case provider.IsTerminal(err):
		return "terminal"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
