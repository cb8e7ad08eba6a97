// Package worker runs queued prediction jobs and records their outcome.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/pitwall/internal/adapters/mq/queue"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Default worker configuration constants.
const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Runner executes a prediction job.
type Runner interface {
	Execute(ctx context.Context, job Job) (model.Run, error)
}

// Recorder stores the outcome of a job.
type Recorder interface {
	Save(ctx context.Context, run model.Run) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs until its context ends or it is shut down.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	runner   Runner
	recorder Recorder
	name     string
	onDone   func(Job)

	shutdown chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, runner Runner, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		runner:   runner,
		recorder: recorder,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "job failed", logger.String("run_id", j.RunID), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once the worker loop has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// process runs one job and stores either its run or a failed placeholder.
func (w *InMemoryWorker) process(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	if w.onDone != nil {
		defer w.onDone(j)
	}
	if !j.SubmittedAt.IsZero() {
		metrics.RecordJobWait(time.Since(j.SubmittedAt).Seconds())
	}

	run, runErr := w.runner.Execute(ctx, j)
	if runErr != nil {
		metrics.RecordJobProcessed(string(model.RunFailed))
		metrics.RecordErrorByComponent("worker", "run_error")
		run = failedRun(j, runErr)
	} else {
		metrics.RecordJobProcessed(string(model.RunDone))
	}
	if run.ID == "" {
		run.ID = j.RunID
	}

	if err := w.recorder.Save(ctx, run); err != nil {
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("store run %s: %w", j.RunID, err)
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", j.RunID, runErr)
	}
	w.logger.Debug(ctx, "job done", logger.String("run_id", j.RunID), logger.String("model", run.Model))
	return nil
}

func failedRun(j Job, err error) model.Run { //nolint:gocritic // hugeParam: mirrors process
	return model.Run{
		ID:          j.RunID,
		Status:      model.RunFailed,
		Error:       err.Error(),
		Mode:        j.Request.Mode,
		Source:      j.Request.Source,
		Year:        j.Request.Year,
		Round:       j.Request.Round,
		Rows:        []model.PredictionRow{},
		Notes:       []model.Note{},
		GeneratedAt: time.Now().UTC(),
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers; a count below one uses the
// number of CPUs.
func NewPool(workerCount int, q Queue, runner Runner, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, runner, recorder, wopts...)
	}
	if len(pool.workers) > 0 {
		pool.logger = pool.workers[0].logger
	}

	metrics.UpdateWorkersActive(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals all workers and waits briefly for each.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.stopOnce.Do(func() { close(w.shutdown) })
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
	metrics.UpdateWorkersActive(0)
}

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkersActive(0)
	return nil
}
