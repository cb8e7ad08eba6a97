package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/pitwall/internal/adapters/mq/queue"
	worker "github.com/okian/pitwall/internal/adapters/mq/worker"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	close(mq.jobs)
	return nil
}

type mockRunner struct {
	mu     sync.Mutex
	errors map[string]error
	calls  []string
}

func newMockRunner() *mockRunner {
	return &mockRunner{errors: make(map[string]error)}
}

func (r *mockRunner) Execute(_ context.Context, j queue.Job) (model.Run, error) { //nolint:gocritic // test double
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, j.RunID)
	if err, ok := r.errors[j.RunID]; ok {
		return model.Run{}, err
	}
	return model.Run{ID: j.RunID, Status: model.RunDone, Model: "ridge"}, nil
}

func (r *mockRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type mockRecorder struct {
	mu   sync.Mutex
	runs map[string]model.Run
	err  error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{runs: make(map[string]model.Run)}
}

func (r *mockRecorder) Save(_ context.Context, run model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.runs[run.ID] = run
	return nil
}

func (r *mockRecorder) get(id string) (model.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	return run, ok
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func newJob(id string) queue.Job {
	return queue.Job{
		RunID:       id,
		Request:     model.RunRequest{Year: 2024, Round: 4, Mode: model.ModeQualifying, Source: "openf1"},
		SubmittedAt: time.Now(),
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a mock queue", t, func() {
		q := newMockQueue()
		runner := newMockRunner()
		rec := newMockRecorder()

		var doneMu sync.Mutex
		var done []string
		w := worker.NewInMemoryWorker(q, runner, rec, worker.WithName("w1"), worker.WithOnDone(func(j queue.Job) {
			doneMu.Lock()
			done = append(done, j.RunID)
			doneMu.Unlock()
		}))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job succeeds", func() {
			q.jobs <- newJob("ok")

			convey.Convey("Then the run is recorded as done", func() {
				convey.So(waitFor(func() bool { _, ok := rec.get("ok"); return ok }), convey.ShouldBeTrue)
				run, _ := rec.get("ok")
				convey.So(run.Status, convey.ShouldEqual, model.RunDone)
				convey.So(run.Model, convey.ShouldEqual, "ridge")
			})
		})

		convey.Convey("When a job fails", func() {
			runner.errors["bad"] = errors.New("no meeting")
			q.jobs <- newJob("bad")

			convey.Convey("Then a failed run carries the error and the request", func() {
				convey.So(waitFor(func() bool { _, ok := rec.get("bad"); return ok }), convey.ShouldBeTrue)
				run, _ := rec.get("bad")
				convey.So(run.Status, convey.ShouldEqual, model.RunFailed)
				convey.So(run.Error, convey.ShouldEqual, "no meeting")
				convey.So(run.Year, convey.ShouldEqual, 2024)
				convey.So(run.Round, convey.ShouldEqual, 4)
				convey.So(run.Rows, convey.ShouldNotBeNil)
			})

			convey.Convey("And the done hook still fires", func() {
				convey.So(waitFor(func() bool {
					doneMu.Lock()
					defer doneMu.Unlock()
					return len(done) == 1 && done[0] == "bad"
				}), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then it stops cleanly and a second shutdown is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		runner := newMockRunner()
		rec := newMockRecorder()
		pool := worker.NewPool(3, q, runner, rec)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 3)

		convey.Convey("When jobs are enqueued and the pool shuts down", func() {
			for _, id := range []string{"a", "b", "c", "d"} {
				convey.So(q.Enqueue(ctx, newJob(id)), convey.ShouldBeTrue)
			}
			convey.So(waitFor(func() bool {
				for _, id := range []string{"a", "b", "c", "d"} {
					if _, ok := rec.get(id); !ok {
						return false
					}
				}
				return true
			}), convey.ShouldBeTrue)
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every job ran once and the queue is closed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(runner.count(), convey.ShouldEqual, 4)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the pool is stopped", func() {
			pool.Stop()

			convey.Convey("Then later jobs are not picked up", func() {
				convey.So(q.Enqueue(ctx, newJob("late")), convey.ShouldBeTrue)
				time.Sleep(50 * time.Millisecond)
				_, ok := rec.get("late")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})
	})
}

func TestWorkerRecorderFailure(t *testing.T) {
	convey.Convey("Given a recorder that cannot store", t, func() {
		q := newMockQueue()
		rec := newMockRecorder()
		rec.err = errors.New("disk full")
		called := make(chan struct{}, 1)
		w := worker.NewInMemoryWorker(q, newMockRunner(), rec, worker.WithOnDone(func(queue.Job) { called <- struct{}{} }))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		q.jobs <- newJob("x")

		convey.Convey("Then the worker keeps going and the hook fires", func() {
			select {
			case <-called:
			case <-time.After(2 * time.Second):
				t.Fatal("done hook not called")
			}
			_ = q.Close()
			select {
			case <-w.Done():
			case <-time.After(2 * time.Second):
				t.Fatal("worker did not stop after queue close")
			}
		})
	})
}
