package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/metrics"
)

// MemoryStore is an in-memory, bounded Store.
//
// Writers take the mutex and publish an immutable snapshot of the run order;
// Recent reads the snapshot without locking.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]model.Run
	order    []string // oldest first
	capacity int

	snap atomic.Pointer[snapshot]
}

// snapshot is the published newest-first view of the store.
type snapshot struct {
	runs []model.Run
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:     make(map[string]model.Run),
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(&snapshot{})
	return s
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, run model.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if run.ID == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[run.ID]; ok {
		s.removeLocked(run.ID)
	}
	s.byID[run.ID] = run
	s.order = append(s.order, run.ID)
	for len(s.order) > s.capacity {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
	s.publishLocked()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (model.Run, error) {
	if err := ctx.Err(); err != nil {
		return model.Run{}, err
	}
	s.mu.RLock()
	run, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return model.Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(ctx context.Context, n int) ([]model.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	runs := s.snap.Load().runs
	if n > len(runs) {
		n = len(runs)
	}
	out := make([]model.Run, n)
	copy(out, runs[:n])
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *MemoryStore) removeLocked(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *MemoryStore) publishLocked() {
	runs := make([]model.Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		runs = append(runs, s.byID[s.order[i]])
	}
	s.snap.Store(&snapshot{runs: runs})
	metrics.UpdateStoredRuns(len(runs))
}
