// Package dedupe folds repeated submissions of the same prediction request
// into the run already in flight.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper maps request fingerprints to the run that owns them.
type Deduper interface {
	// Claim atomically records id as the owner of key if key is free.
	// Returns the owning run id and whether key was already claimed.
	Claim(ctx context.Context, key, id string) (string, bool)

	// Release frees key so the next submission starts a new run. Releasing
	// a key claimed by another id is a no-op.
	Release(ctx context.Context, key, id string)

	Size() int64
}

// inMemoryDeduper keeps claims in a map. In bounded mode (maxSize > 0) the
// oldest claim is evicted when the map is full; in unbounded mode claims are
// kept until released.
type inMemoryDeduper struct {
	mu      sync.Mutex
	owners  map[string]string
	order   []string // claim order, oldest first; bounded mode only
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: 1024}
	for _, opt := range opts {
		opt(d)
	}
	d.owners = make(map[string]string)
	return d
}

// Claim implements Deduper.
func (d *inMemoryDeduper) Claim(_ context.Context, key, id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if owner, ok := d.owners[key]; ok {
		return owner, true
	}
	if d.maxSize > 0 {
		for len(d.owners) >= d.maxSize && len(d.order) > 0 {
			d.evictOldest()
		}
		d.order = append(d.order, key)
	}
	d.owners[key] = id
	d.size.Add(1)
	return id, false
}

// Release implements Deduper.
func (d *inMemoryDeduper) Release(_ context.Context, key, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	owner, ok := d.owners[key]
	if !ok || owner != id {
		return
	}
	delete(d.owners, key)
	d.size.Add(-1)
	if d.maxSize > 0 {
		for i, k := range d.order {
			if k == key {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
	}
}

// evictOldest drops the oldest claim. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	key := d.order[0]
	d.order = d.order[1:]
	if _, ok := d.owners[key]; ok {
		delete(d.owners, key)
		d.size.Add(-1)
	}
}

// Size returns the number of live claims.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
