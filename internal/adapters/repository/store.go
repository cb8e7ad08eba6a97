// Package repository stores completed prediction runs.
package repository

import (
	"context"

	"github.com/okian/pitwall/internal/domain/model"
)

// Store provides read/write access to completed runs.
type Store interface {
	// Save stores a run under its id, replacing any run with the same id.
	Save(ctx context.Context, run model.Run) error

	// Get returns the run with the given id.
	// Returns ErrNotFound if the id is unknown.
	Get(ctx context.Context, id string) (model.Run, error)

	// Recent returns up to n runs, newest first.
	Recent(ctx context.Context, n int) ([]model.Run, error)

	// Count returns the number of runs held.
	Count(ctx context.Context) int
}
