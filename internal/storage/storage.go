package storage

import (
	"context"
	"errors"
)

// ErrDisabled is returned when history is requested but no storage is configured.
var ErrDisabled = errors.New("history storage is disabled")

// Storage defines the persistence interface for load run data.
type Storage interface {
	CreateRun(ctx context.Context, run *LoadRun) error
	GetRun(ctx context.Context, id string) (*LoadRun, error)

	InsertSample(ctx context.Context, runID string, sample Sample) error
	ListSamples(ctx context.Context, runID string, limit, offset int) (*PaginatedSamples, error)

	Close() error
}
