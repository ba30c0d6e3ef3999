package store

import (
	"context"
	"errors"

	"github.com/nulzo/reliability-forge/internal/store/model"
)

var ErrNotFound = errors.New("record not found")

// Repository is the main contract for the data layer.
type Repository interface {
	Runs() RunRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type RunRepository interface {
	// Log stores a finished pipeline run.
	Log(ctx context.Context, run *model.Run) error
	// GetByID returns a single run, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.Run, error)
	// GetRecent returns the last N runs, newest first.
	GetRecent(ctx context.Context, limit int) ([]model.Run, error)
	// GetDailyStats returns run counts grouped by day.
	GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error)
}
