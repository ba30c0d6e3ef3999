package analytics

import (
	"context"

	"github.com/nulzo/reliability-forge/internal/store"
	"github.com/nulzo/reliability-forge/internal/store/model"
)

// Service answers read-side questions about recorded runs.
type Service interface {
	GetRun(ctx context.Context, id string) (*model.Run, error)
	RecentRuns(ctx context.Context, limit int) ([]model.Run, error)
	GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error)
}

type service struct {
	repo store.Repository
}

func NewService(repo store.Repository) Service {
	return &service{
		repo: repo,
	}
}

func (s *service) GetRun(ctx context.Context, id string) (*model.Run, error) {
	return s.repo.Runs().GetByID(ctx, id)
}

func (s *service) RecentRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.Runs().GetRecent(ctx, limit)
}

func (s *service) GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error) {
	if days <= 0 {
		days = 7 // default to last week
	}
	return s.repo.Runs().GetDailyStats(ctx, days)
}
