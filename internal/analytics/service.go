package analytics

import (
	"context"

	"github.com/modelgate/gateway/internal/store"
	"github.com/modelgate/gateway/internal/store/model"
)

type Service interface {
	GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error)
	GetRecentRequests(ctx context.Context, teamID string, limit int) ([]model.RequestLog, error)
}

type service struct {
	repo store.Repository
}

func NewService(repo store.Repository) Service {
	return &service{
		repo: repo,
	}
}

func (s *service) GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error) {
	if days <= 0 {
		days = 7 // default to last week
	}
	return s.repo.Requests().GetDailyStats(ctx, days)
}

func (s *service) GetRecentRequests(ctx context.Context, teamID string, limit int) ([]model.RequestLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.Requests().GetRecent(ctx, teamID, limit)
}
