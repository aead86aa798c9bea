package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/skulane/priceflow/internal/cache"
	"github.com/skulane/priceflow/internal/domain"
	"github.com/skulane/priceflow/internal/repository"
)

// ResultService serves the engine's output tables to the API, with a
// read-through cache in front of the summary table.
type ResultService struct {
	repo  repository.ResultRepository
	cache cache.SummaryCache
}

func NewResultService(repo repository.ResultRepository, cacheImpl cache.SummaryCache) *ResultService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopSummaryCache()
	}
	return &ResultService{repo: repo, cache: cacheImpl}
}

func (s *ResultService) GetSummary(ctx context.Context, filter domain.ResultFilter) ([]domain.OptimizationResult, error) {
	if results, ok, err := s.cache.Get(ctx, filter); err == nil && ok {
		return results, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("optimization summary: cache get failed")
	}

	results, err := s.repo.GetSummary(ctx, filter)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, filter, results); err != nil {
		log.Warn().Err(err).Msg("optimization summary: cache set failed")
	}

	return results, nil
}

func (s *ResultService) GetTrajectory(ctx context.Context, filter domain.ResultFilter) ([]domain.TrajectoryPoint, error) {
	return s.repo.GetTrajectory(ctx, filter)
}

func (s *ResultService) GetStockouts(ctx context.Context, filter domain.ResultFilter) ([]domain.StockoutFlag, int, error) {
	return s.repo.GetStockouts(ctx, filter)
}

// InvalidateCache drops every cached summary page. The batch CLI calls this
// after replacing the output tables.
func (s *ResultService) InvalidateCache(ctx context.Context) error {
	return s.cache.InvalidateAll(ctx)
}
