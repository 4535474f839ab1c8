package service

import (
	"context"
	"encoding/json"

	"github.com/mathieu-neron/nichescope/internal/logging"
	"github.com/mathieu-neron/nichescope/internal/model"
)

// StatsSource computes aggregate statistics.
type StatsSource interface {
	Stats(ctx context.Context) (*model.StatsResponse, error)
}

type StatsService struct {
	repo  StatsSource
	cache *CacheService
}

func NewStatsService(repo StatsSource, cache *CacheService) *StatsService {
	return &StatsService{repo: repo, cache: cache}
}

// GetStats returns aggregate platform statistics, cached for StatsCacheTTL.
func (s *StatsService) GetStats(ctx context.Context) (*model.StatsResponse, error) {
	log := logging.Component("stats")

	data, err := s.cache.GetStats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("cache read failed")
	}
	if data != nil {
		var stats model.StatsResponse
		if err := json.Unmarshal(data, &stats); err == nil {
			return &stats, nil
		}
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetStats(ctx, stats); err != nil {
		log.Warn().Err(err).Msg("cache write failed")
	}
	return stats, nil
}
