package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civicwatch/incident-service/internal/domain"
	"github.com/civicwatch/incident-service/internal/persistence"
	"github.com/civicwatch/incident-service/internal/repository"
	apperrors "github.com/civicwatch/incident-service/pkg/util"
)

const statsCacheKey = "incident:stats:overview"

// StatsService aggregates incident counters for reporting. Reads go through
// a Redis snapshot cache and never coordinate with the assignment lock, so
// they may briefly lag behind committed assignments.
type StatsService struct {
	incidents repository.IncidentRepository
	cache     *persistence.Redis
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewStatsService creates the service. cache may be nil to disable caching.
func NewStatsService(incidents repository.IncidentRepository, cache *persistence.Redis, cacheTTL time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		incidents: incidents,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Overview returns aggregated incident counters, from cache when fresh.
func (s *StatsService) Overview(ctx context.Context) (*domain.IncidentStats, error) {
	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	var (
		total      int64
		byStatus   map[string]int64
		byType     map[string]int64
		byPriority map[string]int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		total, err = s.incidents.CountTotal(gctx)
		return err
	})
	g.Go(func() (err error) {
		byStatus, err = s.incidents.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		byType, err = s.incidents.CountByType(gctx)
		return err
	})
	g.Go(func() (err error) {
		byPriority, err = s.incidents.CountByPriority(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.MapError(err)
	}

	stats := &domain.IncidentStats{
		TotalIncidents:      total,
		IncidentsByStatus:   byStatus,
		IncidentsByType:     byType,
		IncidentsByPriority: byPriority,
		OpenIncidents:       byStatus[string(domain.IncidentStatusOpen)],
		ResolvedIncidents:   byStatus[string(domain.IncidentStatusResolved)],
	}

	s.toCache(ctx, stats)
	return stats, nil
}

func (s *StatsService) fromCache(ctx context.Context) *domain.IncidentStats {
	if s.cache == nil || s.cache.Client == nil || s.cacheTTL <= 0 {
		return nil
	}
	raw, err := s.cache.Client.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		return nil
	}
	var stats domain.IncidentStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil
	}
	return &stats
}

func (s *StatsService) toCache(ctx context.Context, stats *domain.IncidentStats) {
	if s.cache == nil || s.cache.Client == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Client.Set(ctx, statsCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("stats cache write failed", zap.Error(err))
	}
}
