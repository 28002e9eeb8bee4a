package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
	appErrors "github.com/unimet-iinf/obs-admin-api/pkg/errors"
)

const dashboardCacheKey = "dash:overview"

type dashboardRepository interface {
	Totals(ctx context.Context) (models.DashboardTotals, error)
	StatusDistribution(ctx context.Context) ([]models.StatusCount, error)
	DepartmentDistribution(ctx context.Context) ([]models.DepartmentCount, error)
	TopResponsible(ctx context.Context, limit int) ([]models.ResponsibleRanking, error)
	DailyVolume(ctx context.Context, days int) ([]models.DailyCount, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL     time.Duration
	DailyWindow  int
	RankingLimit int
}

// DashboardService composes the aggregate overview. The snapshot is cached as
// a unit in Redis; cache failures degrade to direct queries.
type DashboardService struct {
	repo    dashboardRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(repo dashboardRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.DailyWindow <= 0 {
		cfg.DailyWindow = 30
	}
	if cfg.RankingLimit <= 0 {
		cfg.RankingLimit = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, metrics: metrics, logger: logger, now: time.Now, cfg: cfg}
}

// Overview returns the dashboard snapshot and indicates cache utilisation.
func (s *DashboardService) Overview(ctx context.Context) (*models.DashboardStats, bool, error) {
	if s.cache != nil {
		var cached models.DashboardStats
		hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	stats, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, stats, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return stats, false, nil
}

// Invalidate drops the cached snapshot. Called after review mutations so the
// overview does not serve counts a full TTL stale.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}

func (s *DashboardService) compose(ctx context.Context) (*models.DashboardStats, error) {
	start := s.now()
	totals, err := s.repo.Totals(ctx)
	s.observeQuery("dashboard_totals", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load totals")
	}

	start = s.now()
	statusDist, err := s.repo.StatusDistribution(ctx)
	s.observeQuery("dashboard_status_distribution", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status distribution")
	}

	start = s.now()
	deptDist, err := s.repo.DepartmentDistribution(ctx)
	s.observeQuery("dashboard_department_volume", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department distribution")
	}

	start = s.now()
	topResponsible, err := s.repo.TopResponsible(ctx, s.cfg.RankingLimit)
	s.observeQuery("dashboard_top_responsible", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load responsible ranking")
	}

	start = s.now()
	daily, err := s.repo.DailyVolume(ctx, s.cfg.DailyWindow)
	s.observeQuery("dashboard_daily_volume", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily volume")
	}

	return &models.DashboardStats{
		Totals:             totals,
		StatusDistribution: statusDist,
		DepartmentVolume:   deptDist,
		TopResponsible:     topResponsible,
		DailyVolume:        daily,
		GeneratedAt:        s.now().UTC(),
	}, nil
}

func (s *DashboardService) observeQuery(label string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDBQuery(label, s.now().Sub(start))
}
