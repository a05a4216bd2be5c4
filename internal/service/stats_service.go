package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/blueridge-hs/registrar-api/internal/models"
	appErrors "github.com/blueridge-hs/registrar-api/pkg/errors"
)

const statsCacheKey = "stats:assignments"

type enrollmentAggregator interface {
	CountByStatus(ctx context.Context, status models.EnrollmentStatus) (int, error)
	CountDistinctActiveStudents(ctx context.Context) (int, error)
	AggregateCourseFill(ctx context.Context) ([]models.CourseFill, error)
}

// StatsService composes enrollment statistics and caches the payload so the
// dashboard poll does not hammer the aggregate queries.
type StatsService struct {
	enrollments enrollmentAggregator
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
	ttl         time.Duration
}

// NewStatsService constructs a StatsService. A nil cache disables caching.
func NewStatsService(enrollments enrollmentAggregator, cache *CacheService, ttl time.Duration, logger *zap.Logger) *StatsService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		enrollments: enrollments,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
		ttl:         ttl,
	}
}

// Statistics returns current assignment statistics and indicates cache
// utilisation.
func (s *StatsService) Statistics(ctx context.Context) (*models.EnrollmentStatistics, bool, error) {
	if s.cache != nil {
		var cached models.EnrollmentStatistics
		hit, err := s.cache.Get(ctx, statsCacheKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	stats, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.ttl); err != nil {
			s.logger.Warn("statistics cache write failed", zap.Error(err))
		}
	}
	return stats, false, nil
}

func (s *StatsService) compose(ctx context.Context) (*models.EnrollmentStatistics, error) {
	active, err := s.enrollments.CountByStatus(ctx, models.EnrollmentStatusActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active enrollments")
	}
	dropped, err := s.enrollments.CountByStatus(ctx, models.EnrollmentStatusDropped)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count dropped enrollments")
	}
	served, err := s.enrollments.CountDistinctActiveStudents(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assigned students")
	}
	courses, err := s.enrollments.AggregateCourseFill(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate course fill")
	}

	stats := &models.EnrollmentStatistics{
		TotalActive:    active,
		TotalDropped:   dropped,
		StudentsServed: served,
		Courses:        courses,
		GeneratedAt:    s.now(),
	}
	if served > 0 {
		stats.AveragePerStudent = float64(active) / float64(served)
	}
	return stats, nil
}

// InvalidateStats drops cached statistics so the next read recomputes them.
func (s *StatsService) InvalidateStats(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, "stats:*")
}
