package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blueridge-hs/registrar-api/internal/models"
	appErrors "github.com/blueridge-hs/registrar-api/pkg/errors"
)

type aggregatorStub struct {
	active      int
	dropped     int
	served      int
	fill        []models.CourseFill
	statusCalls int
	err         error
}

func (s *aggregatorStub) CountByStatus(ctx context.Context, status models.EnrollmentStatus) (int, error) {
	s.statusCalls++
	if s.err != nil {
		return 0, s.err
	}
	if status == models.EnrollmentStatusActive {
		return s.active, nil
	}
	return s.dropped, nil
}

func (s *aggregatorStub) CountDistinctActiveStudents(ctx context.Context) (int, error) {
	return s.served, nil
}

func (s *aggregatorStub) AggregateCourseFill(ctx context.Context) ([]models.CourseFill, error) {
	return s.fill, nil
}

type stubCacheRepo struct {
	store   map[string][]byte
	deleted []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.deleted = append(s.deleted, pattern)
	for key := range s.store {
		delete(s.store, key)
	}
	return nil
}

func TestStatsServiceComposesStatistics(t *testing.T) {
	agg := &aggregatorStub{
		active:  12,
		dropped: 3,
		served:  4,
		fill:    []models.CourseFill{{CourseID: "c1", CourseCode: "MATH201", Capacity: 30, Enrolled: 12, Sections: 2}},
	}
	svc := NewStatsService(agg, nil, time.Minute, zap.NewNop())
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	stats, cacheHit, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 12, stats.TotalActive)
	assert.Equal(t, 3, stats.TotalDropped)
	assert.Equal(t, 4, stats.StudentsServed)
	assert.Equal(t, 3.0, stats.AveragePerStudent)
	assert.Equal(t, agg.fill, stats.Courses)
	assert.Equal(t, now, stats.GeneratedAt)
}

func TestStatsServiceZeroStudentsServed(t *testing.T) {
	agg := &aggregatorStub{active: 0, dropped: 5, served: 0}
	svc := NewStatsService(agg, nil, time.Minute, zap.NewNop())

	stats, _, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.AveragePerStudent)
}

func TestStatsServiceCachesResult(t *testing.T) {
	agg := &aggregatorStub{active: 6, dropped: 1, served: 3}
	cacheRepo := &stubCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewStatsService(agg, cacheSvc, time.Minute, zap.NewNop())

	ctx := context.Background()

	stats, cacheHit, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 2, agg.statusCalls)
	assert.Equal(t, 6, stats.TotalActive)

	cached, cacheHit2, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.True(t, cacheHit2)
	assert.Equal(t, 2, agg.statusCalls)
	assert.Equal(t, 6, cached.TotalActive)
	assert.Equal(t, 3, cached.StudentsServed)
}

func TestStatsServiceInvalidate(t *testing.T) {
	agg := &aggregatorStub{active: 6, served: 3}
	cacheRepo := &stubCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewStatsService(agg, cacheSvc, time.Minute, zap.NewNop())

	ctx := context.Background()
	_, _, err := svc.Statistics(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateStats(ctx))
	assert.Equal(t, []string{"stats:*"}, cacheRepo.deleted)

	_, cacheHit, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 4, agg.statusCalls)
}

func TestStatsServiceInvalidateWithoutCache(t *testing.T) {
	svc := NewStatsService(&aggregatorStub{}, nil, time.Minute, zap.NewNop())
	assert.NoError(t, svc.InvalidateStats(context.Background()))
}

func TestStatsServiceAggregateError(t *testing.T) {
	svc := NewStatsService(&aggregatorStub{err: assert.AnError}, nil, time.Minute, zap.NewNop())

	_, _, err := svc.Statistics(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
