package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type mockAnalyticsRepo struct {
	counts          models.SchoolCounts
	attendance      []models.ClassAttendanceRate
	collections     []models.MonthlyCollection
	attendanceCalls int
	countsCalls     int
	attendanceErr   error
	lastFrom        time.Time
	lastTo          time.Time
}

func (m *mockAnalyticsRepo) Counts(ctx context.Context) (models.SchoolCounts, error) {
	m.countsCalls++
	return m.counts, nil
}

func (m *mockAnalyticsRepo) ClassAttendance(ctx context.Context, filter models.AnalyticsAttendanceFilter) ([]models.ClassAttendanceRate, error) {
	m.attendanceCalls++
	if m.attendanceErr != nil {
		return nil, m.attendanceErr
	}
	return m.attendance, nil
}

func (m *mockAnalyticsRepo) MonthlyCollections(ctx context.Context, from, to time.Time) ([]models.MonthlyCollection, error) {
	m.lastFrom, m.lastTo = from, to
	return m.collections, nil
}

func (m *mockAnalyticsRepo) ExamPerformance(ctx context.Context, examID string) ([]models.ExamPerformance, error) {
	return []models.ExamPerformance{{SubjectID: "math", Entries: 4, Passed: 3, PassRate: 75}}, nil
}

type stubCacheRepo struct {
	store map[string][]byte
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

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	s.store = nil
	return nil
}

func TestAnalyticsServiceAttendanceCaching(t *testing.T) {
	repo := &mockAnalyticsRepo{attendance: []models.ClassAttendanceRate{{ClassID: "class-1", Present: 10, Late: 2, Total: 15, Rate: 80}}}
	cacheRepo := &stubCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewAnalyticsService(repo, cacheSvc, nil, zap.NewNop())

	filter := models.AnalyticsAttendanceFilter{ClassID: "class-1"}
	ctx := context.Background()

	result, cacheHit, err := svc.Attendance(ctx, filter)
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 1, repo.attendanceCalls)
	assert.Equal(t, repo.attendance, result)

	resultCached, cacheHit2, err := svc.Attendance(ctx, filter)
	require.NoError(t, err)
	assert.True(t, cacheHit2)
	assert.Equal(t, 1, repo.attendanceCalls)
	assert.Equal(t, result, resultCached)

	require.NoError(t, svc.Invalidate(ctx))
	_, cacheHit3, err := svc.Attendance(ctx, filter)
	require.NoError(t, err)
	assert.False(t, cacheHit3)
	assert.Equal(t, 2, repo.attendanceCalls)
}

func TestAnalyticsServiceAttendanceErrorPassthrough(t *testing.T) {
	repo := &mockAnalyticsRepo{attendanceErr: assert.AnError}
	cacheSvc := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	svc := NewAnalyticsService(repo, cacheSvc, nil, zap.NewNop())

	_, _, err := svc.Attendance(context.Background(), models.AnalyticsAttendanceFilter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	_, _, err = svc.Attendance(context.Background(), models.AnalyticsAttendanceFilter{DateFrom: &from, DateTo: &to})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAnalyticsServiceCollectionsWindow(t *testing.T) {
	repo := &mockAnalyticsRepo{}
	svc := NewAnalyticsService(repo, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC) }

	_, hit, err := svc.Collections(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), repo.lastFrom)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), repo.lastTo)

	_, _, err = svc.Collections(context.Background(), 48)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAnalyticsServiceCountsAndExam(t *testing.T) {
	repo := &mockAnalyticsRepo{counts: models.SchoolCounts{Students: 120, Teachers: 14}}
	svc := NewAnalyticsService(repo, nil, nil, nil)

	counts, _, err := svc.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, counts.Students)

	_, _, err = svc.ExamPerformance(context.Background(), "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	rows, _, err := svc.ExamPerformance(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.Equal(t, 75.0, rows[0].PassRate)
	assert.Equal(t, models.SystemMetrics{}, svc.SystemMetrics())
}
