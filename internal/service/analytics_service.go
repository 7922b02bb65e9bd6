package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	Counts(ctx context.Context) (models.SchoolCounts, error)
	ClassAttendance(ctx context.Context, filter models.AnalyticsAttendanceFilter) ([]models.ClassAttendanceRate, error)
	MonthlyCollections(ctx context.Context, from, to time.Time) ([]models.MonthlyCollection, error)
	ExamPerformance(ctx context.Context, examID string) ([]models.ExamPerformance, error)
}

// AnalyticsService provides read-optimised access to analytics datasets with cache integration.
type AnalyticsService struct {
	repo    AnalyticsRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, logger: logger, now: time.Now}
}

// Counts returns headcounts of active records. The boolean indicates whether data originated from cache.
func (s *AnalyticsService) Counts(ctx context.Context) (models.SchoolCounts, bool, error) {
	var counts models.SchoolCounts
	hit, err := s.remember(ctx, analyticsKey("counts"), "analytics_counts", &counts, func() (err error) {
		counts, err = s.repo.Counts(ctx)
		return err
	})
	return counts, hit, err
}

// Attendance returns attendance rates per class.
func (s *AnalyticsService) Attendance(ctx context.Context, filter models.AnalyticsAttendanceFilter) ([]models.ClassAttendanceRate, bool, error) {
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "date_to must not be before date_from")
	}
	key := analyticsKey("attendance", filter.ClassID, formatTime(filter.DateFrom), formatTime(filter.DateTo))
	var rows []models.ClassAttendanceRate
	hit, err := s.remember(ctx, key, "analytics_attendance", &rows, func() (err error) {
		rows, err = s.repo.ClassAttendance(ctx, filter)
		return err
	})
	return rows, hit, err
}

// Collections returns fee collections per month for the trailing months, current month included.
func (s *AnalyticsService) Collections(ctx context.Context, months int) ([]models.MonthlyCollection, bool, error) {
	if months <= 0 {
		months = 12
	}
	if months > 36 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "months must be at most 36")
	}
	now := s.now().UTC()
	to := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	from := to.AddDate(0, -months, 0)
	key := analyticsKey("collections", from.Format("2006-01"), to.Format("2006-01"))
	var rows []models.MonthlyCollection
	hit, err := s.remember(ctx, key, "analytics_collections", &rows, func() (err error) {
		rows, err = s.repo.MonthlyCollections(ctx, from, to)
		return err
	})
	return rows, hit, err
}

// ExamPerformance returns per-subject statistics of an exam.
func (s *AnalyticsService) ExamPerformance(ctx context.Context, examID string) ([]models.ExamPerformance, bool, error) {
	if examID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "exam_id is required")
	}
	var rows []models.ExamPerformance
	hit, err := s.remember(ctx, analyticsKey("exam", examID), "analytics_exam", &rows, func() (err error) {
		rows, err = s.repo.ExamPerformance(ctx, examID)
		return err
	})
	return rows, hit, err
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{}
	}
	return s.metrics.Snapshot()
}

// Invalidate drops every cached analytics dataset.
func (s *AnalyticsService) Invalidate(ctx context.Context) error {
	return s.cache.InvalidateNamespace(ctx, CacheNamespaceAnalytics)
}

// remember serves dest from cache or fills it through load, timing the query under label.
func (s *AnalyticsService) remember(ctx context.Context, key, label string, dest interface{}, load func() error) (bool, error) {
	return s.cache.Remember(ctx, key, 0, dest, func() error {
		start := time.Now()
		if err := load(); err != nil {
			return internalError(err, "failed to load analytics")
		}
		if s.metrics != nil {
			s.metrics.ObserveDBQuery(label, time.Since(start))
		}
		return nil
	})
}

func analyticsKey(parts ...string) string {
	return CacheKey(CacheNamespaceAnalytics, parts...)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
