package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type teacherAttendanceRepository interface {
	List(ctx context.Context, filter models.TeacherAttendanceFilter) ([]models.TeacherAttendanceDetail, int, error)
	FindByTeacherDate(ctx context.Context, teacherID string, date time.Time) (*models.TeacherAttendanceDetail, error)
	Upsert(ctx context.Context, record *models.TeacherAttendance) error
	SetCheckOut(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, filter models.TeacherAttendanceFilter) (models.AttendanceSummary, error)
}

type teacherByUserLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error)
}

// TeacherAttendanceRequest records a teacher's status for a date.
type TeacherAttendanceRequest struct {
	TeacherID string `json:"teacher_id" validate:"required,uuid"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Status    string `json:"status" validate:"required,attendance_status"`
	Remarks   string `json:"remarks" validate:"omitempty,max=255"`
}

// TeacherAttendanceService handles staff attendance and self check-in.
type TeacherAttendanceService struct {
	repo      teacherAttendanceRepository
	teachers  teacherLookup
	byUser    teacherByUserLookup
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	lateAfter time.Duration
}

// NewTeacherAttendanceService constructs TeacherAttendanceService. Check-ins later than
// lateAfter past midnight UTC are recorded as late.
func NewTeacherAttendanceService(repo teacherAttendanceRepository, teachers teacherLookup, byUser teacherByUserLookup, lateAfter time.Duration, validate *validator.Validate, logger *zap.Logger) *TeacherAttendanceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if lateAfter <= 0 {
		lateAfter = 7*time.Hour + 30*time.Minute
	}
	registerAttendanceStatus(validate)
	return &TeacherAttendanceService{
		repo:      repo,
		teachers:  teachers,
		byUser:    byUser,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		lateAfter: lateAfter,
	}
}

// List returns teacher attendance rows with pagination.
func (s *TeacherAttendanceService) List(ctx context.Context, filter models.TeacherAttendanceFilter) ([]models.TeacherAttendanceDetail, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list teacher attendance")
	}
	return rows, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Record sets a teacher's status for a date, overwriting any previous status.
func (s *TeacherAttendanceService) Record(ctx context.Context, req TeacherAttendanceRequest) (*models.TeacherAttendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid teacher attendance payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if date.After(truncateDay(s.now())) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance cannot be recorded for a future date")
	}
	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		return nil, lookupError(err, "teacher")
	}
	record := &models.TeacherAttendance{
		TeacherID: req.TeacherID,
		Date:      date,
		Status:    models.AttendanceStatus(strings.ToLower(req.Status)),
		Remarks:   strPtr(req.Remarks),
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, internalError(err, "failed to record teacher attendance")
	}
	return record, nil
}

// CheckIn records today's arrival for the teacher linked to userID.
func (s *TeacherAttendanceService) CheckIn(ctx context.Context, userID string) (*models.TeacherAttendance, error) {
	teacher, err := s.byUser.FindByUserID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no teacher profile for this account")
		}
		return nil, internalError(err, "failed to load teacher profile")
	}
	now := s.now().UTC()
	today := truncateDay(now)
	existing, err := s.repo.FindByTeacherDate(ctx, teacher.ID, today)
	if err != nil && !isNotFound(err) {
		return nil, internalError(err, "failed to load today's attendance")
	}
	if existing != nil && existing.CheckIn != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already checked in today")
	}
	status := models.AttendancePresent
	if now.Sub(today) > s.lateAfter {
		status = models.AttendanceLate
	}
	record := &models.TeacherAttendance{TeacherID: teacher.ID, Date: today, Status: status, CheckIn: &now}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, internalError(err, "failed to check in")
	}
	s.logger.Info("teacher checked in", zap.String("teacher_id", teacher.ID), zap.String("status", string(status)))
	return record, nil
}

// CheckOut stamps today's departure. A second check-out is a conflict.
func (s *TeacherAttendanceService) CheckOut(ctx context.Context, userID string) (*models.TeacherAttendanceDetail, error) {
	teacher, err := s.byUser.FindByUserID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no teacher profile for this account")
		}
		return nil, internalError(err, "failed to load teacher profile")
	}
	now := s.now().UTC()
	row, err := s.repo.FindByTeacherDate(ctx, teacher.ID, truncateDay(now))
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "check in before checking out")
		}
		return nil, internalError(err, "failed to load today's attendance")
	}
	if err := s.repo.SetCheckOut(ctx, row.ID, now); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "already checked out today")
		}
		return nil, internalError(err, "failed to check out")
	}
	row.CheckOut = &now
	return row, nil
}

// Delete removes one row.
func (s *TeacherAttendanceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete teacher attendance")
	}
	return nil
}

// Summary counts statuses and the attendance rate for the filter.
func (s *TeacherAttendanceService) Summary(ctx context.Context, filter models.TeacherAttendanceFilter) (models.AttendanceSummary, error) {
	summary, err := s.repo.Summary(ctx, filter)
	if err != nil {
		return models.AttendanceSummary{}, internalError(err, "failed to summarise teacher attendance")
	}
	return summary.WithRate(), nil
}
