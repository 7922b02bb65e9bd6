package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceDetail, error)
	BulkUpsert(ctx context.Context, records []models.Attendance) error
	Update(ctx context.Context, record *models.Attendance) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, filter models.AttendanceFilter) (models.AttendanceSummary, error)
}

type classRosterLister interface {
	ListActiveByClass(ctx context.Context, classID string) ([]models.StudentDetail, error)
}

// ClassAttendanceRequest records a roll call for one class and date.
type ClassAttendanceRequest struct {
	ClassID string                  `json:"class_id" validate:"required,uuid"`
	Date    string                  `json:"date" validate:"required,datetime=2006-01-02"`
	Marks   []models.AttendanceMark `json:"marks" validate:"required,min=1,dive"`
}

// AttendanceUpdateRequest changes one attendance row.
type AttendanceUpdateRequest struct {
	Status  string `json:"status" validate:"required,attendance_status"`
	Remarks string `json:"remarks" validate:"omitempty,max=255"`
}

// AttendanceService coordinates student attendance workflows.
type AttendanceService struct {
	repo      attendanceRepository
	classes   classLookup
	roster    classRosterLister
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, classes classLookup, roster classRosterLister, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registerAttendanceStatus(validate)
	return &AttendanceService{repo: repo, classes: classes, roster: roster, validator: validate, logger: logger, now: time.Now}
}

func registerAttendanceStatus(validate *validator.Validate) {
	_ = validate.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToLower(fl.Field().String())).Valid()
	})
}

// List returns attendance rows with pagination.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list attendance")
	}
	return rows, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one attendance row.
func (s *AttendanceService) Get(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "attendance")
	}
	return row, nil
}

// MarkClass records the roll call of a class in one transaction. Re-marking a date overwrites it.
func (s *AttendanceService) MarkClass(ctx context.Context, req ClassAttendanceRequest, actor models.Actor) ([]models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if date.After(truncateDay(s.now())) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance cannot be recorded for a future date")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		return nil, lookupError(err, "class")
	}
	students, err := s.roster.ListActiveByClass(ctx, req.ClassID)
	if err != nil {
		return nil, internalError(err, "failed to load class students")
	}
	enrolled := make(map[string]struct{}, len(students))
	for _, st := range students {
		enrolled[st.ID] = struct{}{}
	}

	records := make([]models.Attendance, 0, len(req.Marks))
	seen := make(map[string]struct{}, len(req.Marks))
	var unknown []string
	for _, mark := range req.Marks {
		if _, dup := seen[mark.StudentID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is marked twice", mark.StudentID))
		}
		seen[mark.StudentID] = struct{}{}
		if _, ok := enrolled[mark.StudentID]; !ok {
			unknown = append(unknown, mark.StudentID)
			continue
		}
		records = append(records, models.Attendance{
			StudentID:  mark.StudentID,
			ClassID:    req.ClassID,
			Date:       date,
			Status:     models.AttendanceStatus(strings.ToLower(string(mark.Status))),
			Remarks:    strPtr(mark.Remarks),
			RecordedBy: strPtr(actor.UserID),
		})
	}
	if len(unknown) > 0 {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "some students are not in this class"), map[string]interface{}{"students": unknown})
	}
	if err := s.repo.BulkUpsert(ctx, records); err != nil {
		return nil, internalError(err, "failed to record attendance")
	}
	s.logger.Info("class attendance recorded", zap.String("class_id", req.ClassID), zap.String("date", req.Date), zap.Int("records", len(records)))
	return records, nil
}

// Update changes the status of one row.
func (s *AttendanceService) Update(ctx context.Context, id string, req AttendanceUpdateRequest, actor models.Actor) (*models.AttendanceDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	record := row.Attendance
	record.Status = models.AttendanceStatus(strings.ToLower(req.Status))
	record.Remarks = strPtr(req.Remarks)
	record.RecordedBy = strPtr(actor.UserID)
	if err := s.repo.Update(ctx, &record); err != nil {
		return nil, internalError(err, "failed to update attendance")
	}
	row.Attendance = record
	return row, nil
}

// Delete removes one row.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete attendance")
	}
	return nil
}

// Summary counts statuses and the attendance rate for the filter.
func (s *AttendanceService) Summary(ctx context.Context, filter models.AttendanceFilter) (models.AttendanceSummary, error) {
	summary, err := s.repo.Summary(ctx, filter)
	if err != nil {
		return models.AttendanceSummary{}, internalError(err, "failed to summarise attendance")
	}
	return summary.WithRate(), nil
}

func parseDate(raw string) (time.Time, error) {
	date, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}
	return date, nil
}
