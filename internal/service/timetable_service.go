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

const clockLayout = "15:04"

type timetableRepository interface {
	ListPeriods(ctx context.Context) ([]models.Period, error)
	FindPeriod(ctx context.Context, id string) (*models.Period, error)
	CreatePeriod(ctx context.Context, period *models.Period) error
	UpdatePeriod(ctx context.Context, period *models.Period) error
	DeletePeriod(ctx context.Context, id string) error
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableDetail, error)
	FindByID(ctx context.Context, id string) (*models.TimetableDetail, error)
	SlotTaken(ctx context.Context, entry models.TimetableEntry, excludeID string) (bool, error)
	Create(ctx context.Context, entry *models.TimetableEntry) error
	Update(ctx context.Context, entry *models.TimetableEntry) error
	Delete(ctx context.Context, id string) error
}

type timetableSubjectLookup interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// PeriodRequest is the payload for periods.
type PeriodRequest struct {
	Name      string `json:"name" validate:"required,max=64"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
	IsBreak   bool   `json:"is_break"`
}

// TimetableRequest is the payload for timetable entries.
type TimetableRequest struct {
	ClassID   string `json:"class_id" validate:"required,uuid"`
	SubjectID string `json:"subject_id" validate:"required,uuid"`
	TeacherID string `json:"teacher_id" validate:"required,uuid"`
	PeriodID  string `json:"period_id" validate:"required,uuid"`
	DayOfWeek int    `json:"day_of_week" validate:"required,min=1,max=7"`
	Room      string `json:"room" validate:"omitempty,max=64"`
}

// TimetableService manages periods and the weekly class timetable.
type TimetableService struct {
	repo      timetableRepository
	classes   classLookup
	subjects  timetableSubjectLookup
	teachers  teacherLookup
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTimetableService constructs TimetableService.
func NewTimetableService(repo timetableRepository, classes classLookup, subjects timetableSubjectLookup, teachers teacherLookup, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		repo:      repo,
		classes:   classes,
		subjects:  subjects,
		teachers:  teachers,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *TimetableService) ListPeriods(ctx context.Context) ([]models.Period, error) {
	periods, err := s.repo.ListPeriods(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list periods")
	}
	return periods, nil
}

func (s *TimetableService) GetPeriod(ctx context.Context, id string) (*models.Period, error) {
	period, err := s.repo.FindPeriod(ctx, id)
	if err != nil {
		return nil, lookupError(err, "period")
	}
	return period, nil
}

func (s *TimetableService) CreatePeriod(ctx context.Context, req PeriodRequest) (*models.Period, error) {
	period := &models.Period{}
	if err := s.applyPeriod(period, req); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePeriod(ctx, period); err != nil {
		return nil, writeError(err, "failed to create period", "period name already exists")
	}
	return period, nil
}

func (s *TimetableService) UpdatePeriod(ctx context.Context, id string, req PeriodRequest) (*models.Period, error) {
	period, err := s.GetPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyPeriod(period, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePeriod(ctx, period); err != nil {
		return nil, writeError(err, "failed to update period", "period name already exists")
	}
	return s.GetPeriod(ctx, id)
}

// DeletePeriod removes a period together with the lessons scheduled in it.
func (s *TimetableService) DeletePeriod(ctx context.Context, id string) error {
	if _, err := s.GetPeriod(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeletePeriod(ctx, id); err != nil {
		return internalError(err, "failed to delete period")
	}
	return nil
}

func (s *TimetableService) applyPeriod(period *models.Period, req PeriodRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid period payload")
	}
	start, _ := time.Parse(clockLayout, req.StartTime)
	end, _ := time.Parse(clockLayout, req.EndTime)
	if !start.Before(end) {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	period.Name = strings.TrimSpace(req.Name)
	period.StartTime = req.StartTime
	period.EndTime = req.EndTime
	period.SortOrder = req.SortOrder
	period.IsBreak = req.IsBreak
	return nil
}

func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableDetail, error) {
	if filter.DayOfWeek < 0 || filter.DayOfWeek > 7 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day_of_week must be between 1 and 7")
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list timetable")
	}
	return entries, nil
}

// Today returns the entries for the current weekday narrowed by filter.
func (s *TimetableService) Today(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableDetail, error) {
	filter.DayOfWeek = models.ISOWeekday(s.now().UTC().Weekday())
	return s.List(ctx, filter)
}

func (s *TimetableService) Get(ctx context.Context, id string) (*models.TimetableDetail, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "timetable entry")
	}
	return entry, nil
}

func (s *TimetableService) Create(ctx context.Context, req TimetableRequest) (*models.TimetableDetail, error) {
	entry := &models.TimetableEntry{}
	if err := s.applyEntry(ctx, entry, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, slotError(err, "failed to create timetable entry")
	}
	return s.Get(ctx, entry.ID)
}

func (s *TimetableService) Update(ctx context.Context, id string, req TimetableRequest) (*models.TimetableDetail, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	entry := existing.TimetableEntry
	if err := s.applyEntry(ctx, &entry, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &entry); err != nil {
		return nil, slotError(err, "failed to update timetable entry")
	}
	return s.Get(ctx, id)
}

func (s *TimetableService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete timetable entry")
	}
	return nil
}

func (s *TimetableService) applyEntry(ctx context.Context, entry *models.TimetableEntry, req TimetableRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid timetable payload")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		return referenceError(err, "class")
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		return referenceError(err, "subject")
	}
	if subject.ClassID != req.ClassID {
		return appErrors.Clone(appErrors.ErrValidation, "subject is not taught in this class")
	}
	teacher, err := s.teachers.FindByID(ctx, req.TeacherID)
	if err != nil {
		return referenceError(err, "teacher")
	}
	if !teacher.Active {
		return appErrors.Clone(appErrors.ErrValidation, "teacher is inactive")
	}
	period, err := s.repo.FindPeriod(ctx, req.PeriodID)
	if err != nil {
		return referenceError(err, "period")
	}
	if period.IsBreak {
		return appErrors.Clone(appErrors.ErrValidation, "cannot schedule a lesson in a break period")
	}

	entry.ClassID = req.ClassID
	entry.SubjectID = req.SubjectID
	entry.TeacherID = req.TeacherID
	entry.PeriodID = req.PeriodID
	entry.DayOfWeek = req.DayOfWeek
	entry.Room = strPtr(strings.TrimSpace(req.Room))

	taken, err := s.repo.SlotTaken(ctx, *entry, excludeID)
	if err != nil {
		return internalError(err, "failed to check timetable slot")
	}
	if taken {
		return appErrors.WithDetails(appErrors.ErrScheduleConflict, map[string]interface{}{
			"day_of_week": req.DayOfWeek,
			"period_id":   req.PeriodID,
		})
	}
	return nil
}

// referenceError maps a missing referenced row to VALIDATION_ERROR.
func referenceError(err error, entity string) *appErrors.Error {
	if isNotFound(err) {
		return appErrors.Clone(appErrors.ErrValidation, entity+" does not exist")
	}
	return internalError(err, "failed to validate "+entity)
}

func slotError(err error, message string) *appErrors.Error {
	if errors.Is(err, repository.ErrDuplicate) {
		return appErrors.Wrap(err, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, appErrors.ErrScheduleConflict.Message)
	}
	return internalError(err, message)
}
