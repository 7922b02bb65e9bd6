package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/events"
)

type examRepository interface {
	List(ctx context.Context, filter models.ExamFilter) ([]models.ExamDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ExamDetail, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id string) error
	MarkPublished(ctx context.Context, id, publishedBy string, at time.Time) error
	MissingResults(ctx context.Context, examID string) ([]models.MissingResult, error)
	StudentTotals(ctx context.Context, examID string) ([]models.StudentTotal, error)
}

type gradingBandReader interface {
	List(ctx context.Context, activeOnly bool) ([]models.GradingBand, error)
}

// ExamRequest is the payload for creating or updating exams.
type ExamRequest struct {
	Name         string    `json:"name" validate:"required,max=128"`
	ClassID      string    `json:"class_id" validate:"required,uuid"`
	AcademicYear string    `json:"academic_year" validate:"required,max=16"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
}

// ExamService manages exams, result publication and ranking.
type ExamService struct {
	repo      examRepository
	classes   classLookup
	bands     gradingBandReader
	audit     auditLogger
	bus       eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExamService constructs ExamService.
func NewExamService(repo examRepository, classes classLookup, bands gradingBandReader, audit auditLogger, bus eventPublisher, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{
		repo:      repo,
		classes:   classes,
		bands:     bands,
		audit:     audit,
		bus:       bus,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns exams with pagination.
func (s *ExamService) List(ctx context.Context, filter models.ExamFilter) ([]models.ExamDetail, *models.Pagination, error) {
	exams, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list exams")
	}
	return exams, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one exam.
func (s *ExamService) Get(ctx context.Context, id string) (*models.ExamDetail, error) {
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "exam")
	}
	return exam, nil
}

// Create schedules an exam for a class.
func (s *ExamService) Create(ctx context.Context, req ExamRequest) (*models.ExamDetail, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	exam := &models.Exam{}
	applyExamRequest(exam, req)
	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, internalError(err, "failed to create exam")
	}
	return s.Get(ctx, exam.ID)
}

// Update modifies an exam while its results are unpublished.
func (s *ExamService) Update(ctx context.Context, id string, req ExamRequest) (*models.ExamDetail, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.IsResultPublished {
		return nil, appErrors.ErrPublished
	}
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	exam := existing.Exam
	applyExamRequest(&exam, req)
	if err := s.repo.Update(ctx, &exam); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			if exam.ClassID != existing.ClassID {
				return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class cannot change once results are entered")
			}
			return nil, appErrors.ErrPublished
		}
		return nil, internalError(err, "failed to update exam")
	}
	return s.Get(ctx, id)
}

// Delete removes an unpublished exam.
func (s *ExamService) Delete(ctx context.Context, id string) error {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if exam.IsResultPublished {
		return appErrors.ErrPublished
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return appErrors.ErrPublished
		}
		return internalError(err, "failed to delete exam")
	}
	return nil
}

// Publish makes the exam results visible. It requires the exam to be over and every
// active student of the class to have a result in every subject. Publishing is one-way.
func (s *ExamService) Publish(ctx context.Context, id string, actor models.Actor) (*models.ExamDetail, error) {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exam.IsResultPublished {
		return nil, appErrors.ErrPublished
	}
	now := s.now().UTC()
	if !exam.Completed(now) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "exam has not ended yet")
	}
	missing, err := s.repo.MissingResults(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to check exam results")
	}
	if len(missing) > 0 {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrPreconditionFailed, "results are missing for some students"),
			map[string]interface{}{"missing": missing},
		)
	}
	if err := s.repo.MarkPublished(ctx, id, actor.UserID, now); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, appErrors.ErrPublished
		}
		return nil, internalError(err, "failed to publish results")
	}

	s.logger.Info("exam results published", zap.String("exam_id", id), zap.String("published_by", actor.UserID))
	recordAudit(ctx, s.audit, s.logger, actorAudit(actor, models.AuditActionResultsPublish, "exam", id, map[string]interface{}{"published_at": now}))
	publishEvent(ctx, s.bus, s.logger, events.TopicResultsPublished, events.ResultsPublished{
		ExamID:      id,
		ExamName:    exam.Name,
		ClassID:     exam.ClassID,
		PublishedBy: actor.UserID,
	})
	return s.Get(ctx, id)
}

// RankList orders the exam's students by aggregate percentage.
func (s *ExamService) RankList(ctx context.Context, id string) (*models.RankList, error) {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.StudentTotals(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to aggregate exam results")
	}
	bands, err := s.bands.List(ctx, true)
	if err != nil {
		return nil, internalError(err, "failed to load grading scale")
	}
	return &models.RankList{Exam: *exam, Entries: rankTotals(totals, bands)}, nil
}

func (s *ExamService) validate(ctx context.Context, req ExamRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid exam payload")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if isNotFound(err) {
			return appErrors.Clone(appErrors.ErrValidation, "class does not exist")
		}
		return internalError(err, "failed to validate class")
	}
	return nil
}

func applyExamRequest(exam *models.Exam, req ExamRequest) {
	exam.Name = req.Name
	exam.ClassID = req.ClassID
	exam.AcademicYear = req.AcademicYear
	exam.StartDate = req.StartDate
	exam.EndDate = req.EndDate
}
