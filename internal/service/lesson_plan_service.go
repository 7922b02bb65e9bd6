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
	"github.com/noah-isme/sims-api/pkg/events"
)

type lessonPlanRepository interface {
	List(ctx context.Context, filter models.LessonPlanFilter) ([]models.LessonPlan, int, error)
	FindByID(ctx context.Context, id string) (*models.LessonPlan, error)
	Create(ctx context.Context, plan *models.LessonPlan) error
	Update(ctx context.Context, plan *models.LessonPlan) error
	Transition(ctx context.Context, id, from, to string, reviewer, note *string) error
	Delete(ctx context.Context, id string) error
	StatusCounts(ctx context.Context, filter models.LessonPlanFilter) ([]models.StatusCount, error)
}

// LessonPlanRequest is the payload for lesson plans. TeacherID is honoured for administrators only.
type LessonPlanRequest struct {
	TeacherID   string `json:"teacher_id" validate:"omitempty,uuid"`
	ClassID     string `json:"class_id" validate:"required,uuid"`
	SubjectID   string `json:"subject_id" validate:"required,uuid"`
	Title       string `json:"title" validate:"required,max=255"`
	Topic       string `json:"topic" validate:"omitempty,max=255"`
	Objectives  string `json:"objectives"`
	Activities  string `json:"activities"`
	Resources   string `json:"resources"`
	PlannedDate string `json:"planned_date" validate:"required,datetime=2006-01-02"`
}

// LessonPlanReviewRequest approves or rejects a submitted plan.
type LessonPlanReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Note     string `json:"note" validate:"required_if=Decision rejected,max=1024"`
}

// LessonPlanService manages the draft, submit and review workflow of lesson plans.
type LessonPlanService struct {
	repo      lessonPlanRepository
	subjects  timetableSubjectLookup
	teachers  teacherLookup
	byUser    teacherByUserLookup
	audit     auditLogger
	bus       eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonPlanService constructs LessonPlanService.
func NewLessonPlanService(repo lessonPlanRepository, subjects timetableSubjectLookup, teachers teacherLookup, byUser teacherByUserLookup, audit auditLogger, bus eventPublisher, validate *validator.Validate, logger *zap.Logger) *LessonPlanService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonPlanService{
		repo:      repo,
		subjects:  subjects,
		teachers:  teachers,
		byUser:    byUser,
		audit:     audit,
		bus:       bus,
		validator: validate,
		logger:    logger,
	}
}

// List returns plans. Teachers only see their own.
func (s *LessonPlanService) List(ctx context.Context, actor models.Actor, filter models.LessonPlanFilter) ([]models.LessonPlan, *models.Pagination, error) {
	owner, err := s.ownerID(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	if owner != "" {
		filter.TeacherID = owner
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list lesson plans")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *LessonPlanService) Get(ctx context.Context, actor models.Actor, id string) (*models.LessonPlan, error) {
	owner, err := s.ownerID(ctx, actor)
	if err != nil {
		return nil, err
	}
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "lesson plan")
	}
	if owner != "" && plan.TeacherID != owner {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson plan not found")
	}
	return plan, nil
}

// StatusCounts returns the lesson plan histogram by status, scoped like List.
func (s *LessonPlanService) StatusCounts(ctx context.Context, actor models.Actor) ([]models.StatusCount, error) {
	owner, err := s.ownerID(ctx, actor)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.StatusCounts(ctx, models.LessonPlanFilter{TeacherID: owner})
	if err != nil {
		return nil, internalError(err, "failed to count lesson plans")
	}
	return counts, nil
}

func (s *LessonPlanService) Create(ctx context.Context, actor models.Actor, req LessonPlanRequest) (*models.LessonPlan, error) {
	owner, err := s.ownerID(ctx, actor)
	if err != nil {
		return nil, err
	}
	if owner == "" {
		if req.TeacherID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
		}
		if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
			return nil, referenceError(err, "teacher")
		}
		owner = req.TeacherID
	}
	plan := &models.LessonPlan{TeacherID: owner}
	if err := s.apply(ctx, plan, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, internalError(err, "failed to create lesson plan")
	}
	return plan, nil
}

// Update edits a draft or rejected plan; the plan returns to draft.
func (s *LessonPlanService) Update(ctx context.Context, actor models.Actor, id string, req LessonPlanRequest) (*models.LessonPlan, error) {
	plan, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !plan.Editable() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lesson plan can no longer be edited")
	}
	if err := s.apply(ctx, plan, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "lesson plan can no longer be edited")
		}
		return nil, internalError(err, "failed to update lesson plan")
	}
	return s.Get(ctx, actor, id)
}

// Submit sends a draft or rejected plan for review.
func (s *LessonPlanService) Submit(ctx context.Context, actor models.Actor, id string) (*models.LessonPlan, error) {
	plan, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !plan.Editable() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lesson plan is already "+plan.Status)
	}
	if err := s.repo.Transition(ctx, id, plan.Status, models.LessonPlanSubmitted, nil, nil); err != nil {
		return nil, transitionError(err)
	}
	return s.Get(ctx, actor, id)
}

// Review approves or rejects a submitted plan and notifies its teacher.
func (s *LessonPlanService) Review(ctx context.Context, actor models.Actor, id string, req LessonPlanReviewRequest) (*models.LessonPlan, error) {
	req.Decision = strings.ToLower(strings.TrimSpace(req.Decision))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid review payload")
	}
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "lesson plan")
	}
	if plan.Status != models.LessonPlanSubmitted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only submitted lesson plans can be reviewed")
	}
	if err := s.repo.Transition(ctx, id, models.LessonPlanSubmitted, req.Decision, strPtr(actor.UserID), strPtr(req.Note)); err != nil {
		return nil, transitionError(err)
	}
	recordAudit(ctx, s.audit, s.logger, actorAudit(actor, models.AuditActionLessonReview, "lesson_plan", id, req))
	publishEvent(ctx, s.bus, s.logger, events.TopicLessonPlanReviewed, events.LessonPlanReviewed{
		LessonPlanID: id,
		TeacherID:    plan.TeacherID,
		Title:        plan.Title,
		Status:       req.Decision,
	})
	reviewed, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "lesson plan")
	}
	return reviewed, nil
}

// Delete removes a plan that has not been approved.
func (s *LessonPlanService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return appErrors.Clone(appErrors.ErrConflict, "approved lesson plans cannot be deleted")
		}
		return internalError(err, "failed to delete lesson plan")
	}
	return nil
}

// ownerID returns the caller's teacher id, or "" for administrators.
func (s *LessonPlanService) ownerID(ctx context.Context, actor models.Actor) (string, error) {
	if actor.Role.IsAdmin() {
		return "", nil
	}
	if actor.Role != models.RoleTeacher {
		return "", appErrors.ErrForbidden
	}
	teacher, err := s.byUser.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if isNotFound(err) {
			return "", appErrors.Clone(appErrors.ErrForbidden, "no teacher profile for this account")
		}
		return "", internalError(err, "failed to load teacher profile")
	}
	return teacher.ID, nil
}

func (s *LessonPlanService) apply(ctx context.Context, plan *models.LessonPlan, req LessonPlanRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid lesson plan payload")
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		return referenceError(err, "subject")
	}
	if subject.ClassID != req.ClassID {
		return appErrors.Clone(appErrors.ErrValidation, "subject is not taught in this class")
	}
	planned, _ := time.Parse(dateLayout, req.PlannedDate)
	plan.ClassID = req.ClassID
	plan.SubjectID = req.SubjectID
	plan.Title = strings.TrimSpace(req.Title)
	plan.Topic = strPtr(req.Topic)
	plan.Objectives = strPtr(req.Objectives)
	plan.Activities = strPtr(req.Activities)
	plan.Resources = strPtr(req.Resources)
	plan.PlannedDate = planned
	plan.Status = models.LessonPlanDraft
	return nil
}

func transitionError(err error) *appErrors.Error {
	if errors.Is(err, repository.ErrStaleWrite) {
		return appErrors.Clone(appErrors.ErrConflict, "lesson plan status changed, reload and retry")
	}
	return internalError(err, "failed to update lesson plan status")
}
