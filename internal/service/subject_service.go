package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

// SubjectRequest is the payload for creating or updating subjects.
type SubjectRequest struct {
	Code      string  `json:"code" validate:"required,max=32"`
	Name      string  `json:"name" validate:"required,max=128"`
	ClassID   string  `json:"class_id" validate:"required,uuid"`
	TeacherID string  `json:"teacher_id" validate:"omitempty,uuid"`
	FullMark  float64 `json:"full_mark" validate:"required,gt=0,lte=1000"`
	PassMark  float64 `json:"pass_mark" validate:"gte=0"`
}

// SubjectService exposes subject management operations.
type SubjectService struct {
	repo      subjectRepository
	classes   classLookup
	teachers  teacherLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs SubjectService.
func NewSubjectService(repo subjectRepository, classes classLookup, teachers teacherLookup, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, classes: classes, teachers: teachers, validator: validate, logger: logger}
}

// List returns subjects with pagination.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list subjects")
	}
	return subjects, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a subject.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "subject")
	}
	return subject, nil
}

// Create registers a subject.
func (s *SubjectService) Create(ctx context.Context, req SubjectRequest) (*models.Subject, error) {
	if err := s.validate(ctx, req, ""); err != nil {
		return nil, err
	}
	subject := &models.Subject{}
	applySubjectRequest(subject, req)
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, writeError(err, "failed to create subject", "subject code already exists")
	}
	return subject, nil
}

// Update modifies a subject.
func (s *SubjectService) Update(ctx context.Context, id string, req SubjectRequest) (*models.Subject, error) {
	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req, id); err != nil {
		return nil, err
	}
	applySubjectRequest(subject, req)
	if err := s.repo.Update(ctx, subject); err != nil {
		if errors.Is(err, repository.ErrLocked) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class, full mark and pass mark cannot change once results exist")
		}
		return nil, writeError(err, "failed to update subject", "subject code already exists")
	}
	return subject, nil
}

// Delete removes a subject together with its unpublished results. Subjects with results in a
// published exam cannot be deleted.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrLocked) {
			return appErrors.Clone(appErrors.ErrPublished, "subject has results in a published exam")
		}
		return internalError(err, "failed to delete subject")
	}
	return nil
}

func (s *SubjectService) validate(ctx context.Context, req SubjectRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid subject payload")
	}
	if req.PassMark > req.FullMark {
		return appErrors.Clone(appErrors.ErrValidation, "pass mark cannot exceed full mark")
	}
	exists, err := s.repo.ExistsByCode(ctx, strings.ToUpper(strings.TrimSpace(req.Code)), excludeID)
	if err != nil {
		return internalError(err, "failed to validate subject code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "subject code already exists")
	}
	if s.classes != nil {
		if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
			if isNotFound(err) {
				return appErrors.Clone(appErrors.ErrValidation, "class does not exist")
			}
			return internalError(err, "failed to validate class")
		}
	}
	if req.TeacherID != "" && s.teachers != nil {
		if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
			if isNotFound(err) {
				return appErrors.Clone(appErrors.ErrValidation, "teacher does not exist")
			}
			return internalError(err, "failed to validate teacher")
		}
	}
	return nil
}

func applySubjectRequest(subject *models.Subject, req SubjectRequest) {
	subject.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	subject.Name = req.Name
	subject.ClassID = req.ClassID
	subject.TeacherID = strPtr(req.TeacherID)
	subject.FullMark = req.FullMark
	subject.PassMark = req.PassMark
}
