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

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
	ExistsByNameSection(ctx context.Context, name, section, academicYear, excludeID string) (bool, error)
	Create(ctx context.Context, class *models.ClassRoom) error
	Update(ctx context.Context, class *models.ClassRoom) error
	Delete(ctx context.Context, id string) error
}

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.TeacherDetail, error)
}

// ClassRequest is the payload for creating or updating a class section.
type ClassRequest struct {
	Name           string `json:"name" validate:"required,max=64"`
	Section        string `json:"section" validate:"required,max=16"`
	GradeLevel     int    `json:"grade_level" validate:"required,min=1,max=12"`
	Capacity       int    `json:"capacity" validate:"omitempty,min=1,max=200"`
	AcademicYear   string `json:"academic_year" validate:"required,max=16"`
	ClassTeacherID string `json:"class_teacher_id" validate:"omitempty,uuid"`
}

// ClassService coordinates class use-cases.
type ClassService struct {
	repo      classRepository
	teachers  teacherLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a class service.
func NewClassService(repo classRepository, teachers teacherLookup, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, teachers: teachers, validator: validate, logger: logger}
}

// List returns class sections with pagination.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list classes")
	}
	return classes, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "class")
	}
	return class, nil
}

// Create registers a class section.
func (s *ClassService) Create(ctx context.Context, req ClassRequest) (*models.ClassDetail, error) {
	if err := s.validate(ctx, req, ""); err != nil {
		return nil, err
	}
	class := &models.ClassRoom{}
	applyClassRequest(class, req)
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, writeError(err, "failed to create class", "class section already exists")
	}
	return s.Get(ctx, class.ID)
}

// Update modifies a class section. Capacity cannot drop below the current headcount.
func (s *ClassService) Update(ctx context.Context, id string, req ClassRequest) (*models.ClassDetail, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req, id); err != nil {
		return nil, err
	}
	if req.Capacity > 0 && req.Capacity < existing.StudentCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "capacity is below the current number of students")
	}
	class := existing.ClassRoom
	applyClassRequest(&class, req)
	if err := s.repo.Update(ctx, &class); err != nil {
		return nil, writeError(err, "failed to update class", "class section already exists")
	}
	return s.Get(ctx, id)
}

// Delete removes an empty class whose exams are all unpublished.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	class, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if class.StudentCount > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "class still has students")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrLocked) {
			return appErrors.Clone(appErrors.ErrPublished, "class has published exam results")
		}
		return internalError(err, "failed to delete class")
	}
	return nil
}

func (s *ClassService) validate(ctx context.Context, req ClassRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid class payload")
	}
	exists, err := s.repo.ExistsByNameSection(ctx, strings.TrimSpace(req.Name), strings.TrimSpace(req.Section), req.AcademicYear, excludeID)
	if err != nil {
		return internalError(err, "failed to validate class section")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "class section already exists")
	}
	if req.ClassTeacherID != "" && s.teachers != nil {
		teacher, err := s.teachers.FindByID(ctx, req.ClassTeacherID)
		if err != nil {
			if isNotFound(err) {
				return appErrors.Clone(appErrors.ErrValidation, "class teacher does not exist")
			}
			return internalError(err, "failed to validate class teacher")
		}
		if !teacher.Active {
			return appErrors.Clone(appErrors.ErrValidation, "class teacher is inactive")
		}
	}
	return nil
}

func applyClassRequest(class *models.ClassRoom, req ClassRequest) {
	class.Name = strings.TrimSpace(req.Name)
	class.Section = strings.TrimSpace(req.Section)
	class.GradeLevel = req.GradeLevel
	class.Capacity = req.Capacity
	if class.Capacity == 0 {
		class.Capacity = 40
	}
	class.AcademicYear = req.AcademicYear
	class.ClassTeacherID = strPtr(req.ClassTeacherID)
}
