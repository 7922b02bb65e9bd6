package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type departmentRepository interface {
	List(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.DepartmentDetail, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Delete(ctx context.Context, id string) error
}

// DepartmentRequest is the payload for departments.
type DepartmentRequest struct {
	Code          string `json:"code" validate:"required,max=32"`
	Name          string `json:"name" validate:"required,max=128"`
	Description   string `json:"description" validate:"omitempty,max=1024"`
	HeadTeacherID string `json:"head_teacher_id" validate:"omitempty,uuid"`
}

// DepartmentService manages academic departments.
type DepartmentService struct {
	repo      departmentRepository
	teachers  teacherLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs DepartmentService.
func NewDepartmentService(repo departmentRepository, teachers teacherLookup, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{repo: repo, teachers: teachers, validator: validate, logger: logger}
}

func (s *DepartmentService) List(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list departments")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *DepartmentService) Get(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	department, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "department")
	}
	return department, nil
}

func (s *DepartmentService) Create(ctx context.Context, req DepartmentRequest) (*models.DepartmentDetail, error) {
	if err := s.validate(ctx, req, ""); err != nil {
		return nil, err
	}
	department := &models.Department{}
	applyDepartmentRequest(department, req)
	if err := s.repo.Create(ctx, department); err != nil {
		return nil, writeError(err, "failed to create department", "department code already exists")
	}
	return s.Get(ctx, department.ID)
}

func (s *DepartmentService) Update(ctx context.Context, id string, req DepartmentRequest) (*models.DepartmentDetail, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req, id); err != nil {
		return nil, err
	}
	department := existing.Department
	applyDepartmentRequest(&department, req)
	if err := s.repo.Update(ctx, &department); err != nil {
		return nil, writeError(err, "failed to update department", "department code already exists")
	}
	return s.Get(ctx, id)
}

// Delete removes a department; member teachers keep their records without a department.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete department")
	}
	return nil
}

func (s *DepartmentService) validate(ctx context.Context, req DepartmentRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid department payload")
	}
	exists, err := s.repo.ExistsByCode(ctx, strings.ToUpper(strings.TrimSpace(req.Code)), excludeID)
	if err != nil {
		return internalError(err, "failed to validate department code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "department code already exists")
	}
	if req.HeadTeacherID != "" && s.teachers != nil {
		if _, err := s.teachers.FindByID(ctx, req.HeadTeacherID); err != nil {
			if isNotFound(err) {
				return appErrors.Clone(appErrors.ErrValidation, "head teacher does not exist")
			}
			return internalError(err, "failed to validate head teacher")
		}
	}
	return nil
}

func applyDepartmentRequest(department *models.Department, req DepartmentRequest) {
	department.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	department.Name = req.Name
	department.Description = strPtr(req.Description)
	department.HeadTeacherID = strPtr(req.HeadTeacherID)
}
