package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.TeacherDetail, error)
	ExistsByEmployeeNo(ctx context.Context, employeeNo, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Deactivate(ctx context.Context, id string) error
}

type departmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.DepartmentDetail, error)
}

// TeacherRequest is the payload for creating or updating teachers.
type TeacherRequest struct {
	EmployeeNo   string     `json:"employee_no" validate:"required,max=32"`
	FullName     string     `json:"full_name" validate:"required,max=255"`
	Email        string     `json:"email" validate:"omitempty,email"`
	Phone        string     `json:"phone" validate:"omitempty,max=32"`
	DepartmentID string     `json:"department_id" validate:"omitempty,uuid"`
	Designation  string     `json:"designation" validate:"omitempty,max=64"`
	JoiningDate  *time.Time `json:"joining_date"`
	UserID       string     `json:"user_id" validate:"omitempty,uuid"`
	Active       *bool      `json:"active"`
}

// TeacherService manages teacher records.
type TeacherService struct {
	repo        teacherRepository
	departments departmentLookup
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTeacherService constructs TeacherService.
func NewTeacherService(repo teacherRepository, departments departmentLookup, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, departments: departments, validator: validate, logger: logger}
}

// List returns teachers with pagination.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list teachers")
	}
	return teachers, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a teacher.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.TeacherDetail, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "teacher")
	}
	return teacher, nil
}

// Create registers a teacher.
func (s *TeacherService) Create(ctx context.Context, req TeacherRequest) (*models.TeacherDetail, error) {
	if err := s.validate(ctx, req, ""); err != nil {
		return nil, err
	}
	teacher := &models.Teacher{Active: true}
	applyTeacherRequest(teacher, req)
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, writeError(err, "failed to create teacher", "employee number already used")
	}
	return s.Get(ctx, teacher.ID)
}

// Update modifies a teacher.
func (s *TeacherService) Update(ctx context.Context, id string, req TeacherRequest) (*models.TeacherDetail, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req, id); err != nil {
		return nil, err
	}
	teacher := existing.Teacher
	applyTeacherRequest(&teacher, req)
	if err := s.repo.Update(ctx, &teacher); err != nil {
		return nil, writeError(err, "failed to update teacher", "employee number already used")
	}
	return s.Get(ctx, id)
}

// Delete deactivates a teacher.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return internalError(err, "failed to deactivate teacher")
	}
	return nil
}

func (s *TeacherService) validate(ctx context.Context, req TeacherRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid teacher payload")
	}
	exists, err := s.repo.ExistsByEmployeeNo(ctx, strings.TrimSpace(req.EmployeeNo), excludeID)
	if err != nil {
		return internalError(err, "failed to validate employee number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "employee number already used")
	}
	if req.DepartmentID != "" && s.departments != nil {
		if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
			if isNotFound(err) {
				return appErrors.Clone(appErrors.ErrValidation, "department does not exist")
			}
			return internalError(err, "failed to validate department")
		}
	}
	return nil
}

func applyTeacherRequest(teacher *models.Teacher, req TeacherRequest) {
	teacher.EmployeeNo = strings.TrimSpace(req.EmployeeNo)
	teacher.FullName = req.FullName
	teacher.Email = strPtr(strings.ToLower(req.Email))
	teacher.Phone = strPtr(req.Phone)
	teacher.DepartmentID = strPtr(req.DepartmentID)
	teacher.Designation = strPtr(req.Designation)
	teacher.JoiningDate = req.JoiningDate
	teacher.UserID = strPtr(req.UserID)
	if req.Active != nil {
		teacher.Active = *req.Active
	}
}
