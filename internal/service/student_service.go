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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByAdmissionNo(ctx context.Context, admissionNo, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

type classLookup interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

type attendanceSummarizer interface {
	Summary(ctx context.Context, filter models.AttendanceFilter) (models.AttendanceSummary, error)
}

type pendingFeeReader interface {
	PendingTotal(ctx context.Context, studentIDs []string) (float64, error)
}

type guardianLinkReader interface {
	ListGuardians(ctx context.Context, studentID string) ([]models.GuardianLink, error)
}

type publishedResultReader interface {
	LatestPublished(ctx context.Context, studentID string, limit int) ([]models.ResultDetail, error)
}

// StudentRequest holds payload for creating or updating students.
type StudentRequest struct {
	AdmissionNo   string     `json:"admission_no" validate:"required,max=32"`
	RollNo        string     `json:"roll_no" validate:"omitempty,max=16"`
	FullName      string     `json:"full_name" validate:"required,max=255"`
	Gender        string     `json:"gender" validate:"required,oneof=M F"`
	BirthDate     *time.Time `json:"birth_date"`
	Address       string     `json:"address"`
	Phone         string     `json:"phone" validate:"omitempty,max=32"`
	ClassID       string     `json:"class_id" validate:"omitempty,uuid"`
	UserID        string     `json:"user_id" validate:"omitempty,uuid"`
	AdmissionDate *time.Time `json:"admission_date"`
	Active        *bool      `json:"active"`
}

// StudentProfileDeps groups the readers behind the computed student attributes.
type StudentProfileDeps struct {
	Attendance attendanceSummarizer
	Fees       pendingFeeReader
	Guardians  guardianLinkReader
	Results    publishedResultReader
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	classes   classLookup
	profile   StudentProfileDeps
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, classes classLookup, profile StudentProfileDeps, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, classes: classes, profile: profile, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list students")
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "student")
	}
	return student, nil
}

// Profile returns the student with attendance rate, pending fees, guardians and latest published results.
func (s *StudentService) Profile(ctx context.Context, id string) (*models.StudentProfile, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := &models.StudentProfile{StudentDetail: *student, Guardians: []models.GuardianLink{}, LatestResults: []models.ResultDetail{}}

	if s.profile.Attendance != nil {
		summary, err := s.profile.Attendance.Summary(ctx, models.AttendanceFilter{StudentID: id})
		if err != nil {
			return nil, internalError(err, "failed to summarise attendance")
		}
		profile.Attendance = summary
	}
	if s.profile.Fees != nil {
		pending, err := s.profile.Fees.PendingTotal(ctx, []string{id})
		if err != nil {
			return nil, internalError(err, "failed to sum pending fees")
		}
		profile.PendingFees = pending
	}
	if s.profile.Guardians != nil {
		guardians, err := s.profile.Guardians.ListGuardians(ctx, id)
		if err != nil {
			return nil, internalError(err, "failed to load guardians")
		}
		if guardians != nil {
			profile.Guardians = guardians
		}
	}
	if s.profile.Results != nil {
		results, err := s.profile.Results.LatestPublished(ctx, id, 20)
		if err != nil {
			return nil, internalError(err, "failed to load results")
		}
		if results != nil {
			profile.LatestResults = results
		}
	}
	return profile, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.StudentDetail, error) {
	if err := s.validate(ctx, req, ""); err != nil {
		return nil, err
	}
	student := &models.Student{Active: true}
	applyStudentRequest(student, req)
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, writeError(err, "failed to create student", "admission number already used")
	}
	return s.Get(ctx, student.ID)
}

// Update modifies student attributes.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*models.StudentDetail, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req, id); err != nil {
		return nil, err
	}
	student := existing.Student
	applyStudentRequest(&student, req)
	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, writeError(err, "failed to update student", "admission number already used")
	}
	return s.Get(ctx, id)
}

// Delete deactivates a student; history rows stay attached.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return internalError(err, "failed to deactivate student")
	}
	return nil
}

func (s *StudentService) validate(ctx context.Context, req StudentRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid student payload")
	}
	if req.BirthDate != nil && req.BirthDate.After(time.Now()) {
		return appErrors.Clone(appErrors.ErrValidation, "birth date cannot be in the future")
	}
	exists, err := s.repo.ExistsByAdmissionNo(ctx, strings.TrimSpace(req.AdmissionNo), excludeID)
	if err != nil {
		return internalError(err, "failed to validate admission number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "admission number already used")
	}
	if req.ClassID != "" && s.classes != nil {
		if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
			if isNotFound(err) {
				return appErrors.Clone(appErrors.ErrValidation, "class does not exist")
			}
			return internalError(err, "failed to validate class")
		}
	}
	return nil
}

func applyStudentRequest(student *models.Student, req StudentRequest) {
	student.AdmissionNo = strings.TrimSpace(req.AdmissionNo)
	student.RollNo = strPtr(req.RollNo)
	student.FullName = req.FullName
	student.Gender = req.Gender
	student.BirthDate = req.BirthDate
	student.Address = strPtr(req.Address)
	student.Phone = strPtr(req.Phone)
	student.ClassID = strPtr(req.ClassID)
	student.UserID = strPtr(req.UserID)
	student.AdmissionDate = req.AdmissionDate
	if req.Active != nil {
		student.Active = *req.Active
	}
}
