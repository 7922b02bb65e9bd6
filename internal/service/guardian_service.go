package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
)

type guardianRepository interface {
	List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, int, error)
	FindByID(ctx context.Context, id string) (*models.Guardian, error)
	Create(ctx context.Context, guardian *models.Guardian) error
	Update(ctx context.Context, guardian *models.Guardian) error
	Delete(ctx context.Context, id string) error
	Link(ctx context.Context, guardianID, studentID, relation string, primary bool) error
	Unlink(ctx context.Context, guardianID, studentID string) error
	ListStudents(ctx context.Context, guardianID string) ([]models.GuardianLink, error)
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// GuardianRequest is the payload for creating or updating guardians.
type GuardianRequest struct {
	FullName   string `json:"full_name" validate:"required,max=255"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
	Email      string `json:"email" validate:"omitempty,email"`
	Occupation string `json:"occupation" validate:"omitempty,max=128"`
	Address    string `json:"address" validate:"omitempty,max=512"`
	UserID     string `json:"user_id" validate:"omitempty,uuid"`
}

// GuardianLinkRequest attaches a student to a guardian.
type GuardianLinkRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	Relation  string `json:"relation" validate:"required,oneof=father mother guardian sibling other"`
	IsPrimary bool   `json:"is_primary"`
}

// GuardianService manages guardians and their links to students.
type GuardianService struct {
	repo      guardianRepository
	students  studentLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGuardianService constructs GuardianService.
func NewGuardianService(repo guardianRepository, students studentLookup, validate *validator.Validate, logger *zap.Logger) *GuardianService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardianService{repo: repo, students: students, validator: validate, logger: logger}
}

// List returns guardians with pagination.
func (s *GuardianService) List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, *models.Pagination, error) {
	guardians, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list guardians")
	}
	return guardians, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a guardian together with linked students.
func (s *GuardianService) Get(ctx context.Context, id string) (*models.GuardianDetail, error) {
	guardian, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "guardian")
	}
	links, err := s.repo.ListStudents(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load guardian students")
	}
	if links == nil {
		links = []models.GuardianLink{}
	}
	return &models.GuardianDetail{Guardian: *guardian, Students: links}, nil
}

// Create registers a guardian.
func (s *GuardianService) Create(ctx context.Context, req GuardianRequest) (*models.GuardianDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid guardian payload")
	}
	guardian := &models.Guardian{}
	applyGuardianRequest(guardian, req)
	if err := s.repo.Create(ctx, guardian); err != nil {
		return nil, writeError(err, "failed to create guardian", "user already linked to a guardian")
	}
	return &models.GuardianDetail{Guardian: *guardian, Students: []models.GuardianLink{}}, nil
}

// Update modifies guardian contact details.
func (s *GuardianService) Update(ctx context.Context, id string, req GuardianRequest) (*models.GuardianDetail, error) {
	guardian, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "guardian")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid guardian payload")
	}
	applyGuardianRequest(guardian, req)
	if err := s.repo.Update(ctx, guardian); err != nil {
		return nil, writeError(err, "failed to update guardian", "user already linked to a guardian")
	}
	return s.Get(ctx, id)
}

// Delete removes a guardian and its links.
func (s *GuardianService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return lookupError(err, "guardian")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete guardian")
	}
	return nil
}

// LinkStudent attaches a student to the guardian. Relinking updates the relation.
func (s *GuardianService) LinkStudent(ctx context.Context, guardianID string, req GuardianLinkRequest) (*models.GuardianDetail, error) {
	req.Relation = strings.ToLower(strings.TrimSpace(req.Relation))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid guardian link payload")
	}
	if _, err := s.repo.FindByID(ctx, guardianID); err != nil {
		return nil, lookupError(err, "guardian")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		return nil, lookupError(err, "student")
	}
	if err := s.repo.Link(ctx, guardianID, req.StudentID, req.Relation, req.IsPrimary); err != nil {
		return nil, internalError(err, "failed to link student")
	}
	s.logger.Info("guardian linked", zap.String("guardian_id", guardianID), zap.String("student_id", req.StudentID))
	return s.Get(ctx, guardianID)
}

// UnlinkStudent detaches a student from the guardian.
func (s *GuardianService) UnlinkStudent(ctx context.Context, guardianID, studentID string) error {
	if _, err := s.repo.FindByID(ctx, guardianID); err != nil {
		return lookupError(err, "guardian")
	}
	if err := s.repo.Unlink(ctx, guardianID, studentID); err != nil {
		return internalError(err, "failed to unlink student")
	}
	return nil
}

func applyGuardianRequest(guardian *models.Guardian, req GuardianRequest) {
	guardian.FullName = req.FullName
	guardian.Phone = strPtr(req.Phone)
	guardian.Email = strPtr(strings.ToLower(req.Email))
	guardian.Occupation = strPtr(req.Occupation)
	guardian.Address = strPtr(req.Address)
	guardian.UserID = strPtr(req.UserID)
}
