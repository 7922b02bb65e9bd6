package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
)

type accountantRepository interface {
	List(ctx context.Context, filter models.AccountantFilter) ([]models.Accountant, int, error)
	FindByID(ctx context.Context, id string) (*models.Accountant, error)
	Create(ctx context.Context, accountant *models.Accountant) error
	Update(ctx context.Context, accountant *models.Accountant) error
	Delete(ctx context.Context, id string) error
}

// AccountantRequest is the payload for finance staff records.
type AccountantRequest struct {
	FullName            string  `json:"full_name" validate:"required,max=255"`
	Phone               string  `json:"phone" validate:"omitempty,max=32"`
	UserID              string  `json:"user_id" validate:"omitempty,uuid"`
	MaxWaiverAmount     float64 `json:"max_waiver_amount" validate:"gte=0"`
	MaxWaiverPercentage float64 `json:"max_waiver_percentage" validate:"gte=0,lte=100"`
	Active              *bool   `json:"active"`
}

// AccountantService manages finance staff and their waiver limits.
type AccountantService struct {
	repo      accountantRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccountantService constructs AccountantService.
func NewAccountantService(repo accountantRepository, validate *validator.Validate, logger *zap.Logger) *AccountantService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountantService{repo: repo, validator: validate, logger: logger}
}

func (s *AccountantService) List(ctx context.Context, filter models.AccountantFilter) ([]models.Accountant, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list accountants")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *AccountantService) Get(ctx context.Context, id string) (*models.Accountant, error) {
	accountant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "accountant")
	}
	return accountant, nil
}

func (s *AccountantService) Create(ctx context.Context, req AccountantRequest) (*models.Accountant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid accountant payload")
	}
	accountant := &models.Accountant{Active: true}
	applyAccountantRequest(accountant, req)
	if err := s.repo.Create(ctx, accountant); err != nil {
		return nil, writeError(err, "failed to create accountant", "user already linked to an accountant")
	}
	return accountant, nil
}

func (s *AccountantService) Update(ctx context.Context, id string, req AccountantRequest) (*models.Accountant, error) {
	accountant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid accountant payload")
	}
	applyAccountantRequest(accountant, req)
	if err := s.repo.Update(ctx, accountant); err != nil {
		return nil, writeError(err, "failed to update accountant", "user already linked to an accountant")
	}
	return accountant, nil
}

func (s *AccountantService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete accountant")
	}
	return nil
}

func applyAccountantRequest(accountant *models.Accountant, req AccountantRequest) {
	accountant.FullName = req.FullName
	accountant.Phone = strPtr(req.Phone)
	accountant.UserID = strPtr(req.UserID)
	accountant.MaxWaiverAmount = models.Round2(req.MaxWaiverAmount)
	accountant.MaxWaiverPercentage = models.Round2(req.MaxWaiverPercentage)
	if req.Active != nil {
		accountant.Active = *req.Active
	}
}
