package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type gradingScaleRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.GradingBand, error)
	FindByID(ctx context.Context, id string) (*models.GradingBand, error)
	Create(ctx context.Context, band *models.GradingBand) error
	Update(ctx context.Context, band *models.GradingBand) error
	Delete(ctx context.Context, id string) error
}

// GradingBandRequest is the payload for a grading band.
type GradingBandRequest struct {
	Grade       string  `json:"grade" validate:"required,max=8"`
	MinMark     float64 `json:"min_mark" validate:"gte=0,lte=100"`
	MaxMark     float64 `json:"max_mark" validate:"gte=0,lte=100,gtefield=MinMark"`
	GPAPoint    float64 `json:"gpa_point" validate:"gte=0,lte=5"`
	Description string  `json:"description" validate:"omitempty,max=255"`
	Active      *bool   `json:"active"`
}

// GradePreviewRequest asks for the grade a mark would receive.
type GradePreviewRequest struct {
	Marks    float64 `json:"marks" form:"marks" validate:"gte=0"`
	FullMark float64 `json:"full_mark" form:"full_mark" validate:"gt=0"`
	PassMark float64 `json:"pass_mark" form:"pass_mark" validate:"gte=0"`
}

// GradingScaleService maintains the grading bands and resolves grades.
type GradingScaleService struct {
	repo      gradingScaleRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradingScaleService constructs GradingScaleService.
func NewGradingScaleService(repo gradingScaleRepository, validate *validator.Validate, logger *zap.Logger) *GradingScaleService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingScaleService{repo: repo, validator: validate, logger: logger}
}

// List returns all bands, optionally only active ones.
func (s *GradingScaleService) List(ctx context.Context, activeOnly bool) ([]models.GradingBand, error) {
	bands, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, internalError(err, "failed to list grading bands")
	}
	return bands, nil
}

// Get returns one band.
func (s *GradingScaleService) Get(ctx context.Context, id string) (*models.GradingBand, error) {
	band, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "grading band")
	}
	return band, nil
}

// Create adds a band when it does not overlap an active band.
func (s *GradingScaleService) Create(ctx context.Context, req GradingBandRequest) (*models.GradingBand, error) {
	band := &models.GradingBand{Active: true}
	if err := s.prepare(ctx, band, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, band); err != nil {
		return nil, writeError(err, "failed to create grading band", "grade already exists")
	}
	s.logger.Info("grading band created", zap.String("grade", band.Grade), zap.Float64("min", band.MinMark), zap.Float64("max", band.MaxMark))
	return band, nil
}

// Update modifies a band, rechecking overlap against the other active bands.
func (s *GradingScaleService) Update(ctx context.Context, id string, req GradingBandRequest) (*models.GradingBand, error) {
	band, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.prepare(ctx, band, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, band); err != nil {
		return nil, writeError(err, "failed to update grading band", "grade already exists")
	}
	return band, nil
}

// Delete removes a band.
func (s *GradingScaleService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete grading band")
	}
	return nil
}

// Preview grades a mark against the active scale without storing anything.
func (s *GradingScaleService) Preview(ctx context.Context, req GradePreviewRequest) (models.GradeOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.GradeOutcome{}, validationError(err, "invalid grade preview request")
	}
	if req.PassMark > req.FullMark {
		return models.GradeOutcome{}, appErrors.Clone(appErrors.ErrValidation, "pass mark cannot exceed full mark")
	}
	bands, err := s.repo.List(ctx, true)
	if err != nil {
		return models.GradeOutcome{}, internalError(err, "failed to load grading scale")
	}
	return ResolveGrade(req.Marks, req.FullMark, req.PassMark, bands)
}

func (s *GradingScaleService) prepare(ctx context.Context, band *models.GradingBand, req GradingBandRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid grading band payload")
	}
	band.Grade = strings.ToUpper(strings.TrimSpace(req.Grade))
	band.MinMark = models.Round2(req.MinMark)
	band.MaxMark = models.Round2(req.MaxMark)
	band.GPAPoint = models.Round2(req.GPAPoint)
	band.Description = strPtr(req.Description)
	if req.Active != nil {
		band.Active = *req.Active
	}
	if !band.Active {
		return nil
	}
	existing, err := s.repo.List(ctx, true)
	if err != nil {
		return internalError(err, "failed to load grading scale")
	}
	if clash := findOverlap(*band, existing); clash != nil {
		return appErrors.WithDetails(appErrors.ErrOverlappingBand, map[string]interface{}{
			"grade":    clash.Grade,
			"min_mark": clash.MinMark,
			"max_mark": clash.MaxMark,
		})
	}
	return nil
}
