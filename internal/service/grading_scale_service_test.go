package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type memBandRepo struct {
	bands []models.GradingBand
}

func (m *memBandRepo) List(ctx context.Context, activeOnly bool) ([]models.GradingBand, error) {
	var out []models.GradingBand
	for _, b := range m.bands {
		if !activeOnly || b.Active {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBandRepo) FindByID(ctx context.Context, id string) (*models.GradingBand, error) {
	for _, b := range m.bands {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memBandRepo) Create(ctx context.Context, band *models.GradingBand) error {
	band.ID = band.Grade
	m.bands = append(m.bands, *band)
	return nil
}

func (m *memBandRepo) Update(ctx context.Context, band *models.GradingBand) error {
	for i := range m.bands {
		if m.bands[i].ID == band.ID {
			m.bands[i] = *band
		}
	}
	return nil
}

func (m *memBandRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func TestGradingScaleServiceRejectsOverlaps(t *testing.T) {
	repo := &memBandRepo{bands: []models.GradingBand{{ID: "b", Grade: "B", MinMark: 60, MaxMark: 79, Active: true}}}
	svc := NewGradingScaleService(repo, nil, nil)
	ctx := context.Background()

	cases := map[string]GradingBandRequest{
		"min inside":    {Grade: "X", MinMark: 70, MaxMark: 85},
		"max inside":    {Grade: "X", MinMark: 50, MaxMark: 65},
		"swallows band": {Grade: "X", MinMark: 55, MaxMark: 85},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, req)
			assert.True(t, errors.Is(err, appErrors.ErrOverlappingBand))
		})
	}

	band, err := svc.Create(ctx, GradingBandRequest{Grade: "a", MinMark: 80, MaxMark: 100, GPAPoint: 4})
	require.NoError(t, err)
	assert.Equal(t, "A", band.Grade)

	inactive := false
	_, err = svc.Create(ctx, GradingBandRequest{Grade: "OLD", MinMark: 60, MaxMark: 70, Active: &inactive})
	assert.NoError(t, err)
}

func TestGradingScaleServiceUpdateIgnoresItself(t *testing.T) {
	repo := &memBandRepo{bands: []models.GradingBand{{ID: "b", Grade: "B", MinMark: 60, MaxMark: 79, Active: true}}}
	svc := NewGradingScaleService(repo, nil, nil)

	band, err := svc.Update(context.Background(), "b", GradingBandRequest{Grade: "B", MinMark: 55, MaxMark: 79, GPAPoint: 3})
	require.NoError(t, err)
	assert.Equal(t, 55.0, band.MinMark)

	_, err = svc.Create(context.Background(), GradingBandRequest{Grade: "Z", MinMark: 90, MaxMark: 80})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestGradingScaleServicePreview(t *testing.T) {
	svc := NewGradingScaleService(&memBandRepo{bands: standardBands}, nil, nil)

	outcome, err := svc.Preview(context.Background(), GradePreviewRequest{Marks: 75, FullMark: 100, PassMark: 40})
	require.NoError(t, err)
	assert.Equal(t, "B", outcome.Grade)

	outcome, err = svc.Preview(context.Background(), GradePreviewRequest{Marks: 35, FullMark: 100, PassMark: 40})
	require.NoError(t, err)
	assert.Equal(t, "F", outcome.Grade)
	assert.False(t, outcome.IsPassed)
}
