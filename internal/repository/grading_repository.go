package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sims-api/internal/models"
)

const gradingColumns = `id, grade, min_mark, max_mark, gpa_point, description, active, created_at, updated_at`

// GradingScaleRepository persists grading bands.
type GradingScaleRepository struct {
	db *sqlx.DB
}

// NewGradingScaleRepository constructs a GradingScaleRepository.
func NewGradingScaleRepository(db *sqlx.DB) *GradingScaleRepository {
	return &GradingScaleRepository{db: db}
}

// List returns bands ordered from the highest min mark down. activeOnly hides retired bands.
func (r *GradingScaleRepository) List(ctx context.Context, activeOnly bool) ([]models.GradingBand, error) {
	query := "SELECT " + gradingColumns + " FROM grading_scales"
	if activeOnly {
		query += " WHERE active = TRUE"
	}
	query += " ORDER BY min_mark DESC"
	var bands []models.GradingBand
	if err := r.db.SelectContext(ctx, &bands, query); err != nil {
		return nil, fmt.Errorf("list grading bands: %w", err)
	}
	return bands, nil
}

// FindByID returns one band.
func (r *GradingScaleRepository) FindByID(ctx context.Context, id string) (*models.GradingBand, error) {
	var band models.GradingBand
	if err := r.db.GetContext(ctx, &band, "SELECT "+gradingColumns+" FROM grading_scales WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grading band: %w", err)
	}
	return &band, nil
}

// Create inserts a band.
func (r *GradingScaleRepository) Create(ctx context.Context, band *models.GradingBand) error {
	if band.ID == "" {
		band.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	band.CreatedAt = now
	band.UpdatedAt = now
	const query = `INSERT INTO grading_scales (id, grade, min_mark, max_mark, gpa_point, description, active, created_at, updated_at)
VALUES (:id, :grade, :min_mark, :max_mark, :gpa_point, :description, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, band); err != nil {
		return fmt.Errorf("create grading band: %w", err)
	}
	return nil
}

// Update modifies a band.
func (r *GradingScaleRepository) Update(ctx context.Context, band *models.GradingBand) error {
	band.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grading_scales SET grade = :grade, min_mark = :min_mark, max_mark = :max_mark, gpa_point = :gpa_point,
description = :description, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, band); err != nil {
		return fmt.Errorf("update grading band: %w", err)
	}
	return nil
}

// Delete removes a band.
func (r *GradingScaleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM grading_scales WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete grading band: %w", err)
	}
	return nil
}
