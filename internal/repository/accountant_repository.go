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

const accountantColumns = `id, user_id, full_name, phone, max_waiver_amount, max_waiver_percentage, active, created_at, updated_at`

// AccountantRepository handles persistence for accountants.
type AccountantRepository struct {
	db *sqlx.DB
}

// NewAccountantRepository constructs an AccountantRepository.
func NewAccountantRepository(db *sqlx.DB) *AccountantRepository {
	return &AccountantRepository{db: db}
}

// List returns accountants with filters and total count.
func (r *AccountantRepository) List(ctx context.Context, filter models.AccountantFilter) ([]models.Accountant, int, error) {
	var cond conditions
	if filter.Active != nil {
		cond.add("active = $%d", *filter.Active)
	}
	if filter.Search != "" {
		cond.add("LOWER(full_name) LIKE $%d", likePattern(filter.Search))
	}
	sorts := map[string]string{"full_name": "full_name", "created_at": "created_at"}
	query := "SELECT " + accountantColumns + " FROM accountants" + cond.where() +
		pageClause(filter.SortBy, filter.SortOrder, sorts, "created_at", filter.Page, filter.PageSize)

	var accountants []models.Accountant
	if err := r.db.SelectContext(ctx, &accountants, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list accountants: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM accountants"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count accountants: %w", err)
	}
	return accountants, total, nil
}

// FindByID returns an accountant by id.
func (r *AccountantRepository) FindByID(ctx context.Context, id string) (*models.Accountant, error) {
	var accountant models.Accountant
	if err := r.db.GetContext(ctx, &accountant, "SELECT "+accountantColumns+" FROM accountants WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find accountant: %w", err)
	}
	return &accountant, nil
}

// FindByUserID returns the accountant profile of a login.
func (r *AccountantRepository) FindByUserID(ctx context.Context, userID string) (*models.Accountant, error) {
	var accountant models.Accountant
	if err := r.db.GetContext(ctx, &accountant, "SELECT "+accountantColumns+" FROM accountants WHERE user_id = $1", userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find accountant by user: %w", err)
	}
	return &accountant, nil
}

// Create inserts an accountant.
func (r *AccountantRepository) Create(ctx context.Context, accountant *models.Accountant) error {
	if accountant.ID == "" {
		accountant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	accountant.CreatedAt = now
	accountant.UpdatedAt = now
	const query = `INSERT INTO accountants (id, user_id, full_name, phone, max_waiver_amount, max_waiver_percentage, active, created_at, updated_at)
VALUES (:id, :user_id, :full_name, :phone, :max_waiver_amount, :max_waiver_percentage, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, accountant); err != nil {
		return wrapWrite("create accountant", err)
	}
	return nil
}

// Update modifies an accountant.
func (r *AccountantRepository) Update(ctx context.Context, accountant *models.Accountant) error {
	accountant.UpdatedAt = time.Now().UTC()
	const query = `UPDATE accountants SET user_id = :user_id, full_name = :full_name, phone = :phone, max_waiver_amount = :max_waiver_amount,
max_waiver_percentage = :max_waiver_percentage, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, accountant); err != nil {
		return wrapWrite("update accountant", err)
	}
	return nil
}

// Delete removes an accountant.
func (r *AccountantRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM accountants WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete accountant: %w", err)
	}
	return nil
}
