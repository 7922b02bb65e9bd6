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

const guardianColumns = `id, user_id, full_name, phone, email, occupation, address, created_at, updated_at`

const guardianLinkSelect = `SELECT gs.guardian_id, g.full_name AS guardian_name, gs.student_id, s.full_name AS student_name, s.class_id,
        gs.relation, gs.is_primary, g.phone, g.email, g.user_id
        FROM guardian_students gs JOIN guardians g ON g.id = gs.guardian_id JOIN students s ON s.id = gs.student_id`

// GuardianRepository handles persistence for guardians and their student links.
type GuardianRepository struct {
	db *sqlx.DB
}

// NewGuardianRepository constructs a GuardianRepository.
func NewGuardianRepository(db *sqlx.DB) *GuardianRepository {
	return &GuardianRepository{db: db}
}

// List returns guardians with filters and total count.
func (r *GuardianRepository) List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, int, error) {
	var cond conditions
	if filter.StudentID != "" {
		cond.add("id IN (SELECT guardian_id FROM guardian_students WHERE student_id = $%d)", filter.StudentID)
	}
	if filter.Search != "" {
		cond.add("(LOWER(full_name) LIKE $%[1]d OR LOWER(COALESCE(phone, '')) LIKE $%[1]d OR LOWER(COALESCE(email, '')) LIKE $%[1]d)", likePattern(filter.Search))
	}
	sorts := map[string]string{"full_name": "full_name", "created_at": "created_at"}
	query := "SELECT " + guardianColumns + " FROM guardians" + cond.where() +
		pageClause(filter.SortBy, filter.SortOrder, sorts, "created_at", filter.Page, filter.PageSize)

	var guardians []models.Guardian
	if err := r.db.SelectContext(ctx, &guardians, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list guardians: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM guardians"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count guardians: %w", err)
	}
	return guardians, total, nil
}

// FindByID returns a guardian by id.
func (r *GuardianRepository) FindByID(ctx context.Context, id string) (*models.Guardian, error) {
	var guardian models.Guardian
	if err := r.db.GetContext(ctx, &guardian, "SELECT "+guardianColumns+" FROM guardians WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find guardian: %w", err)
	}
	return &guardian, nil
}

// FindByUserID returns the guardian profile of a login.
func (r *GuardianRepository) FindByUserID(ctx context.Context, userID string) (*models.Guardian, error) {
	var guardian models.Guardian
	if err := r.db.GetContext(ctx, &guardian, "SELECT "+guardianColumns+" FROM guardians WHERE user_id = $1", userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find guardian by user: %w", err)
	}
	return &guardian, nil
}

// Create inserts a guardian.
func (r *GuardianRepository) Create(ctx context.Context, guardian *models.Guardian) error {
	if guardian.ID == "" {
		guardian.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	guardian.CreatedAt = now
	guardian.UpdatedAt = now
	const query = `INSERT INTO guardians (id, user_id, full_name, phone, email, occupation, address, created_at, updated_at)
VALUES (:id, :user_id, :full_name, :phone, :email, :occupation, :address, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, guardian); err != nil {
		return wrapWrite("create guardian", err)
	}
	return nil
}

// Update modifies a guardian.
func (r *GuardianRepository) Update(ctx context.Context, guardian *models.Guardian) error {
	guardian.UpdatedAt = time.Now().UTC()
	const query = `UPDATE guardians SET user_id = :user_id, full_name = :full_name, phone = :phone, email = :email, occupation = :occupation,
address = :address, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, guardian); err != nil {
		return wrapWrite("update guardian", err)
	}
	return nil
}

// Delete removes a guardian and its links.
func (r *GuardianRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM guardians WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete guardian: %w", err)
	}
	return nil
}

// Link attaches a student to a guardian, updating the relation when already linked.
func (r *GuardianRepository) Link(ctx context.Context, guardianID, studentID, relation string, primary bool) error {
	const query = `INSERT INTO guardian_students (guardian_id, student_id, relation, is_primary) VALUES ($1, $2, $3, $4)
ON CONFLICT (guardian_id, student_id) DO UPDATE SET relation = EXCLUDED.relation, is_primary = EXCLUDED.is_primary`
	if _, err := r.db.ExecContext(ctx, query, guardianID, studentID, relation, primary); err != nil {
		return fmt.Errorf("link guardian student: %w", err)
	}
	return nil
}

// Unlink detaches a student from a guardian.
func (r *GuardianRepository) Unlink(ctx context.Context, guardianID, studentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM guardian_students WHERE guardian_id = $1 AND student_id = $2`, guardianID, studentID); err != nil {
		return fmt.Errorf("unlink guardian student: %w", err)
	}
	return nil
}

// ListStudents returns the students linked to a guardian.
func (r *GuardianRepository) ListStudents(ctx context.Context, guardianID string) ([]models.GuardianLink, error) {
	var links []models.GuardianLink
	if err := r.db.SelectContext(ctx, &links, guardianLinkSelect+" WHERE gs.guardian_id = $1 ORDER BY s.full_name", guardianID); err != nil {
		return nil, fmt.Errorf("list guardian students: %w", err)
	}
	return links, nil
}

// ListGuardians returns the guardians linked to a student, primary first.
func (r *GuardianRepository) ListGuardians(ctx context.Context, studentID string) ([]models.GuardianLink, error) {
	var links []models.GuardianLink
	if err := r.db.SelectContext(ctx, &links, guardianLinkSelect+" WHERE gs.student_id = $1 ORDER BY gs.is_primary DESC, g.full_name", studentID); err != nil {
		return nil, fmt.Errorf("list student guardians: %w", err)
	}
	return links, nil
}
