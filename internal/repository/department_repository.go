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

const departmentSelect = `SELECT d.id, d.code, d.name, d.description, d.head_teacher_id, d.created_at, d.updated_at,
        h.full_name AS head_teacher_name, (SELECT COUNT(*) FROM teachers t WHERE t.department_id = d.id AND t.active) AS teacher_count
        FROM departments d LEFT JOIN teachers h ON h.id = d.head_teacher_id`

// DepartmentRepository handles persistence for departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs a DepartmentRepository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// List returns departments with total count.
func (r *DepartmentRepository) List(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, int, error) {
	var cond conditions
	if filter.Search != "" {
		cond.add("(LOWER(d.name) LIKE $%[1]d OR LOWER(d.code) LIKE $%[1]d)", likePattern(filter.Search))
	}
	sorts := map[string]string{"code": "d.code", "name": "d.name", "created_at": "d.created_at"}
	query := departmentSelect + cond.where() + pageClause(filter.SortBy, filter.SortOrder, sorts, "created_at", filter.Page, filter.PageSize)

	var departments []models.DepartmentDetail
	if err := r.db.SelectContext(ctx, &departments, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list departments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM departments d"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count departments: %w", err)
	}
	return departments, total, nil
}

// FindByID returns a department by id.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	var department models.DepartmentDetail
	if err := r.db.GetContext(ctx, &department, departmentSelect+" WHERE d.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find department: %w", err)
	}
	return &department, nil
}

// ExistsByCode checks department code uniqueness.
func (r *DepartmentRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM departments WHERE LOWER(code) = LOWER($1) AND ($2 = '' OR id::text <> $2))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code, excludeID); err != nil {
		return false, fmt.Errorf("check department code: %w", err)
	}
	return exists, nil
}

// Create inserts a department.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	department.CreatedAt = now
	department.UpdatedAt = now
	const query = `INSERT INTO departments (id, code, name, description, head_teacher_id, created_at, updated_at)
VALUES (:id, :code, :name, :description, :head_teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return wrapWrite("create department", err)
	}
	return nil
}

// Update modifies a department.
func (r *DepartmentRepository) Update(ctx context.Context, department *models.Department) error {
	department.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET code = :code, name = :name, description = :description, head_teacher_id = :head_teacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return wrapWrite("update department", err)
	}
	return nil
}

// Delete removes a department.
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	return nil
}
