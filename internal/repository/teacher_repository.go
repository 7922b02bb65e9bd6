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

const teacherSelect = `SELECT t.id, t.user_id, t.employee_no, t.full_name, t.email, t.phone, t.department_id, t.designation, t.joining_date,
        t.active, t.created_at, t.updated_at, d.name AS department_name
        FROM teachers t LEFT JOIN departments d ON d.id = t.department_id`

// TeacherRepository handles persistence for teachers.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers with filters and total count.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	var cond conditions
	if filter.DepartmentID != "" {
		cond.add("t.department_id = $%d", filter.DepartmentID)
	}
	if filter.Active != nil {
		cond.add("t.active = $%d", *filter.Active)
	}
	if filter.Search != "" {
		cond.add("(LOWER(t.full_name) LIKE $%[1]d OR LOWER(t.employee_no) LIKE $%[1]d OR LOWER(COALESCE(t.email, '')) LIKE $%[1]d)", likePattern(filter.Search))
	}
	sorts := map[string]string{"full_name": "t.full_name", "employee_no": "t.employee_no", "created_at": "t.created_at"}
	query := teacherSelect + cond.where() + pageClause(filter.SortBy, filter.SortOrder, sorts, "created_at", filter.Page, filter.PageSize)

	var teachers []models.TeacherDetail
	if err := r.db.SelectContext(ctx, &teachers, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM teachers t"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID returns a teacher by id.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	var teacher models.TeacherDetail
	if err := r.db.GetContext(ctx, &teacher, teacherSelect+" WHERE t.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher: %w", err)
	}
	return &teacher, nil
}

// FindByUserID returns the teacher profile of a login.
func (r *TeacherRepository) FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error) {
	var teacher models.TeacherDetail
	if err := r.db.GetContext(ctx, &teacher, teacherSelect+" WHERE t.user_id = $1", userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher by user: %w", err)
	}
	return &teacher, nil
}

// ExistsByEmployeeNo checks employee number uniqueness.
func (r *TeacherRepository) ExistsByEmployeeNo(ctx context.Context, employeeNo, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM teachers WHERE employee_no = $1 AND ($2 = '' OR id::text <> $2))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, employeeNo, excludeID); err != nil {
		return false, fmt.Errorf("check employee number: %w", err)
	}
	return exists, nil
}

// Create inserts a new teacher.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now
	const query = `INSERT INTO teachers (id, user_id, employee_no, full_name, email, phone, department_id, designation, joining_date, active, created_at, updated_at)
VALUES (:id, :user_id, :employee_no, :full_name, :email, :phone, :department_id, :designation, :joining_date, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return wrapWrite("create teacher", err)
	}
	return nil
}

// Update modifies a teacher.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET user_id = :user_id, employee_no = :employee_no, full_name = :full_name, email = :email, phone = :phone,
department_id = :department_id, designation = :designation, joining_date = :joining_date, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return wrapWrite("update teacher", err)
	}
	return nil
}

// Deactivate marks a teacher inactive.
func (r *TeacherRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE teachers SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate teacher: %w", err)
	}
	return nil
}
