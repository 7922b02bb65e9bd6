package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sims-api/internal/models"
)

const studentSelect = `SELECT s.id, s.user_id, s.admission_no, s.roll_no, s.full_name, s.gender, s.birth_date, s.address, s.phone,
        s.class_id, s.admission_date, s.active, s.created_at, s.updated_at, c.name AS class_name
        FROM students s LEFT JOIN classes c ON c.id = s.class_id`

// StudentRepository handles persistence for students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students with filters and total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var cond conditions
	if filter.ClassID != "" {
		cond.add("s.class_id = $%d", filter.ClassID)
	}
	if filter.Active != nil {
		cond.add("s.active = $%d", *filter.Active)
	}
	if filter.Search != "" {
		cond.add("(LOWER(s.full_name) LIKE $%[1]d OR LOWER(s.admission_no) LIKE $%[1]d)", likePattern(filter.Search))
	}
	sorts := map[string]string{
		"full_name":    "s.full_name",
		"admission_no": "s.admission_no",
		"roll_no":      "s.roll_no",
		"created_at":   "s.created_at",
	}
	query := studentSelect + cond.where() + pageClause(filter.SortBy, filter.SortOrder, sorts, "created_at", filter.Page, filter.PageSize)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students s"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student by id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, studentSelect+" WHERE s.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// FindByUserID returns the student linked to a login.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, studentSelect+" WHERE s.user_id = $1", userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by user: %w", err)
	}
	return &student, nil
}

// ListActiveByClass returns every active student of a class ordered by roll number.
func (r *StudentRepository) ListActiveByClass(ctx context.Context, classID string) ([]models.StudentDetail, error) {
	var students []models.StudentDetail
	query := studentSelect + " WHERE s.class_id = $1 AND s.active = TRUE ORDER BY s.roll_no, s.full_name"
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}

// FindByIDs loads several students at once.
func (r *StudentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.StudentDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, studentSelect+" WHERE s.id = ANY($1)", pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find students by ids: %w", err)
	}
	return students, nil
}

// ExistsByAdmissionNo checks admission number uniqueness.
func (r *StudentRepository) ExistsByAdmissionNo(ctx context.Context, admissionNo, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM students WHERE admission_no = $1 AND ($2 = '' OR id::text <> $2))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, admissionNo, excludeID); err != nil {
		return false, fmt.Errorf("check admission number: %w", err)
	}
	return exists, nil
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, user_id, admission_no, roll_no, full_name, gender, birth_date, address, phone, class_id, admission_date, active, created_at, updated_at)
VALUES (:id, :user_id, :admission_no, :roll_no, :full_name, :gender, :birth_date, :address, :phone, :class_id, :admission_date, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return wrapWrite("create student", err)
	}
	return nil
}

// Update modifies a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET user_id = :user_id, admission_no = :admission_no, roll_no = :roll_no, full_name = :full_name, gender = :gender,
birth_date = :birth_date, address = :address, phone = :phone, class_id = :class_id, admission_date = :admission_date, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return wrapWrite("update student", err)
	}
	return nil
}

// Deactivate marks the student inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}
