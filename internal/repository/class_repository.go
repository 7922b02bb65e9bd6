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

const classSelect = `SELECT c.id, c.name, c.section, c.grade_level, c.capacity, c.academic_year, c.class_teacher_id, c.created_at, c.updated_at,
        t.full_name AS class_teacher_name, (SELECT COUNT(*) FROM students s WHERE s.class_id = c.id AND s.active) AS student_count
        FROM classes c LEFT JOIN teachers t ON t.id = c.class_teacher_id`

// ClassRepository handles persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes with filters and total count.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	var cond conditions
	if filter.GradeLevel != nil {
		cond.add("c.grade_level = $%d", *filter.GradeLevel)
	}
	if filter.AcademicYear != "" {
		cond.add("c.academic_year = $%d", filter.AcademicYear)
	}
	if filter.TeacherID != "" {
		cond.add("(c.class_teacher_id = $%[1]d OR c.id IN (SELECT class_id FROM subjects WHERE teacher_id = $%[1]d))", filter.TeacherID)
	}
	if filter.Search != "" {
		cond.add("LOWER(c.name || ' ' || c.section) LIKE $%d", likePattern(filter.Search))
	}
	sorts := map[string]string{"name": "c.name", "grade_level": "c.grade_level", "academic_year": "c.academic_year", "created_at": "c.created_at"}
	query := classSelect + cond.where() + pageClause(filter.SortBy, filter.SortOrder, sorts, "created_at", filter.Page, filter.PageSize)

	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classes c"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// ListByTeacher returns the classes a teacher leads or teaches a subject in.
func (r *ClassRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.ClassDetail, error) {
	query := classSelect + ` WHERE c.class_teacher_id = $1 OR c.id IN (SELECT class_id FROM subjects WHERE teacher_id = $1) ORDER BY c.grade_level, c.name, c.section`
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	var class models.ClassDetail
	if err := r.db.GetContext(ctx, &class, classSelect+" WHERE c.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}

// ExistsByNameSection checks the (name, section, academic_year) uniqueness.
func (r *ClassRepository) ExistsByNameSection(ctx context.Context, name, section, academicYear, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM classes WHERE LOWER(name) = LOWER($1) AND LOWER(section) = LOWER($2) AND academic_year = $3 AND ($4 = '' OR id::text <> $4))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, section, academicYear, excludeID); err != nil {
		return false, fmt.Errorf("check class name: %w", err)
	}
	return exists, nil
}

// Create inserts a class.
func (r *ClassRepository) Create(ctx context.Context, class *models.ClassRoom) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, section, grade_level, capacity, academic_year, class_teacher_id, created_at, updated_at)
VALUES (:id, :name, :section, :grade_level, :capacity, :academic_year, :class_teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return wrapWrite("create class", err)
	}
	return nil
}

// Update modifies a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.ClassRoom) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, section = :section, grade_level = :grade_level, capacity = :capacity, academic_year = :academic_year,
class_teacher_id = :class_teacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return wrapWrite("update class", err)
	}
	return nil
}

// Delete removes a class with its subjects, exams and their unpublished results. It returns
// ErrLocked when a published exam or a published result belongs to the class.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM classes WHERE id = $1
AND NOT EXISTS (SELECT 1 FROM exams e WHERE e.class_id = $1 AND e.is_result_published)
AND NOT EXISTS (
    SELECT 1 FROM results r
    JOIN subjects sub ON sub.id = r.subject_id
    JOIN exams e ON e.id = r.exam_id
    WHERE sub.class_id = $1 AND e.is_result_published)`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("delete class: %w", ErrLocked)
		}
		return fmt.Errorf("delete class: %w", err)
	}
	return lockedUnlessOne(res, "delete class")
}
