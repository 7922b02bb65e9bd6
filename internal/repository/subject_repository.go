package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/pkg/database"
)

const subjectColumns = `id, code, name, class_id, teacher_id, full_mark, pass_mark, created_at, updated_at`

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects with filters and total count.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	var cond conditions
	if filter.ClassID != "" {
		cond.add("class_id = $%d", filter.ClassID)
	}
	if filter.TeacherID != "" {
		cond.add("teacher_id = $%d", filter.TeacherID)
	}
	if filter.Search != "" {
		cond.add("(LOWER(name) LIKE $%[1]d OR LOWER(code) LIKE $%[1]d)", likePattern(filter.Search))
	}
	sorts := map[string]string{"code": "code", "name": "name", "created_at": "created_at"}
	query := "SELECT " + subjectColumns + " FROM subjects" + cond.where() +
		pageClause(filter.SortBy, filter.SortOrder, sorts, "created_at", filter.Page, filter.PageSize)

	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM subjects"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// ListByClass returns all subjects of a class ordered by code.
func (r *SubjectRepository) ListByClass(ctx context.Context, classID string) ([]models.Subject, error) {
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, "SELECT "+subjectColumns+" FROM subjects WHERE class_id = $1 ORDER BY code", classID); err != nil {
		return nil, fmt.Errorf("list class subjects: %w", err)
	}
	return subjects, nil
}

// FindByID returns a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, "SELECT "+subjectColumns+" FROM subjects WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// ExistsByCode checks subject code uniqueness.
func (r *SubjectRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM subjects WHERE LOWER(code) = LOWER($1) AND ($2 = '' OR id::text <> $2))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code, excludeID); err != nil {
		return false, fmt.Errorf("check subject code: %w", err)
	}
	return exists, nil
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now
	const query = `INSERT INTO subjects (id, code, name, class_id, teacher_id, full_mark, pass_mark, created_at, updated_at)
VALUES (:id, :code, :name, :class_id, :teacher_id, :full_mark, :pass_mark, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return wrapWrite("create subject", err)
	}
	return nil
}

// subjectUpdateQuery keeps class and mark bounds fixed once any result references the subject.
const subjectUpdateQuery = `UPDATE subjects SET code = :code, name = :name, class_id = :class_id, teacher_id = :teacher_id, full_mark = :full_mark,
pass_mark = :pass_mark, updated_at = :updated_at
WHERE id = :id AND ((class_id = :class_id AND full_mark = :full_mark AND pass_mark = :pass_mark)
    OR NOT EXISTS (SELECT 1 FROM results WHERE subject_id = :id))`

// Update modifies a subject. It returns ErrLocked when results pin the class or mark bounds.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, subjectUpdateQuery, subject)
	if err != nil {
		return wrapWrite("update subject", err)
	}
	return lockedUnlessOne(res, "update subject")
}

// Delete removes a subject and its results from unpublished exams. It returns ErrLocked when a
// published exam holds results for the subject.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, "delete subject", func(tx *sqlx.Tx) error {
		const dropDrafts = `DELETE FROM results r USING exams e
WHERE r.exam_id = e.id AND r.subject_id = $1 AND e.is_result_published = FALSE`
		if _, err := tx.ExecContext(ctx, dropDrafts, id); err != nil {
			return fmt.Errorf("delete unpublished subject results: %w", err)
		}
		const query = `DELETE FROM subjects WHERE id = $1 AND NOT EXISTS (
    SELECT 1 FROM results r JOIN exams e ON e.id = r.exam_id
    WHERE r.subject_id = $1 AND e.is_result_published)`
		res, err := tx.ExecContext(ctx, query, id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("delete subject: %w", ErrLocked)
			}
			return fmt.Errorf("delete subject: %w", err)
		}
		return lockedUnlessOne(res, "delete subject")
	})
}
