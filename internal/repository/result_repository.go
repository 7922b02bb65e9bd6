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

const resultSelect = `SELECT r.id, r.student_id, r.exam_id, r.subject_id, r.marks_obtained, r.percentage, r.grade, r.gpa_point, r.is_passed,
        r.remarks, r.entered_by, r.created_at, r.updated_at, s.full_name AS student_name, sub.name AS subject_name, e.name AS exam_name,
        sub.full_mark, sub.pass_mark, e.is_result_published
        FROM results r
        JOIN students s ON s.id = r.student_id
        JOIN subjects sub ON sub.id = r.subject_id
        JOIN exams e ON e.id = r.exam_id`

const unpublishedGuard = `NOT EXISTS (SELECT 1 FROM exams e WHERE e.id = results.exam_id AND e.is_result_published)`

// ResultRepository handles persistence for exam results.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs a ResultRepository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// List returns results with filters and total count.
func (r *ResultRepository) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultDetail, int, error) {
	var cond conditions
	if filter.ExamID != "" {
		cond.add("r.exam_id = $%d", filter.ExamID)
	}
	if filter.StudentID != "" {
		cond.add("r.student_id = $%d", filter.StudentID)
	}
	if filter.SubjectID != "" {
		cond.add("r.subject_id = $%d", filter.SubjectID)
	}
	if filter.PublishedOnly {
		cond.raw("e.is_result_published = TRUE")
	}
	sorts := map[string]string{"marks_obtained": "r.marks_obtained", "student_name": "s.full_name", "subject_name": "sub.name", "created_at": "r.created_at"}
	query := resultSelect + cond.where() + pageClause(filter.SortBy, filter.SortOrder, sorts, "created_at", filter.Page, filter.PageSize)

	var results []models.ResultDetail
	if err := r.db.SelectContext(ctx, &results, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	var total int
	countQuery := "SELECT COUNT(*) FROM results r JOIN exams e ON e.id = r.exam_id" + cond.where()
	if err := r.db.GetContext(ctx, &total, countQuery, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}
	return results, total, nil
}

// FindByID returns one result with its context.
func (r *ResultRepository) FindByID(ctx context.Context, id string) (*models.ResultDetail, error) {
	var result models.ResultDetail
	if err := r.db.GetContext(ctx, &result, resultSelect+" WHERE r.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find result: %w", err)
	}
	return &result, nil
}

// ListByStudentExam returns a student's results for one exam ordered by subject code.
func (r *ResultRepository) ListByStudentExam(ctx context.Context, studentID, examID string) ([]models.ResultDetail, error) {
	var results []models.ResultDetail
	query := resultSelect + " WHERE r.student_id = $1 AND r.exam_id = $2 ORDER BY sub.code"
	if err := r.db.SelectContext(ctx, &results, query, studentID, examID); err != nil {
		return nil, fmt.Errorf("list student exam results: %w", err)
	}
	return results, nil
}

// LatestPublished returns a student's most recent published results.
func (r *ResultRepository) LatestPublished(ctx context.Context, studentID string, limit int) ([]models.ResultDetail, error) {
	if limit <= 0 {
		limit = 10
	}
	var results []models.ResultDetail
	query := resultSelect + " WHERE r.student_id = $1 AND e.is_result_published = TRUE ORDER BY e.published_at DESC, sub.code LIMIT $2"
	if err := r.db.SelectContext(ctx, &results, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list latest published results: %w", err)
	}
	return results, nil
}

// BulkUpsert writes all results of an exam in one transaction keyed by (student, exam, subject).
// The exam row is locked and ErrStaleWrite is returned if it was published concurrently.
func (r *ResultRepository) BulkUpsert(ctx context.Context, examID string, results []models.Result) error {
	return database.WithTx(ctx, r.db, "bulk results", func(tx *sqlx.Tx) error {
		var published bool
		if err := tx.GetContext(ctx, &published, `SELECT is_result_published FROM exams WHERE id = $1 FOR UPDATE`, examID); err != nil {
			return fmt.Errorf("lock exam: %w", err)
		}
		if published {
			return fmt.Errorf("bulk results: %w", ErrStaleWrite)
		}

		const query = `INSERT INTO results (id, student_id, exam_id, subject_id, marks_obtained, percentage, grade, gpa_point, is_passed, remarks, entered_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
ON CONFLICT (student_id, exam_id, subject_id)
DO UPDATE SET marks_obtained = EXCLUDED.marks_obtained, percentage = EXCLUDED.percentage, grade = EXCLUDED.grade, gpa_point = EXCLUDED.gpa_point,
is_passed = EXCLUDED.is_passed, remarks = EXCLUDED.remarks, entered_by = EXCLUDED.entered_by, updated_at = EXCLUDED.updated_at
RETURNING id`
		now := time.Now().UTC()
		for i := range results {
			res := &results[i]
			if res.ID == "" {
				res.ID = uuid.NewString()
			}
			res.ExamID = examID
			if err := tx.QueryRowxContext(ctx, query, res.ID, res.StudentID, examID, res.SubjectID, res.MarksObtained, res.Percentage,
				res.Grade, res.GPAPoint, res.IsPassed, res.Remarks, res.EnteredBy, now).Scan(&res.ID); err != nil {
				return fmt.Errorf("upsert result: %w", err)
			}
			res.UpdatedAt = now
		}
		return nil
	})
}

// Update rewrites the marks of a result while its exam is unpublished.
func (r *ResultRepository) Update(ctx context.Context, result *models.Result) error {
	result.UpdatedAt = time.Now().UTC()
	query := `UPDATE results SET marks_obtained = :marks_obtained, percentage = :percentage, grade = :grade, gpa_point = :gpa_point,
is_passed = :is_passed, remarks = :remarks, entered_by = :entered_by, updated_at = :updated_at WHERE id = :id AND ` + unpublishedGuard
	res, err := r.db.NamedExecContext(ctx, query, result)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	return expectOneRow(res, "update result")
}

// Delete removes a result while its exam is unpublished.
func (r *ResultRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM results WHERE id = $1 AND `+unpublishedGuard, id)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	return expectOneRow(res, "delete result")
}
