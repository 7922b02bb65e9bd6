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

const examSelect = `SELECT e.id, e.name, e.class_id, e.academic_year, e.start_date, e.end_date, e.is_result_published, e.published_at,
        e.published_by, e.created_at, e.updated_at, (c.name || ' ' || c.section) AS class_name
        FROM exams e JOIN classes c ON c.id = e.class_id`

// ExamRepository handles persistence for exams and the class-wide result aggregates.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// List returns exams with filters and total count.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.ExamDetail, int, error) {
	var cond conditions
	if filter.ClassID != "" {
		cond.add("e.class_id = $%d", filter.ClassID)
	}
	if filter.AcademicYear != "" {
		cond.add("e.academic_year = $%d", filter.AcademicYear)
	}
	if filter.Published != nil {
		cond.add("e.is_result_published = $%d", *filter.Published)
	}
	if filter.Search != "" {
		cond.add("LOWER(e.name) LIKE $%d", likePattern(filter.Search))
	}
	sorts := map[string]string{"name": "e.name", "start_date": "e.start_date", "end_date": "e.end_date", "created_at": "e.created_at"}
	query := examSelect + cond.where() + pageClause(filter.SortBy, filter.SortOrder, sorts, "start_date", filter.Page, filter.PageSize)

	var exams []models.ExamDetail
	if err := r.db.SelectContext(ctx, &exams, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM exams e"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}
	return exams, total, nil
}

// FindByID returns an exam by id.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.ExamDetail, error) {
	var exam models.ExamDetail
	if err := r.db.GetContext(ctx, &exam, examSelect+" WHERE e.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find exam: %w", err)
	}
	return &exam, nil
}

// Create inserts an exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	exam.CreatedAt = now
	exam.UpdatedAt = now
	const query = `INSERT INTO exams (id, name, class_id, academic_year, start_date, end_date, is_result_published, created_at, updated_at)
VALUES (:id, :name, :class_id, :academic_year, :start_date, :end_date, :is_result_published, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Update modifies an exam that has not been published yet. The class only changes while the
// exam has no results; either guard failing yields ErrStaleWrite.
func (r *ExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exams SET name = :name, class_id = :class_id, academic_year = :academic_year, start_date = :start_date, end_date = :end_date,
updated_at = :updated_at
WHERE id = :id AND is_result_published = FALSE
  AND (class_id = :class_id OR NOT EXISTS (SELECT 1 FROM results WHERE exam_id = :id))`
	res, err := r.db.NamedExecContext(ctx, query, exam)
	if err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return expectOneRow(res, "update exam")
}

// Delete removes an unpublished exam together with its results.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1 AND is_result_published = FALSE`, id)
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	return expectOneRow(res, "delete exam")
}

// MarkPublished flips the publish flag once. A second call matches no row and returns ErrStaleWrite.
func (r *ExamRepository) MarkPublished(ctx context.Context, id, publishedBy string, at time.Time) error {
	const query = `UPDATE exams SET is_result_published = TRUE, published_at = $2, published_by = $3, updated_at = $2
WHERE id = $1 AND is_result_published = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, at, publishedBy)
	if err != nil {
		return fmt.Errorf("publish exam: %w", err)
	}
	return expectOneRow(res, "publish exam")
}

// MissingResults lists every (active student, subject) pair of the exam's class lacking a result row.
func (r *ExamRepository) MissingResults(ctx context.Context, examID string) ([]models.MissingResult, error) {
	const query = `SELECT s.id AS student_id, s.full_name AS student_name, sub.id AS subject_id, sub.name AS subject_name
FROM exams e
JOIN students s ON s.class_id = e.class_id AND s.active = TRUE
JOIN subjects sub ON sub.class_id = e.class_id
LEFT JOIN results r ON r.exam_id = e.id AND r.student_id = s.id AND r.subject_id = sub.id
WHERE e.id = $1 AND r.id IS NULL
ORDER BY s.full_name, sub.code`
	var missing []models.MissingResult
	if err := r.db.SelectContext(ctx, &missing, query, examID); err != nil {
		return nil, fmt.Errorf("find missing results: %w", err)
	}
	return missing, nil
}

// StudentTotals aggregates marks and full marks per active student of the exam's class, over
// the class's own subjects.
func (r *ExamRepository) StudentTotals(ctx context.Context, examID string) ([]models.StudentTotal, error) {
	const query = `SELECT s.id AS student_id, s.full_name AS student_name, s.admission_no, s.roll_no,
       COALESCE(SUM(r.marks_obtained), 0) AS total_marks, COALESCE(SUM(sub.full_mark), 0) AS total_full_mark,
       COUNT(*) FILTER (WHERE NOT r.is_passed) AS failed_count
FROM exams e
JOIN students s ON s.class_id = e.class_id AND s.active = TRUE
JOIN results r ON r.exam_id = e.id AND r.student_id = s.id
JOIN subjects sub ON sub.id = r.subject_id AND sub.class_id = e.class_id
WHERE e.id = $1
GROUP BY s.id, s.full_name, s.admission_no, s.roll_no`
	var totals []models.StudentTotal
	if err := r.db.SelectContext(ctx, &totals, query, examID); err != nil {
		return nil, fmt.Errorf("aggregate exam totals: %w", err)
	}
	return totals, nil
}

// lockedUnlessOne maps a guarded write that matched no row to ErrLocked.
func lockedUnlessOne(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrLocked)
	}
	return nil
}

func expectOneRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrStaleWrite)
	}
	return nil
}
