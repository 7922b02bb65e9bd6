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

const attendanceSelect = `SELECT a.id, a.student_id, a.class_id, a.date, a.status, a.remarks, a.recorded_by, a.created_at, a.updated_at,
        s.full_name AS student_name, s.admission_no
        FROM attendances a JOIN students s ON s.id = a.student_id`

const summaryColumns = `COUNT(*) FILTER (WHERE status = 'present') AS present,
       COUNT(*) FILTER (WHERE status = 'absent') AS absent,
       COUNT(*) FILTER (WHERE status = 'late') AS late,
       COUNT(*) FILTER (WHERE status = 'excused') AS excused,
       COUNT(*) AS total`

// AttendanceRepository handles persistence for student attendance.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func attendanceConditions(filter models.AttendanceFilter) conditions {
	var cond conditions
	if filter.StudentID != "" {
		cond.add("a.student_id = $%d", filter.StudentID)
	}
	if filter.ClassID != "" {
		cond.add("a.class_id = $%d", filter.ClassID)
	}
	if filter.Status != "" {
		cond.add("a.status = $%d", filter.Status)
	}
	if filter.DateFrom != nil {
		cond.add("a.date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		cond.add("a.date <= $%d", *filter.DateTo)
	}
	return cond
}

// List returns attendance rows with filters and total count.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	cond := attendanceConditions(filter)
	sorts := map[string]string{"date": "a.date", "student_name": "s.full_name", "status": "a.status"}
	query := attendanceSelect + cond.where() + pageClause(filter.SortBy, filter.SortOrder, sorts, "date", filter.Page, filter.PageSize)

	var rows []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM attendances a"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// ListForSheet returns every row of a class in a date range ordered for an attendance sheet.
func (r *AttendanceRepository) ListForSheet(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceDetail, error) {
	query := attendanceSelect + " WHERE a.class_id = $1 AND a.date BETWEEN $2 AND $3 ORDER BY s.full_name, a.date"
	var rows []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, classID, from, to); err != nil {
		return nil, fmt.Errorf("list attendance sheet: %w", err)
	}
	return rows, nil
}

// FindByID returns one attendance row.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	var row models.AttendanceDetail
	if err := r.db.GetContext(ctx, &row, attendanceSelect+" WHERE a.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &row, nil
}

// BulkUpsert records a class roll call atomically keyed by (student, date).
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.Attendance) error {
	if len(records) == 0 {
		return nil
	}
	return database.WithTx(ctx, r.db, "bulk attendance", func(tx *sqlx.Tx) error {
		const query = `INSERT INTO attendances (id, student_id, class_id, date, status, remarks, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (student_id, date)
DO UPDATE SET class_id = EXCLUDED.class_id, status = EXCLUDED.status, remarks = EXCLUDED.remarks, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
RETURNING id`
		now := time.Now().UTC()
		for i := range records {
			rec := &records[i]
			if rec.ID == "" {
				rec.ID = uuid.NewString()
			}
			if err := tx.QueryRowxContext(ctx, query, rec.ID, rec.StudentID, rec.ClassID, rec.Date, rec.Status, rec.Remarks, rec.RecordedBy, now).Scan(&rec.ID); err != nil {
				return fmt.Errorf("upsert attendance: %w", err)
			}
			rec.UpdatedAt = now
		}
		return nil
	})
}

// Update changes the status of one row.
func (r *AttendanceRepository) Update(ctx context.Context, record *models.Attendance) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE attendances SET status = :status, remarks = :remarks, recorded_by = :recorded_by, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return nil
}

// Delete removes one row.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attendances WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return nil
}

// Summary counts statuses matching the filter. Pagination fields are ignored.
func (r *AttendanceRepository) Summary(ctx context.Context, filter models.AttendanceFilter) (models.AttendanceSummary, error) {
	cond := attendanceConditions(filter)
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, "SELECT "+summaryColumns+" FROM attendances a"+cond.where(), cond.args...); err != nil {
		return models.AttendanceSummary{}, fmt.Errorf("summarise attendance: %w", err)
	}
	return summary.WithRate(), nil
}
