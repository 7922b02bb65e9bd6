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

const teacherAttendanceSelect = `SELECT ta.id, ta.teacher_id, ta.date, ta.status, ta.check_in, ta.check_out, ta.remarks, ta.created_at, ta.updated_at,
        t.full_name AS teacher_name
        FROM teacher_attendances ta JOIN teachers t ON t.id = ta.teacher_id`

// TeacherAttendanceRepository handles persistence for teacher attendance.
type TeacherAttendanceRepository struct {
	db *sqlx.DB
}

// NewTeacherAttendanceRepository constructs a TeacherAttendanceRepository.
func NewTeacherAttendanceRepository(db *sqlx.DB) *TeacherAttendanceRepository {
	return &TeacherAttendanceRepository{db: db}
}

func teacherAttendanceConditions(filter models.TeacherAttendanceFilter) conditions {
	var cond conditions
	if filter.TeacherID != "" {
		cond.add("ta.teacher_id = $%d", filter.TeacherID)
	}
	if filter.Status != "" {
		cond.add("ta.status = $%d", filter.Status)
	}
	if filter.DateFrom != nil {
		cond.add("ta.date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		cond.add("ta.date <= $%d", *filter.DateTo)
	}
	return cond
}

// List returns teacher attendance with filters and total count.
func (r *TeacherAttendanceRepository) List(ctx context.Context, filter models.TeacherAttendanceFilter) ([]models.TeacherAttendanceDetail, int, error) {
	cond := teacherAttendanceConditions(filter)
	sorts := map[string]string{"date": "ta.date", "teacher_name": "t.full_name", "status": "ta.status"}
	query := teacherAttendanceSelect + cond.where() + pageClause(filter.SortBy, filter.SortOrder, sorts, "date", filter.Page, filter.PageSize)

	var rows []models.TeacherAttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list teacher attendance: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM teacher_attendances ta"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count teacher attendance: %w", err)
	}
	return rows, total, nil
}

// FindByID returns one row.
func (r *TeacherAttendanceRepository) FindByID(ctx context.Context, id string) (*models.TeacherAttendanceDetail, error) {
	var row models.TeacherAttendanceDetail
	if err := r.db.GetContext(ctx, &row, teacherAttendanceSelect+" WHERE ta.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher attendance: %w", err)
	}
	return &row, nil
}

// FindByTeacherDate returns the row of a teacher on a date.
func (r *TeacherAttendanceRepository) FindByTeacherDate(ctx context.Context, teacherID string, date time.Time) (*models.TeacherAttendanceDetail, error) {
	var row models.TeacherAttendanceDetail
	if err := r.db.GetContext(ctx, &row, teacherAttendanceSelect+" WHERE ta.teacher_id = $1 AND ta.date = $2", teacherID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher attendance by date: %w", err)
	}
	return &row, nil
}

// Upsert records a teacher's status for a date, keeping an existing check-in when none is given.
func (r *TeacherAttendanceRepository) Upsert(ctx context.Context, record *models.TeacherAttendance) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.UpdatedAt = now
	const query = `INSERT INTO teacher_attendances (id, teacher_id, date, status, check_in, check_out, remarks, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (teacher_id, date)
DO UPDATE SET status = EXCLUDED.status, check_in = COALESCE(EXCLUDED.check_in, teacher_attendances.check_in),
check_out = COALESCE(EXCLUDED.check_out, teacher_attendances.check_out), remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at
RETURNING id, created_at`
	if err := r.db.QueryRowxContext(ctx, query, record.ID, record.TeacherID, record.Date, record.Status, record.CheckIn, record.CheckOut, record.Remarks, now).
		Scan(&record.ID, &record.CreatedAt); err != nil {
		return fmt.Errorf("upsert teacher attendance: %w", err)
	}
	return nil
}

// SetCheckOut stamps the check-out time of an existing row.
func (r *TeacherAttendanceRepository) SetCheckOut(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE teacher_attendances SET check_out = $2, updated_at = $2 WHERE id = $1 AND check_out IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("check out: %w", err)
	}
	return expectOneRow(res, "check out")
}

// Delete removes a row.
func (r *TeacherAttendanceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM teacher_attendances WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete teacher attendance: %w", err)
	}
	return nil
}

// Summary counts statuses matching the filter.
func (r *TeacherAttendanceRepository) Summary(ctx context.Context, filter models.TeacherAttendanceFilter) (models.AttendanceSummary, error) {
	cond := teacherAttendanceConditions(filter)
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, "SELECT "+summaryColumns+" FROM teacher_attendances ta"+cond.where(), cond.args...); err != nil {
		return models.AttendanceSummary{}, fmt.Errorf("summarise teacher attendance: %w", err)
	}
	return summary.WithRate(), nil
}
