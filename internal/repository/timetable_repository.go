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

const periodColumns = `id, name, start_time, end_time, sort_order, is_break, created_at, updated_at`

const timetableSelect = `SELECT t.id, t.class_id, t.subject_id, t.teacher_id, t.period_id, t.day_of_week, t.room, t.created_at, t.updated_at,
        (c.name || ' ' || c.section) AS class_name, sub.name AS subject_name, te.full_name AS teacher_name,
        p.name AS period_name, p.start_time, p.end_time
        FROM timetables t
        JOIN classes c ON c.id = t.class_id
        JOIN subjects sub ON sub.id = t.subject_id
        JOIN teachers te ON te.id = t.teacher_id
        JOIN periods p ON p.id = t.period_id`

// TimetableRepository persists periods and the weekly timetable.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs a TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// ListPeriods returns periods in day order.
func (r *TimetableRepository) ListPeriods(ctx context.Context) ([]models.Period, error) {
	var periods []models.Period
	if err := r.db.SelectContext(ctx, &periods, "SELECT "+periodColumns+" FROM periods ORDER BY sort_order, start_time"); err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// FindPeriod returns a period.
func (r *TimetableRepository) FindPeriod(ctx context.Context, id string) (*models.Period, error) {
	var period models.Period
	if err := r.db.GetContext(ctx, &period, "SELECT "+periodColumns+" FROM periods WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find period: %w", err)
	}
	return &period, nil
}

// CreatePeriod inserts a period.
func (r *TimetableRepository) CreatePeriod(ctx context.Context, period *models.Period) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	period.CreatedAt = now
	period.UpdatedAt = now
	const query = `INSERT INTO periods (` + periodColumns + `)
VALUES (:id, :name, :start_time, :end_time, :sort_order, :is_break, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create period: %w", err)
	}
	return nil
}

// UpdatePeriod modifies a period.
func (r *TimetableRepository) UpdatePeriod(ctx context.Context, period *models.Period) error {
	period.UpdatedAt = time.Now().UTC()
	const query = `UPDATE periods SET name = :name, start_time = :start_time, end_time = :end_time, sort_order = :sort_order,
is_break = :is_break, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	return nil
}

// DeletePeriod removes a period and, by cascade, its timetable entries.
func (r *TimetableRepository) DeletePeriod(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM periods WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete period: %w", err)
	}
	return nil
}

// List returns timetable entries ordered by weekday and period.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableDetail, error) {
	var cond conditions
	if filter.ClassID != "" {
		cond.add("t.class_id = $%d", filter.ClassID)
	}
	if filter.TeacherID != "" {
		cond.add("t.teacher_id = $%d", filter.TeacherID)
	}
	if filter.DayOfWeek > 0 {
		cond.add("t.day_of_week = $%d", filter.DayOfWeek)
	}
	var entries []models.TimetableDetail
	query := timetableSelect + cond.where() + " ORDER BY t.day_of_week, p.sort_order, p.start_time"
	if err := r.db.SelectContext(ctx, &entries, query, cond.args...); err != nil {
		return nil, fmt.Errorf("list timetable: %w", err)
	}
	return entries, nil
}

// FindByID returns a timetable entry.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableDetail, error) {
	var entry models.TimetableDetail
	if err := r.db.GetContext(ctx, &entry, timetableSelect+" WHERE t.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find timetable entry: %w", err)
	}
	return &entry, nil
}

// SlotTaken reports whether the class or the teacher already occupies the weekday period, ignoring excludeID.
func (r *TimetableRepository) SlotTaken(ctx context.Context, entry models.TimetableEntry, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM timetables WHERE day_of_week = $1 AND period_id = $2
AND (class_id = $3 OR teacher_id = $4) AND id <> $5)`
	if excludeID == "" {
		excludeID = "00000000-0000-0000-0000-000000000000"
	}
	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, entry.DayOfWeek, entry.PeriodID, entry.ClassID, entry.TeacherID, excludeID); err != nil {
		return false, fmt.Errorf("check timetable slot: %w", err)
	}
	return taken, nil
}

// Create inserts a timetable entry. The unique slot constraints surface as ErrDuplicate.
func (r *TimetableRepository) Create(ctx context.Context, entry *models.TimetableEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	const query = `INSERT INTO timetables (id, class_id, subject_id, teacher_id, period_id, day_of_week, room, created_at, updated_at)
VALUES (:id, :class_id, :subject_id, :teacher_id, :period_id, :day_of_week, :room, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return wrapWrite("create timetable entry", err)
	}
	return nil
}

// Update modifies a timetable entry.
func (r *TimetableRepository) Update(ctx context.Context, entry *models.TimetableEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetables SET class_id = :class_id, subject_id = :subject_id, teacher_id = :teacher_id, period_id = :period_id,
day_of_week = :day_of_week, room = :room, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return wrapWrite("update timetable entry", err)
	}
	return nil
}

// Delete removes a timetable entry.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM timetables WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable entry: %w", err)
	}
	return nil
}
