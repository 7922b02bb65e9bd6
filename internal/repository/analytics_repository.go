package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sims-api/internal/models"
)

// AnalyticsRepository exposes read-optimised aggregate queries for dashboards and analytics endpoints.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Counts returns headcounts of active students and teachers, classes and guardians.
func (r *AnalyticsRepository) Counts(ctx context.Context) (models.SchoolCounts, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students WHERE active) AS students,
        (SELECT COUNT(*) FROM teachers WHERE active) AS teachers,
        (SELECT COUNT(*) FROM classes) AS classes,
        (SELECT COUNT(*) FROM guardians) AS guardians`
	var counts models.SchoolCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return models.SchoolCounts{}, fmt.Errorf("count school records: %w", err)
	}
	return counts, nil
}

// ClassAttendance aggregates student attendance per class with optional date filtering.
func (r *AnalyticsRepository) ClassAttendance(ctx context.Context, filter models.AnalyticsAttendanceFilter) ([]models.ClassAttendanceRate, error) {
	var cond conditions
	if filter.ClassID != "" {
		cond.add("a.class_id = $%d", filter.ClassID)
	}
	if filter.DateFrom != nil {
		cond.add("a.date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		cond.add("a.date <= $%d", *filter.DateTo)
	}
	query := `SELECT a.class_id, (c.name || ' ' || c.section) AS class_name,
        COUNT(*) FILTER (WHERE a.status = 'present') AS present,
        COUNT(*) FILTER (WHERE a.status = 'late') AS late,
        COUNT(*) AS total
        FROM attendances a JOIN classes c ON c.id = a.class_id` + cond.where() + `
        GROUP BY a.class_id, c.name, c.section ORDER BY c.name, c.section`

	var rows []models.ClassAttendanceRate
	if err := r.db.SelectContext(ctx, &rows, query, cond.args...); err != nil {
		return nil, fmt.Errorf("query class attendance: %w", err)
	}
	for i := range rows {
		rows[i].Rate = models.Percent(float64(rows[i].Present+rows[i].Late), float64(rows[i].Total))
	}
	return rows, nil
}

// MonthlyCollections sums fee payments per month within [from, to).
func (r *AnalyticsRepository) MonthlyCollections(ctx context.Context, from, to time.Time) ([]models.MonthlyCollection, error) {
	const query = `SELECT TO_CHAR(DATE_TRUNC('month', paid_at), 'YYYY-MM') AS month, COUNT(*) AS payments, COALESCE(SUM(amount), 0) AS amount
        FROM fee_payments WHERE paid_at >= $1 AND paid_at < $2
        GROUP BY DATE_TRUNC('month', paid_at) ORDER BY DATE_TRUNC('month', paid_at)`
	var rows []models.MonthlyCollection
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("query monthly collections: %w", err)
	}
	for i := range rows {
		rows[i].Amount = models.Round2(rows[i].Amount)
	}
	return rows, nil
}

// ExamPerformance aggregates the results of an exam per subject.
func (r *AnalyticsRepository) ExamPerformance(ctx context.Context, examID string) ([]models.ExamPerformance, error) {
	const query = `SELECT sub.id AS subject_id, sub.name AS subject_name, COUNT(r.id) AS entries,
        COUNT(r.id) FILTER (WHERE r.is_passed) AS passed,
        COALESCE(AVG(r.marks_obtained), 0) AS average,
        COALESCE(MAX(r.marks_obtained), 0) AS highest,
        COALESCE(MIN(r.marks_obtained), 0) AS lowest
        FROM results r JOIN subjects sub ON sub.id = r.subject_id
        WHERE r.exam_id = $1
        GROUP BY sub.id, sub.name ORDER BY sub.name`
	var rows []models.ExamPerformance
	if err := r.db.SelectContext(ctx, &rows, query, examID); err != nil {
		return nil, fmt.Errorf("query exam performance: %w", err)
	}
	for i := range rows {
		rows[i].Average = models.Round2(rows[i].Average)
		rows[i].PassRate = models.Percent(float64(rows[i].Passed), float64(rows[i].Entries))
	}
	return rows, nil
}
