package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sims-api/internal/models"
)

// IntegrityRepository runs the read-only consistency checks behind system:integrity.
type IntegrityRepository struct {
	db *sqlx.DB
}

// NewIntegrityRepository constructs an IntegrityRepository.
func NewIntegrityRepository(db *sqlx.DB) *IntegrityRepository {
	return &IntegrityRepository{db: db}
}

type issueRow struct {
	EntityID string `db:"entity_id"`
	Detail   string `db:"detail"`
}

func (r *IntegrityRepository) issues(ctx context.Context, check, query string) ([]models.IntegrityIssue, error) {
	var rows []issueRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("integrity check %s: %w", check, err)
	}
	issues := make([]models.IntegrityIssue, 0, len(rows))
	for _, row := range rows {
		issues = append(issues, models.IntegrityIssue{Check: check, EntityID: row.EntityID, Detail: row.Detail})
	}
	return issues, nil
}

// MissingProfiles lists users whose legacy role requires a profile row that does not exist.
func (r *IntegrityRepository) MissingProfiles(ctx context.Context) ([]models.IntegrityIssue, error) {
	const query = `SELECT u.id::text AS entity_id, u.role || ' ' || u.email || ' has no profile' AS detail FROM users u
WHERE (u.role = 'STUDENT' AND NOT EXISTS (SELECT 1 FROM students s WHERE s.user_id = u.id))
   OR (u.role = 'TEACHER' AND NOT EXISTS (SELECT 1 FROM teachers t WHERE t.user_id = u.id))
   OR (u.role = 'GUARDIAN' AND NOT EXISTS (SELECT 1 FROM guardians g WHERE g.user_id = u.id))
   OR (u.role = 'ACCOUNTANT' AND NOT EXISTS (SELECT 1 FROM accountants a WHERE a.user_id = u.id))
ORDER BY u.email`
	return r.issues(ctx, models.CheckMissingProfile, query)
}

// StudentsWithoutClass lists active students not assigned to a class.
func (r *IntegrityRepository) StudentsWithoutClass(ctx context.Context) ([]models.IntegrityIssue, error) {
	const query = `SELECT id::text AS entity_id, admission_no || ' ' || full_name AS detail FROM students
WHERE active AND class_id IS NULL ORDER BY admission_no`
	return r.issues(ctx, models.CheckStudentNoClass, query)
}

// ResultClassMismatches lists results whose subject belongs to another class than the exam.
func (r *IntegrityRepository) ResultClassMismatches(ctx context.Context) ([]models.IntegrityIssue, error) {
	const query = `SELECT r.id::text AS entity_id, 'exam ' || e.name || ' / subject ' || sub.code AS detail
FROM results r JOIN exams e ON e.id = r.exam_id JOIN subjects sub ON sub.id = r.subject_id
WHERE sub.class_id <> e.class_id ORDER BY e.name, sub.code`
	return r.issues(ctx, models.CheckResultClass, query)
}

// InstallmentSumMismatches lists plans whose installments do not add up to the plan total.
func (r *IntegrityRepository) InstallmentSumMismatches(ctx context.Context) ([]models.IntegrityIssue, error) {
	const query = `SELECT p.id::text AS entity_id, 'plan total ' || p.total_amount || ' vs installments ' || COALESCE(SUM(i.amount), 0) AS detail
FROM installment_plans p LEFT JOIN installments i ON i.plan_id = p.id
GROUP BY p.id, p.total_amount HAVING COALESCE(SUM(i.amount), 0) <> p.total_amount`
	return r.issues(ctx, models.CheckInstallmentSum, query)
}

// Fees returns every fee so the caller can recompute statuses.
func (r *IntegrityRepository) Fees(ctx context.Context) ([]models.Fee, error) {
	const query = `SELECT id, student_id, fee_type, description, amount, waived_amount, paid_amount, due_date, status, academic_year,
created_at, updated_at FROM fees ORDER BY due_date`
	var fees []models.Fee
	if err := r.db.SelectContext(ctx, &fees, query); err != nil {
		return nil, fmt.Errorf("list fees for integrity: %w", err)
	}
	return fees, nil
}
