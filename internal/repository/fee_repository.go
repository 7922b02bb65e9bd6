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
	"github.com/noah-isme/sims-api/pkg/database"
)

const feeSelect = `SELECT f.id, f.student_id, f.fee_type, f.description, f.amount, f.waived_amount, f.paid_amount, f.due_date, f.status,
        f.academic_year, f.created_at, f.updated_at, s.full_name AS student_name, s.admission_no, (c.name || ' ' || c.section) AS class_name
        FROM fees f JOIN students s ON s.id = f.student_id LEFT JOIN classes c ON c.id = s.class_id`

const paymentColumns = `p.id, p.fee_id, p.installment_id, p.amount, p.method, p.reference, p.paid_at, p.received_by, p.created_at`

const paymentSelect = `SELECT ` + paymentColumns + `, f.fee_type, f.student_id, s.full_name AS student_name
        FROM fee_payments p JOIN fees f ON f.id = p.fee_id JOIN students s ON s.id = f.student_id`

const waiverSelect = `SELECT w.id, w.fee_id, w.waiver_type, w.value, w.amount, w.reason, w.status, w.requested_by, w.decided_by, w.decided_at,
        w.remarks, w.created_at, w.updated_at, f.fee_type, f.amount AS fee_amount, f.student_id, s.full_name AS student_name
        FROM fee_waivers w JOIN fees f ON f.id = w.fee_id JOIN students s ON s.id = f.student_id`

const installmentColumns = `id, plan_id, fee_id, sequence, amount, paid_amount, due_date, status, paid_at`

const pendingExpr = `GREATEST(f.amount - f.waived_amount - f.paid_amount, 0)`

// FeeRepository persists fees and the ledger rows hanging off them: payments, waivers and installment plans.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs a FeeRepository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// List returns fees with filters and total count.
func (r *FeeRepository) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error) {
	var cond conditions
	if filter.StudentID != "" {
		cond.add("f.student_id = $%d", filter.StudentID)
	}
	if len(filter.StudentIDs) > 0 {
		cond.add("f.student_id = ANY($%d)", pq.Array(filter.StudentIDs))
	}
	if filter.ClassID != "" {
		cond.add("s.class_id = $%d", filter.ClassID)
	}
	if filter.Status != "" {
		cond.add("f.status = $%d", filter.Status)
	}
	if filter.FeeType != "" {
		cond.add("f.fee_type = $%d", filter.FeeType)
	}
	if filter.DueBefore != nil {
		cond.add("f.due_date < $%d", *filter.DueBefore)
	}
	sorts := map[string]string{"due_date": "f.due_date", "amount": "f.amount", "student_name": "s.full_name", "created_at": "f.created_at"}
	query := feeSelect + cond.where() + pageClause(filter.SortBy, filter.SortOrder, sorts, "due_date", filter.Page, filter.PageSize)

	var fees []models.FeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list fees: %w", err)
	}
	for i := range fees {
		fees[i].PendingAmount = fees[i].Fee.PendingAmount()
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM fees f JOIN students s ON s.id = f.student_id"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count fees: %w", err)
	}
	return fees, total, nil
}

// FindByID returns a fee with student context.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.FeeDetail, error) {
	var fee models.FeeDetail
	if err := r.db.GetContext(ctx, &fee, feeSelect+" WHERE f.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find fee: %w", err)
	}
	fee.PendingAmount = fee.Fee.PendingAmount()
	return &fee, nil
}

// Create inserts a fee.
func (r *FeeRepository) Create(ctx context.Context, fee *models.Fee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	fee.CreatedAt = now
	fee.UpdatedAt = now
	const query = `INSERT INTO fees (id, student_id, fee_type, description, amount, waived_amount, paid_amount, due_date, status, academic_year, created_at, updated_at)
VALUES (:id, :student_id, :fee_type, :description, :amount, :waived_amount, :paid_amount, :due_date, :status, :academic_year, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("create fee: %w", err)
	}
	return nil
}

// Update modifies the descriptive fields and amount of a fee.
func (r *FeeRepository) Update(ctx context.Context, fee *models.Fee) error {
	fee.UpdatedAt = time.Now().UTC()
	const query = `UPDATE fees SET fee_type = :fee_type, description = :description, amount = :amount, due_date = :due_date, status = :status,
academic_year = :academic_year, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("update fee: %w", err)
	}
	return nil
}

// Delete removes a fee that has not collected any payment.
func (r *FeeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fees WHERE id = $1 AND paid_amount = 0`, id)
	if err != nil {
		return fmt.Errorf("delete fee: %w", err)
	}
	return expectOneRow(res, "delete fee")
}

// UpdateStatus overwrites the stored status.
func (r *FeeRepository) UpdateStatus(ctx context.Context, id string, status models.FeeStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE fees SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update fee status: %w", err)
	}
	return nil
}

// RecordPayment stores a payment and the new paid amount of the fee (and installment) in one transaction.
// The fee update is guarded by prevPaid so concurrent collections cannot overshoot the pending amount.
func (r *FeeRepository) RecordPayment(ctx context.Context, fee models.Fee, prevPaid float64, payment *models.FeePayment, installment *models.Installment) error {
	return database.WithTx(ctx, r.db, "record payment", func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `UPDATE fees SET paid_amount = $2, status = $3, updated_at = $4 WHERE id = $1 AND paid_amount = $5`,
			fee.ID, fee.PaidAmount, fee.Status, now, prevPaid)
		if err != nil {
			return fmt.Errorf("update fee paid amount: %w", err)
		}
		if err := expectOneRow(res, "update fee paid amount"); err != nil {
			return err
		}

		if payment.ID == "" {
			payment.ID = uuid.NewString()
		}
		payment.CreatedAt = now
		const insert = `INSERT INTO fee_payments (id, fee_id, installment_id, amount, method, reference, paid_at, received_by, created_at)
VALUES (:id, :fee_id, :installment_id, :amount, :method, :reference, :paid_at, :received_by, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insert, payment); err != nil {
			return fmt.Errorf("insert fee payment: %w", err)
		}

		if installment != nil {
			const update = `UPDATE installments SET paid_amount = $2, status = $3, paid_at = $4 WHERE id = $1`
			if _, err := tx.ExecContext(ctx, update, installment.ID, installment.PaidAmount, installment.Status, installment.PaidAt); err != nil {
				return fmt.Errorf("update installment: %w", err)
			}
		}
		return nil
	})
}

// ListPayments returns the payments of a fee, newest first.
func (r *FeeRepository) ListPayments(ctx context.Context, feeID string) ([]models.FeePaymentDetail, error) {
	var payments []models.FeePaymentDetail
	if err := r.db.SelectContext(ctx, &payments, paymentSelect+" WHERE p.fee_id = $1 ORDER BY p.paid_at DESC", feeID); err != nil {
		return nil, fmt.Errorf("list fee payments: %w", err)
	}
	return payments, nil
}

// FindPayment returns one payment.
func (r *FeeRepository) FindPayment(ctx context.Context, id string) (*models.FeePaymentDetail, error) {
	var payment models.FeePaymentDetail
	if err := r.db.GetContext(ctx, &payment, paymentSelect+" WHERE p.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find fee payment: %w", err)
	}
	return &payment, nil
}

// RecentPayments returns the latest payments across all fees.
func (r *FeeRepository) RecentPayments(ctx context.Context, limit int) ([]models.FeePaymentDetail, error) {
	if limit <= 0 {
		limit = 10
	}
	var payments []models.FeePaymentDetail
	if err := r.db.SelectContext(ctx, &payments, paymentSelect+" ORDER BY p.paid_at DESC LIMIT $1", limit); err != nil {
		return nil, fmt.Errorf("list recent payments: %w", err)
	}
	return payments, nil
}

// CollectedBetween sums payments with paid_at in [from, to).
func (r *FeeRepository) CollectedBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	if err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(amount), 0) FROM fee_payments WHERE paid_at >= $1 AND paid_at < $2`, from, to); err != nil {
		return 0, fmt.Errorf("sum collected payments: %w", err)
	}
	return models.Round2(total), nil
}

// PendingTotal sums the pending amount over all fees, or over the given students when ids is not empty.
func (r *FeeRepository) PendingTotal(ctx context.Context, studentIDs []string) (float64, error) {
	query := `SELECT COALESCE(SUM(` + pendingExpr + `), 0) FROM fees f`
	var args []interface{}
	if len(studentIDs) > 0 {
		query += ` WHERE f.student_id = ANY($1)`
		args = append(args, pq.Array(studentIDs))
	}
	var total float64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("sum pending fees: %w", err)
	}
	return models.Round2(total), nil
}

// CountByStatus counts fees in a status.
func (r *FeeRepository) CountByStatus(ctx context.Context, status models.FeeStatus) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM fees WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("count fees by status: %w", err)
	}
	return count, nil
}

// MarkOverdue flags unpaid or partial fees past due with money outstanding.
func (r *FeeRepository) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	query := `UPDATE fees f SET status = 'overdue', updated_at = NOW() WHERE f.due_date < $1 AND f.status IN ('unpaid', 'partial') AND ` + pendingExpr + ` > 0`
	res, err := r.db.ExecContext(ctx, query, today)
	if err != nil {
		return 0, fmt.Errorf("mark fees overdue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark fees overdue rows: %w", err)
	}
	return affected, nil
}

// CreateWaiver inserts a pending waiver.
func (r *FeeRepository) CreateWaiver(ctx context.Context, waiver *models.FeeWaiver) error {
	if waiver.ID == "" {
		waiver.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	waiver.CreatedAt = now
	waiver.UpdatedAt = now
	const query = `INSERT INTO fee_waivers (id, fee_id, waiver_type, value, amount, reason, status, requested_by, created_at, updated_at)
VALUES (:id, :fee_id, :waiver_type, :value, :amount, :reason, :status, :requested_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, waiver); err != nil {
		return fmt.Errorf("create waiver: %w", err)
	}
	return nil
}

// FindWaiver returns one waiver with its fee context.
func (r *FeeRepository) FindWaiver(ctx context.Context, id string) (*models.FeeWaiverDetail, error) {
	var waiver models.FeeWaiverDetail
	if err := r.db.GetContext(ctx, &waiver, waiverSelect+" WHERE w.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find waiver: %w", err)
	}
	return &waiver, nil
}

// ListWaivers returns waivers with filters and total count.
func (r *FeeRepository) ListWaivers(ctx context.Context, filter models.FeeWaiverFilter) ([]models.FeeWaiverDetail, int, error) {
	var cond conditions
	if filter.FeeID != "" {
		cond.add("w.fee_id = $%d", filter.FeeID)
	}
	if filter.StudentID != "" {
		cond.add("f.student_id = $%d", filter.StudentID)
	}
	if filter.Status != "" {
		cond.add("w.status = $%d", filter.Status)
	}
	sorts := map[string]string{"created_at": "w.created_at", "amount": "w.amount", "status": "w.status"}
	query := waiverSelect + cond.where() + pageClause(filter.SortBy, filter.SortOrder, sorts, "created_at", filter.Page, filter.PageSize)

	var waivers []models.FeeWaiverDetail
	if err := r.db.SelectContext(ctx, &waivers, query, cond.args...); err != nil {
		return nil, 0, fmt.Errorf("list waivers: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM fee_waivers w JOIN fees f ON f.id = w.fee_id"+cond.where(), cond.args...); err != nil {
		return nil, 0, fmt.Errorf("count waivers: %w", err)
	}
	return waivers, total, nil
}

// CountPendingWaivers counts waivers awaiting a decision.
func (r *FeeRepository) CountPendingWaivers(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM fee_waivers WHERE status = 'pending'`); err != nil {
		return 0, fmt.Errorf("count pending waivers: %w", err)
	}
	return count, nil
}

// DecideWaiver stores the decision and, for approvals, the fee's new waived amount, atomically.
// Both writes are guarded so a waiver is decided once and the fee did not move in between.
func (r *FeeRepository) DecideWaiver(ctx context.Context, waiver models.FeeWaiver, fee *models.Fee, prevWaived, prevPaid float64) error {
	return database.WithTx(ctx, r.db, "decide waiver", func(tx *sqlx.Tx) error {
		const decide = `UPDATE fee_waivers SET status = $2, decided_by = $3, decided_at = $4, remarks = $5, amount = $6, updated_at = $4
WHERE id = $1 AND status = 'pending'`
		res, err := tx.ExecContext(ctx, decide, waiver.ID, waiver.Status, waiver.DecidedBy, waiver.DecidedAt, waiver.Remarks, waiver.Amount)
		if err != nil {
			return fmt.Errorf("decide waiver: %w", err)
		}
		if err := expectOneRow(res, "decide waiver"); err != nil {
			return err
		}

		if fee != nil {
			const apply = `UPDATE fees SET waived_amount = $2, status = $3, updated_at = $4 WHERE id = $1 AND waived_amount = $5 AND paid_amount = $6`
			res, err := tx.ExecContext(ctx, apply, fee.ID, fee.WaivedAmount, fee.Status, time.Now().UTC(), prevWaived, prevPaid)
			if err != nil {
				return fmt.Errorf("apply waiver: %w", err)
			}
			if err := expectOneRow(res, "apply waiver"); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreatePlan stores a plan and its installments in one transaction. A fee holds at most one plan.
func (r *FeeRepository) CreatePlan(ctx context.Context, plan *models.InstallmentPlan) error {
	return database.WithTx(ctx, r.db, "create plan", func(tx *sqlx.Tx) error {
		if plan.ID == "" {
			plan.ID = uuid.NewString()
		}
		plan.CreatedAt = time.Now().UTC()
		const insertPlan = `INSERT INTO installment_plans (id, fee_id, installment_count, frequency, start_date, total_amount, created_by, created_at)
VALUES (:id, :fee_id, :installment_count, :frequency, :start_date, :total_amount, :created_by, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insertPlan, plan); err != nil {
			return wrapWrite("create installment plan", err)
		}

		const insertInstallment = `INSERT INTO installments (id, plan_id, fee_id, sequence, amount, paid_amount, due_date, status)
VALUES (:id, :plan_id, :fee_id, :sequence, :amount, :paid_amount, :due_date, :status)`
		for i := range plan.Installments {
			inst := &plan.Installments[i]
			if inst.ID == "" {
				inst.ID = uuid.NewString()
			}
			inst.PlanID = plan.ID
			inst.FeeID = plan.FeeID
			if _, err := tx.NamedExecContext(ctx, insertInstallment, inst); err != nil {
				return fmt.Errorf("create installment: %w", err)
			}
		}
		return nil
	})
}

// FindPlanByFee returns the plan of a fee with its installments.
func (r *FeeRepository) FindPlanByFee(ctx context.Context, feeID string) (*models.InstallmentPlan, error) {
	var plan models.InstallmentPlan
	const query = `SELECT id, fee_id, installment_count, frequency, start_date, total_amount, created_by, created_at FROM installment_plans WHERE fee_id = $1`
	if err := r.db.GetContext(ctx, &plan, query, feeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find installment plan: %w", err)
	}
	if err := r.db.SelectContext(ctx, &plan.Installments, "SELECT "+installmentColumns+" FROM installments WHERE plan_id = $1 ORDER BY sequence", plan.ID); err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return &plan, nil
}

// FindInstallment returns one installment.
func (r *FeeRepository) FindInstallment(ctx context.Context, id string) (*models.Installment, error) {
	var inst models.Installment
	if err := r.db.GetContext(ctx, &inst, "SELECT "+installmentColumns+" FROM installments WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find installment: %w", err)
	}
	return &inst, nil
}

// MarkInstallmentsOverdue flags unpaid installments past due.
func (r *FeeRepository) MarkInstallmentsOverdue(ctx context.Context, today time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE installments SET status = 'overdue' WHERE due_date < $1 AND status IN ('pending', 'partial') AND paid_amount < amount`, today)
	if err != nil {
		return 0, fmt.Errorf("mark installments overdue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark installments overdue rows: %w", err)
	}
	return affected, nil
}

// CountOverdueInstallments counts installments flagged overdue.
func (r *FeeRepository) CountOverdueInstallments(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM installments WHERE status = 'overdue'`); err != nil {
		return 0, fmt.Errorf("count overdue installments: %w", err)
	}
	return count, nil
}
