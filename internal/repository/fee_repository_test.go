package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
)

func TestFeeRepositoryRecordPaymentCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	paidAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	instID := "inst-1"
	fee := models.Fee{ID: "fee-1", PaidAmount: 600, Status: models.FeePartial}
	payment := &models.FeePayment{FeeID: "fee-1", InstallmentID: &instID, Amount: 100, Method: models.PaymentCash, PaidAt: paidAt}
	inst := &models.Installment{ID: instID, PaidAmount: 100, Status: models.InstallmentPartial}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE fees SET paid_amount = $2, status = $3, updated_at = $4 WHERE id = $1 AND paid_amount = $5")).
		WithArgs("fee-1", 600.0, models.FeePartial, sqlmock.AnyArg(), 500.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fee_payments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE installments SET paid_amount = $2, status = $3, paid_at = $4 WHERE id = $1")).
		WithArgs(instID, 100.0, models.InstallmentPartial, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RecordPayment(context.Background(), fee, 500, payment, inst))
	assert.NotEmpty(t, payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryRecordPaymentStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE fees SET paid_amount")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RecordPayment(context.Background(), models.Fee{ID: "fee-1", PaidAmount: 200}, 100, &models.FeePayment{Amount: 100}, nil)
	assert.True(t, errors.Is(err, ErrStaleWrite))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryDecideWaiverTwice(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE fee_waivers SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	waiver := models.FeeWaiver{ID: "w-1", Status: models.WaiverApproved, Amount: 50}
	err := repo.DecideWaiver(context.Background(), waiver, &models.Fee{ID: "fee-1", WaivedAmount: 50}, 0, 0)
	assert.ErrorIs(t, err, ErrStaleWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryCreatePlanDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO installment_plans")).
		WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	plan := &models.InstallmentPlan{FeeID: "fee-1", InstallmentCount: 2, Installments: []models.Installment{{Sequence: 1}, {Sequence: 2}}}
	err := repo.CreatePlan(context.Background(), plan)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryListComputesPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	due := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	columns := []string{"id", "student_id", "fee_type", "description", "amount", "waived_amount", "paid_amount", "due_date", "status",
		"academic_year", "created_at", "updated_at", "student_name", "admission_no", "class_name"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.student_id = $1 AND f.status = $2 ORDER BY f.due_date DESC LIMIT 20 OFFSET 0")).
		WithArgs("stu-1", models.FeePartial).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("fee-1", "stu-1", "tuition", nil, 1000.0, 100.0, 250.5, due, "partial", nil, due, due, "Ahmad", "ADM-1", nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM fees f JOIN students s ON s.id = f.student_id WHERE f.student_id = $1")).
		WithArgs("stu-1", models.FeePartial).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	fees, total, err := repo.List(context.Background(), models.FeeFilter{StudentID: "stu-1", Status: models.FeePartial})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, fees, 1)
	assert.Equal(t, 649.5, fees[0].PendingAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
