package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sims-api/internal/models"
)

func TestSplitInstallmentsLastAbsorbsRemainder(t *testing.T) {
	parts := splitInstallments(1000, 3)
	assert.Equal(t, []float64{333.33, 333.33, 333.34}, parts)

	parts = splitInstallments(100.01, 2)
	assert.Equal(t, []float64{50, 50.01}, parts)

	var sum float64
	for _, p := range splitInstallments(12345.67, 7) {
		sum += p
	}
	assert.InDelta(t, 12345.67, sum, 0.0001)
}

func TestInstallmentDueDates(t *testing.T) {
	start := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	monthly := installmentDueDates(start, 3, models.FrequencyMonthly)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), monthly[1])
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), monthly[2])

	weekly := installmentDueDates(start, 2, models.FrequencyWeekly)
	assert.Equal(t, time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC), weekly[1])

	biweekly := installmentDueDates(start, 2, models.FrequencyBiweekly)
	assert.Equal(t, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), biweekly[1])
}

func TestWaiverAmountCappedAtPending(t *testing.T) {
	fee := models.Fee{Amount: 1000, PaidAmount: 900}
	assert.Equal(t, 100.0, waiverAmount(fee, models.WaiverPercentage, 50))
	assert.Equal(t, 100.0, waiverAmount(fee, models.WaiverFixed, 250))

	fee.PaidAmount = 0
	assert.Equal(t, 125.0, waiverAmount(fee, models.WaiverPercentage, 12.5))
}

func TestCanApproveWaiver(t *testing.T) {
	acct := &models.Accountant{MaxWaiverAmount: 500, MaxWaiverPercentage: 20, Active: true}
	pct := models.FeeWaiver{WaiverType: models.WaiverPercentage, Value: 25, Amount: 100}
	fixed := models.FeeWaiver{WaiverType: models.WaiverFixed, Value: 400, Amount: 400}

	assert.True(t, canApproveWaiver(models.RoleAdmin, nil, pct))
	assert.False(t, canApproveWaiver(models.RoleAccountant, acct, pct))
	assert.True(t, canApproveWaiver(models.RoleAccountant, acct, fixed))
	assert.False(t, canApproveWaiver(models.RoleAccountant, nil, fixed))
	assert.False(t, canApproveWaiver(models.RoleTeacher, acct, fixed))

	acct.Active = false
	assert.False(t, canApproveWaiver(models.RoleAccountant, acct, fixed))
}

func TestFeeResolveStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	due := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, models.FeeUnpaid, models.Fee{Amount: 100, DueDate: due}.ResolveStatus(now))
	assert.Equal(t, models.FeePartial, models.Fee{Amount: 100, PaidAmount: 30, DueDate: due}.ResolveStatus(now))
	assert.Equal(t, models.FeePaid, models.Fee{Amount: 100, PaidAmount: 60, WaivedAmount: 40, DueDate: due}.ResolveStatus(now))
	assert.Equal(t, models.FeeWaived, models.Fee{Amount: 100, WaivedAmount: 100, DueDate: due}.ResolveStatus(now))
	assert.Equal(t, models.FeeOverdue, models.Fee{Amount: 100, PaidAmount: 30, DueDate: now.AddDate(0, 0, -1)}.ResolveStatus(now))
	assert.Equal(t, models.FeeUnpaid, models.Fee{Amount: 100, DueDate: now}.ResolveStatus(now))
}
