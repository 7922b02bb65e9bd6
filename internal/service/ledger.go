package service

import (
	"math"
	"time"

	"github.com/noah-isme/sims-api/internal/models"
)

// splitInstallments divides total into n parts of floor(total/n) at cent precision.
// The last part absorbs the remainder so the parts always sum to total.
func splitInstallments(total float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	cents := int64(math.Round(total * 100))
	base := cents / int64(n)
	parts := make([]float64, n)
	for i := 0; i < n-1; i++ {
		parts[i] = float64(base) / 100
	}
	parts[n-1] = float64(cents-base*int64(n-1)) / 100
	return parts
}

// installmentDueDates schedules n due dates from start at the given frequency.
func installmentDueDates(start time.Time, n int, frequency string) []time.Time {
	dates := make([]time.Time, n)
	for i := 0; i < n; i++ {
		switch frequency {
		case models.FrequencyWeekly:
			dates[i] = start.AddDate(0, 0, 7*i)
		case models.FrequencyBiweekly:
			dates[i] = start.AddDate(0, 0, 14*i)
		default:
			dates[i] = addMonthsClamped(start, i)
		}
	}
	return dates
}

// addMonthsClamped moves t forward by months, clamping to the last day of the target month.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// waiverAmount converts a waiver request into money, capped at what is still pending on the fee.
func waiverAmount(fee models.Fee, waiverType string, value float64) float64 {
	var amount float64
	if waiverType == models.WaiverPercentage {
		amount = fee.Amount * value / 100
	} else {
		amount = value
	}
	return models.Round2(math.Min(amount, fee.PendingAmount()))
}

// canApproveWaiver checks the approver's authority. Administrators approve anything;
// accountants only within their configured limits.
func canApproveWaiver(role models.UserRole, accountant *models.Accountant, waiver models.FeeWaiver) bool {
	if role.IsAdmin() {
		return true
	}
	if role != models.RoleAccountant || accountant == nil || !accountant.Active {
		return false
	}
	if waiver.WaiverType == models.WaiverPercentage {
		return waiver.Value <= accountant.MaxWaiverPercentage
	}
	return waiver.Amount <= accountant.MaxWaiverAmount
}

// installmentStatus derives an installment status after a payment or sweep.
func installmentStatus(inst models.Installment, now time.Time) string {
	switch {
	case inst.Remaining() == 0:
		return models.InstallmentPaid
	case dateBefore(inst.DueDate, now):
		return models.InstallmentOverdue
	case inst.PaidAmount > 0:
		return models.InstallmentPartial
	default:
		return models.InstallmentPending
	}
}

func dateBefore(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC).Before(time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
