package models

import (
	"math"
	"time"
)

// FeeStatus enumerates the lifecycle of a fee.
type FeeStatus string

const (
	FeeUnpaid  FeeStatus = "unpaid"
	FeePartial FeeStatus = "partial"
	FeePaid    FeeStatus = "paid"
	FeeWaived  FeeStatus = "waived"
	FeeOverdue FeeStatus = "overdue"
)

// Fee is a charge raised against a student.
type Fee struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	FeeType      string    `db:"fee_type" json:"fee_type"`
	Description  *string   `db:"description" json:"description,omitempty"`
	Amount       float64   `db:"amount" json:"amount"`
	WaivedAmount float64   `db:"waived_amount" json:"waived_amount"`
	PaidAmount   float64   `db:"paid_amount" json:"paid_amount"`
	DueDate      time.Time `db:"due_date" json:"due_date"`
	Status       FeeStatus `db:"status" json:"status"`
	AcademicYear *string   `db:"academic_year" json:"academic_year,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// NetAmount is the amount left to collect after waivers.
func (f Fee) NetAmount() float64 {
	return Round2(math.Max(0, f.Amount-f.WaivedAmount))
}

// PendingAmount is max(0, amount - waived - paid).
func (f Fee) PendingAmount() float64 {
	return Round2(math.Max(0, f.Amount-f.WaivedAmount-f.PaidAmount))
}

// ResolveStatus derives the status from the amounts and due date.
func (f Fee) ResolveStatus(now time.Time) FeeStatus {
	switch {
	case f.WaivedAmount > 0 && f.WaivedAmount >= f.Amount:
		return FeeWaived
	case f.PendingAmount() == 0:
		return FeePaid
	case dateOnly(f.DueDate).Before(dateOnly(now)):
		return FeeOverdue
	case f.PaidAmount > 0:
		return FeePartial
	default:
		return FeeUnpaid
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FeeDetail adds student and class names plus the computed pending amount.
type FeeDetail struct {
	Fee
	StudentName   string  `db:"student_name" json:"student_name"`
	AdmissionNo   string  `db:"admission_no" json:"admission_no"`
	ClassName     *string `db:"class_name" json:"class_name,omitempty"`
	PendingAmount float64 `db:"-" json:"pending_amount"`
}

// FeeFilter defines filters for listing fees.
type FeeFilter struct {
	StudentID  string
	StudentIDs []string
	ClassID    string
	Status     FeeStatus
	FeeType    string
	DueBefore  *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// Payment methods.
const (
	PaymentCash   = "cash"
	PaymentBank   = "bank"
	PaymentOnline = "online"
)

// FeePayment is a single collection against a fee.
type FeePayment struct {
	ID            string    `db:"id" json:"id"`
	FeeID         string    `db:"fee_id" json:"fee_id"`
	InstallmentID *string   `db:"installment_id" json:"installment_id,omitempty"`
	Amount        float64   `db:"amount" json:"amount"`
	Method        string    `db:"method" json:"method"`
	Reference     *string   `db:"reference" json:"reference,omitempty"`
	PaidAt        time.Time `db:"paid_at" json:"paid_at"`
	ReceivedBy    *string   `db:"received_by" json:"received_by,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// FeePaymentDetail joins the student onto a payment.
type FeePaymentDetail struct {
	FeePayment
	FeeType     string `db:"fee_type" json:"fee_type"`
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
}

// Waiver types and statuses.
const (
	WaiverPercentage = "percentage"
	WaiverFixed      = "fixed"

	WaiverPending  = "pending"
	WaiverApproved = "approved"
	WaiverRejected = "rejected"
)

// FeeWaiver is a requested reduction on a fee.
type FeeWaiver struct {
	ID          string     `db:"id" json:"id"`
	FeeID       string     `db:"fee_id" json:"fee_id"`
	WaiverType  string     `db:"waiver_type" json:"waiver_type"`
	Value       float64    `db:"value" json:"value"`
	Amount      float64    `db:"amount" json:"amount"`
	Reason      string     `db:"reason" json:"reason"`
	Status      string     `db:"status" json:"status"`
	RequestedBy *string    `db:"requested_by" json:"requested_by,omitempty"`
	DecidedBy   *string    `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt   *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	Remarks     *string    `db:"remarks" json:"remarks,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// FeeWaiverDetail adds fee and student context.
type FeeWaiverDetail struct {
	FeeWaiver
	FeeType     string  `db:"fee_type" json:"fee_type"`
	FeeAmount   float64 `db:"fee_amount" json:"fee_amount"`
	StudentID   string  `db:"student_id" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
}

// FeeWaiverFilter defines filters for listing waivers.
type FeeWaiverFilter struct {
	FeeID     string
	StudentID string
	Status    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Installment frequencies and statuses.
const (
	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
	FrequencyMonthly  = "monthly"

	InstallmentPending = "pending"
	InstallmentPartial = "partial"
	InstallmentPaid    = "paid"
	InstallmentOverdue = "overdue"
)

// InstallmentPlan splits a fee into scheduled installments.
type InstallmentPlan struct {
	ID               string        `db:"id" json:"id"`
	FeeID            string        `db:"fee_id" json:"fee_id"`
	InstallmentCount int           `db:"installment_count" json:"installment_count"`
	Frequency        string        `db:"frequency" json:"frequency"`
	StartDate        time.Time     `db:"start_date" json:"start_date"`
	TotalAmount      float64       `db:"total_amount" json:"total_amount"`
	CreatedBy        *string       `db:"created_by" json:"created_by,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	Installments     []Installment `db:"-" json:"installments"`
}

// Installment is one scheduled sub-payment of a plan.
type Installment struct {
	ID         string     `db:"id" json:"id"`
	PlanID     string     `db:"plan_id" json:"plan_id"`
	FeeID      string     `db:"fee_id" json:"fee_id"`
	Sequence   int        `db:"sequence" json:"sequence"`
	Amount     float64    `db:"amount" json:"amount"`
	PaidAmount float64    `db:"paid_amount" json:"paid_amount"`
	DueDate    time.Time  `db:"due_date" json:"due_date"`
	Status     string     `db:"status" json:"status"`
	PaidAt     *time.Time `db:"paid_at" json:"paid_at,omitempty"`
}

// Remaining is the unpaid part of the installment.
func (i Installment) Remaining() float64 {
	return Round2(math.Max(0, i.Amount-i.PaidAmount))
}

// Payment order statuses.
const (
	OrderPending = "pending"
	OrderSettled = "settled"
	OrderFailed  = "failed"
)

// PaymentOrder tracks an online checkout for a fee.
type PaymentOrder struct {
	ID          string    `db:"id" json:"id"`
	FeeID       string    `db:"fee_id" json:"fee_id"`
	OrderID     string    `db:"order_id" json:"order_id"`
	GrossAmount float64   `db:"gross_amount" json:"gross_amount"`
	Status      string    `db:"status" json:"status"`
	SnapToken   *string   `db:"snap_token" json:"snap_token,omitempty"`
	RedirectURL *string   `db:"redirect_url" json:"redirect_url,omitempty"`
	CreatedBy   *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Receipt is the printable summary of a payment.
type Receipt struct {
	Payment FeePayment `json:"payment"`
	Fee     FeeDetail  `json:"fee"`
}
