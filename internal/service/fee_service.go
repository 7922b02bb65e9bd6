package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/events"
)

type feeRepository interface {
	List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.FeeDetail, error)
	Create(ctx context.Context, fee *models.Fee) error
	Update(ctx context.Context, fee *models.Fee) error
	Delete(ctx context.Context, id string) error
	RecordPayment(ctx context.Context, fee models.Fee, prevPaid float64, payment *models.FeePayment, installment *models.Installment) error
	ListPayments(ctx context.Context, feeID string) ([]models.FeePaymentDetail, error)
	FindPayment(ctx context.Context, id string) (*models.FeePaymentDetail, error)
	MarkOverdue(ctx context.Context, today time.Time) (int64, error)
	CreateWaiver(ctx context.Context, waiver *models.FeeWaiver) error
	FindWaiver(ctx context.Context, id string) (*models.FeeWaiverDetail, error)
	ListWaivers(ctx context.Context, filter models.FeeWaiverFilter) ([]models.FeeWaiverDetail, int, error)
	DecideWaiver(ctx context.Context, waiver models.FeeWaiver, fee *models.Fee, prevWaived, prevPaid float64) error
	CreatePlan(ctx context.Context, plan *models.InstallmentPlan) error
	FindPlanByFee(ctx context.Context, feeID string) (*models.InstallmentPlan, error)
	FindInstallment(ctx context.Context, id string) (*models.Installment, error)
	MarkInstallmentsOverdue(ctx context.Context, today time.Time) (int64, error)
}

type accountantByUserLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.Accountant, error)
}

// FeeRequest is the payload for raising or editing a fee.
type FeeRequest struct {
	StudentID    string  `json:"student_id" validate:"required,uuid"`
	FeeType      string  `json:"fee_type" validate:"required,max=64"`
	Description  string  `json:"description" validate:"omitempty,max=255"`
	Amount       float64 `json:"amount" validate:"gt=0"`
	DueDate      string  `json:"due_date" validate:"required,datetime=2006-01-02"`
	AcademicYear string  `json:"academic_year" validate:"omitempty,max=16"`
}

// PaymentRequest records a collection against a fee or installment.
type PaymentRequest struct {
	Amount    float64 `json:"amount" validate:"gte=0"`
	Method    string  `json:"method" validate:"required,oneof=cash bank online"`
	Reference string  `json:"reference" validate:"omitempty,max=128"`
}

// WaiverRequest asks for a reduction of a fee.
type WaiverRequest struct {
	WaiverType string  `json:"waiver_type" validate:"required,oneof=percentage fixed"`
	Value      float64 `json:"value" validate:"gt=0"`
	Reason     string  `json:"reason" validate:"required,max=512"`
}

// WaiverDecisionRequest approves or rejects a pending waiver.
type WaiverDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Remarks  string `json:"remarks" validate:"omitempty,max=512"`
}

// InstallmentPlanRequest splits the pending amount of a fee.
type InstallmentPlanRequest struct {
	Count     int    `json:"installment_count" validate:"required,min=2,max=24"`
	Frequency string `json:"frequency" validate:"required,oneof=weekly biweekly monthly"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
}

// FeeService implements the fee ledger: charges, payments, waivers and installment plans.
type FeeService struct {
	repo        feeRepository
	students    studentLookup
	accountants accountantByUserLookup
	audit       auditLogger
	bus         eventPublisher
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewFeeService constructs FeeService.
func NewFeeService(repo feeRepository, students studentLookup, accountants accountantByUserLookup, audit auditLogger, bus eventPublisher, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{
		repo:        repo,
		students:    students,
		accountants: accountants,
		audit:       audit,
		bus:         bus,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns fees with pagination.
func (s *FeeService) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, *models.Pagination, error) {
	fees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list fees")
	}
	return fees, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one fee with its pending amount.
func (s *FeeService) Get(ctx context.Context, id string) (*models.FeeDetail, error) {
	fee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "fee")
	}
	fee.PendingAmount = fee.Fee.PendingAmount()
	return fee, nil
}

// Create raises a fee against a student.
func (s *FeeService) Create(ctx context.Context, req FeeRequest) (*models.FeeDetail, error) {
	fee := &models.Fee{}
	if err := s.apply(ctx, fee, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, fee); err != nil {
		return nil, internalError(err, "failed to create fee")
	}
	return s.Get(ctx, fee.ID)
}

// Update edits a fee. The amount may not drop below what is already waived and paid.
func (s *FeeService) Update(ctx context.Context, id string, req FeeRequest) (*models.FeeDetail, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fee := existing.Fee
	if err := s.apply(ctx, &fee, req); err != nil {
		return nil, err
	}
	if fee.Amount < models.Round2(fee.WaivedAmount+fee.PaidAmount) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount is below the waived and paid total")
	}
	if err := s.repo.Update(ctx, &fee); err != nil {
		return nil, internalError(err, "failed to update fee")
	}
	return s.Get(ctx, id)
}

// Delete removes a fee that has no payments.
func (s *FeeService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return appErrors.Clone(appErrors.ErrConflict, "fee already has payments")
		}
		return internalError(err, "failed to delete fee")
	}
	return nil
}

// RecordPayment collects money against a fee. The amount must be positive and within the pending amount.
func (s *FeeService) RecordPayment(ctx context.Context, feeID string, req PaymentRequest, actor models.Actor) (*models.FeePayment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment payload")
	}
	fee, err := s.Get(ctx, feeID)
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, fee.Fee, req, nil, actor)
}

// ListPayments returns the payments of a fee.
func (s *FeeService) ListPayments(ctx context.Context, feeID string) ([]models.FeePaymentDetail, error) {
	if _, err := s.Get(ctx, feeID); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, feeID)
	if err != nil {
		return nil, internalError(err, "failed to list payments")
	}
	return payments, nil
}

// Receipt returns a payment together with the state of its fee.
func (s *FeeService) Receipt(ctx context.Context, paymentID string) (*models.Receipt, error) {
	payment, err := s.repo.FindPayment(ctx, paymentID)
	if err != nil {
		return nil, lookupError(err, "payment")
	}
	fee, err := s.Get(ctx, payment.FeeID)
	if err != nil {
		return nil, err
	}
	return &models.Receipt{Payment: payment.FeePayment, Fee: *fee}, nil
}

// RequestWaiver files a pending waiver. Its amount is capped at the fee's pending amount.
func (s *FeeService) RequestWaiver(ctx context.Context, feeID string, req WaiverRequest, actor models.Actor) (*models.FeeWaiver, error) {
	req.WaiverType = strings.ToLower(strings.TrimSpace(req.WaiverType))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid waiver payload")
	}
	if req.WaiverType == models.WaiverPercentage && req.Value > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "percentage waivers cannot exceed 100")
	}
	fee, err := s.Get(ctx, feeID)
	if err != nil {
		return nil, err
	}
	amount := waiverAmount(fee.Fee, req.WaiverType, req.Value)
	if amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "fee has nothing pending to waive")
	}
	waiver := &models.FeeWaiver{
		FeeID:       feeID,
		WaiverType:  req.WaiverType,
		Value:       models.Round2(req.Value),
		Amount:      amount,
		Reason:      req.Reason,
		Status:      models.WaiverPending,
		RequestedBy: strPtr(actor.UserID),
	}
	if err := s.repo.CreateWaiver(ctx, waiver); err != nil {
		return nil, internalError(err, "failed to request waiver")
	}
	return waiver, nil
}

// ListWaivers returns waivers with pagination.
func (s *FeeService) ListWaivers(ctx context.Context, filter models.FeeWaiverFilter) ([]models.FeeWaiverDetail, *models.Pagination, error) {
	waivers, total, err := s.repo.ListWaivers(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list waivers")
	}
	return waivers, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// DecideWaiver approves or rejects a pending waiver. Accountants approve only within their limits.
func (s *FeeService) DecideWaiver(ctx context.Context, waiverID string, req WaiverDecisionRequest, actor models.Actor) (*models.FeeWaiver, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid waiver decision")
	}
	detail, err := s.repo.FindWaiver(ctx, waiverID)
	if err != nil {
		return nil, lookupError(err, "waiver")
	}
	if detail.Status != models.WaiverPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "waiver has already been decided")
	}
	fee, err := s.Get(ctx, detail.FeeID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	waiver := detail.FeeWaiver
	waiver.Status = req.Decision
	waiver.DecidedBy = strPtr(actor.UserID)
	waiver.DecidedAt = &now
	waiver.Remarks = strPtr(req.Remarks)

	var updated *models.Fee
	if req.Decision == models.WaiverApproved {
		waiver.Amount = waiverAmount(fee.Fee, waiver.WaiverType, waiver.Value)
		if waiver.Amount <= 0 {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "fee has nothing pending to waive")
		}
		if err := s.checkApprover(ctx, actor, waiver); err != nil {
			return nil, err
		}
		next := fee.Fee
		next.WaivedAmount = models.Round2(next.WaivedAmount + waiver.Amount)
		next.Status = next.ResolveStatus(now)
		updated = &next
	}
	if err := s.repo.DecideWaiver(ctx, waiver, updated, fee.WaivedAmount, fee.PaidAmount); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "waiver or fee changed concurrently")
		}
		return nil, internalError(err, "failed to decide waiver")
	}

	recordAudit(ctx, s.audit, s.logger, actorAudit(actor, models.AuditActionWaiverDecision, "fee_waiver", waiver.ID, map[string]interface{}{
		"status": waiver.Status,
		"amount": waiver.Amount,
	}))
	var requestedBy string
	if waiver.RequestedBy != nil {
		requestedBy = *waiver.RequestedBy
	}
	publishEvent(ctx, s.bus, s.logger, events.TopicWaiverDecided, events.WaiverDecided{
		WaiverID:    waiver.ID,
		FeeID:       waiver.FeeID,
		StudentID:   fee.StudentID,
		Status:      waiver.Status,
		Amount:      waiver.Amount,
		RequestedBy: requestedBy,
	})
	return &waiver, nil
}

// CreatePlan splits the pending amount of a fee into scheduled installments.
func (s *FeeService) CreatePlan(ctx context.Context, feeID string, req InstallmentPlanRequest, actor models.Actor) (*models.InstallmentPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid installment plan payload")
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	fee, err := s.Get(ctx, feeID)
	if err != nil {
		return nil, err
	}
	if fee.PendingAmount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "fee has nothing pending")
	}

	amounts := splitInstallments(fee.PendingAmount, req.Count)
	dueDates := installmentDueDates(start, req.Count, req.Frequency)
	plan := &models.InstallmentPlan{
		FeeID:            feeID,
		InstallmentCount: req.Count,
		Frequency:        req.Frequency,
		StartDate:        start,
		TotalAmount:      fee.PendingAmount,
		CreatedBy:        strPtr(actor.UserID),
		Installments:     make([]models.Installment, req.Count),
	}
	for i := range plan.Installments {
		plan.Installments[i] = models.Installment{
			Sequence: i + 1,
			Amount:   amounts[i],
			DueDate:  dueDates[i],
			Status:   models.InstallmentPending,
		}
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, writeError(err, "failed to create installment plan", "fee already has an installment plan")
	}
	return plan, nil
}

// GetPlan returns the installment plan of a fee.
func (s *FeeService) GetPlan(ctx context.Context, feeID string) (*models.InstallmentPlan, error) {
	plan, err := s.repo.FindPlanByFee(ctx, feeID)
	if err != nil {
		return nil, lookupError(err, "installment plan")
	}
	return plan, nil
}

// PayInstallment records a payment tagged with an installment. A zero amount pays the remainder.
func (s *FeeService) PayInstallment(ctx context.Context, installmentID string, req PaymentRequest, actor models.Actor) (*models.FeePayment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment payload")
	}
	inst, err := s.repo.FindInstallment(ctx, installmentID)
	if err != nil {
		return nil, lookupError(err, "installment")
	}
	remaining := inst.Remaining()
	if remaining <= 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "installment is already paid")
	}
	if req.Amount == 0 {
		req.Amount = remaining
	}
	if models.Round2(req.Amount) > remaining {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount exceeds the installment remainder")
	}
	fee, err := s.Get(ctx, inst.FeeID)
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, fee.Fee, req, inst, actor)
}

// SweepOverdue flags fees and installments that are past due with money outstanding.
func (s *FeeService) SweepOverdue(ctx context.Context) (fees, installments int64, err error) {
	today := truncateDay(s.now())
	if fees, err = s.repo.MarkOverdue(ctx, today); err != nil {
		return 0, 0, internalError(err, "failed to mark overdue fees")
	}
	if installments, err = s.repo.MarkInstallmentsOverdue(ctx, today); err != nil {
		return fees, 0, internalError(err, "failed to mark overdue installments")
	}
	if fees > 0 || installments > 0 {
		s.logger.Info("overdue sweep", zap.Int64("fees", fees), zap.Int64("installments", installments))
	}
	return fees, installments, nil
}

func (s *FeeService) collect(ctx context.Context, fee models.Fee, req PaymentRequest, inst *models.Installment, actor models.Actor) (*models.FeePayment, error) {
	amount := models.Round2(req.Amount)
	pending := fee.PendingAmount()
	if amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	if amount > pending {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "amount exceeds the pending amount"), map[string]float64{"pending": pending})
	}

	now := s.now().UTC()
	prevPaid := fee.PaidAmount
	fee.PaidAmount = models.Round2(fee.PaidAmount + amount)
	fee.Status = fee.ResolveStatus(now)
	payment := &models.FeePayment{
		FeeID:      fee.ID,
		Amount:     amount,
		Method:     req.Method,
		Reference:  strPtr(req.Reference),
		PaidAt:     now,
		ReceivedBy: strPtr(actor.UserID),
	}
	if inst != nil {
		payment.InstallmentID = &inst.ID
		inst.PaidAmount = models.Round2(inst.PaidAmount + amount)
		inst.Status = installmentStatus(*inst, now)
		if inst.Status == models.InstallmentPaid {
			inst.PaidAt = &now
		}
	}
	if err := s.repo.RecordPayment(ctx, fee, prevPaid, payment, inst); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "fee changed concurrently, retry the payment")
		}
		return nil, internalError(err, "failed to record payment")
	}

	s.logger.Info("fee payment recorded", zap.String("fee_id", fee.ID), zap.Float64("amount", amount), zap.String("method", req.Method))
	recordAudit(ctx, s.audit, s.logger, actorAudit(actor, models.AuditActionPaymentRecord, "fee", fee.ID, map[string]interface{}{
		"payment_id": payment.ID,
		"amount":     amount,
		"method":     req.Method,
	}))
	publishEvent(ctx, s.bus, s.logger, events.TopicFeePaymentRecorded, events.FeePaymentRecorded{
		FeeID:     fee.ID,
		PaymentID: payment.ID,
		StudentID: fee.StudentID,
		Amount:    amount,
		Pending:   fee.PendingAmount(),
		Method:    req.Method,
	})
	return payment, nil
}

func (s *FeeService) checkApprover(ctx context.Context, actor models.Actor, waiver models.FeeWaiver) error {
	var accountant *models.Accountant
	if actor.Role == models.RoleAccountant && s.accountants != nil {
		found, err := s.accountants.FindByUserID(ctx, actor.UserID)
		if err != nil && !isNotFound(err) {
			return internalError(err, "failed to load approver limits")
		}
		accountant = found
	}
	if !canApproveWaiver(actor.Role, accountant, waiver) {
		if actor.Role == models.RoleAccountant {
			return appErrors.ErrWaiverLimit
		}
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators and accountants can approve waivers")
	}
	return nil
}

func (s *FeeService) apply(ctx context.Context, fee *models.Fee, req FeeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid fee payload")
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		return err
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if isNotFound(err) {
			return appErrors.Clone(appErrors.ErrValidation, "student does not exist")
		}
		return internalError(err, "failed to validate student")
	}
	fee.StudentID = req.StudentID
	fee.FeeType = strings.TrimSpace(req.FeeType)
	fee.Description = strPtr(req.Description)
	fee.Amount = models.Round2(req.Amount)
	fee.DueDate = due
	fee.AcademicYear = strPtr(req.AcademicYear)
	fee.Status = fee.ResolveStatus(s.now())
	return nil
}
