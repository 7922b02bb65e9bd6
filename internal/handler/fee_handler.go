package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/service"
	"github.com/noah-isme/sims-api/pkg/response"
)

// FeeHandler exposes the fee ledger: charges, payments, waivers, installment plans and online checkout.
type FeeHandler struct {
	fees   *service.FeeService
	online *service.OnlinePaymentService
	scopes scopeResolver
}

// NewFeeHandler constructs the handler.
func NewFeeHandler(fees *service.FeeService, online *service.OnlinePaymentService, scopes scopeResolver) *FeeHandler {
	return &FeeHandler{fees: fees, online: online, scopes: scopes}
}

// List godoc
// @Summary List fees
// @Description Students and guardians only see fees of their own students.
// @Tags Fees
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param class_id query string false "Filter by class"
// @Param status query string false "unpaid, partial, paid, waived or overdue"
// @Param fee_type query string false "Filter by fee type"
// @Param due_before query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	studentID, restricted, ok := studentScope(c, h.scopes, actor, c.Query("student_id"))
	if !ok {
		return
	}
	dueBefore, ok := dateQuery(c, "due_before")
	if !ok {
		return
	}
	p := pageQuery(c)
	filter := models.FeeFilter{
		StudentID: studentID,
		Status:    models.FeeStatus(c.Query("status")),
		FeeType:   c.Query("fee_type"),
		DueBefore: dueBefore,
		Page:      p.Page,
		PageSize:  p.PageSize,
		SortBy:    p.SortBy,
		SortOrder: p.SortOrder,
	}
	if !restricted {
		filter.ClassID = c.Query("class_id")
	}
	fees, pagination, err := h.fees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, pagination)
}

// Get godoc
// @Summary Get fee
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id} [get]
func (h *FeeHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	fee, err := h.fees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !requireStudent(c, h.scopes, actor, fee.StudentID) {
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// Create godoc
// @Summary Raise a fee
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body service.FeeRequest true "Fee payload"
// @Success 201 {object} response.Envelope
// @Router /fees [post]
func (h *FeeHandler) Create(c *gin.Context) {
	var req service.FeeRequest
	if !bindJSON(c, &req) {
		return
	}
	fee, err := h.fees.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fee)
}

// Update godoc
// @Summary Update a fee
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body service.FeeRequest true "Fee payload"
// @Success 200 {object} response.Envelope
// @Router /fees/{id} [put]
func (h *FeeHandler) Update(c *gin.Context) {
	var req service.FeeRequest
	if !bindJSON(c, &req) {
		return
	}
	fee, err := h.fees.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// Delete godoc
// @Summary Delete a fee
// @Tags Fees
// @Param id path string true "Fee ID"
// @Success 204
// @Router /fees/{id} [delete]
func (h *FeeHandler) Delete(c *gin.Context) {
	if err := h.fees.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RecordPayment godoc
// @Summary Record a payment against a fee
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body service.PaymentRequest true "Payment"
// @Success 201 {object} response.Envelope
// @Router /fees/{id}/payments [post]
func (h *FeeHandler) RecordPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.PaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.fees.RecordPayment(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// ListPayments godoc
// @Summary List payments of a fee
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/payments [get]
func (h *FeeHandler) ListPayments(c *gin.Context) {
	payments, err := h.fees.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Receipt godoc
// @Summary Payment receipt
// @Tags Fees
// @Produce json
// @Param paymentId path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{paymentId}/receipt [get]
func (h *FeeHandler) Receipt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	receipt, err := h.fees.Receipt(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !requireStudent(c, h.scopes, actor, receipt.Fee.StudentID) {
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// RequestWaiver godoc
// @Summary Request a fee waiver
// @Tags Waivers
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body service.WaiverRequest true "Waiver"
// @Success 201 {object} response.Envelope
// @Router /fees/{id}/waivers [post]
func (h *FeeHandler) RequestWaiver(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.WaiverRequest
	if !bindJSON(c, &req) {
		return
	}
	waiver, err := h.fees.RequestWaiver(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, waiver)
}

// ListWaivers godoc
// @Summary List fee waivers
// @Tags Waivers
// @Produce json
// @Param fee_id query string false "Filter by fee"
// @Param student_id query string false "Filter by student"
// @Param status query string false "pending, approved or rejected"
// @Success 200 {object} response.Envelope
// @Router /waivers [get]
func (h *FeeHandler) ListWaivers(c *gin.Context) {
	p := pageQuery(c)
	waivers, pagination, err := h.fees.ListWaivers(c.Request.Context(), models.FeeWaiverFilter{
		FeeID:     c.Query("fee_id"),
		StudentID: c.Query("student_id"),
		Status:    c.Query("status"),
		Page:      p.Page,
		PageSize:  p.PageSize,
		SortBy:    p.SortBy,
		SortOrder: p.SortOrder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, waivers, pagination)
}

// DecideWaiver godoc
// @Summary Approve or reject a waiver
// @Description Accountants can only approve within their configured limits.
// @Tags Waivers
// @Accept json
// @Produce json
// @Param id path string true "Waiver ID"
// @Param payload body service.WaiverDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope "Above the approver's limit"
// @Router /waivers/{id}/decision [post]
func (h *FeeHandler) DecideWaiver(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.WaiverDecisionRequest
	if !bindJSON(c, &req) {
		return
	}
	waiver, err := h.fees.DecideWaiver(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, waiver, nil)
}

// CreatePlan godoc
// @Summary Split a fee into installments
// @Tags Installments
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body service.InstallmentPlanRequest true "Plan"
// @Success 201 {object} response.Envelope
// @Router /fees/{id}/plan [post]
func (h *FeeHandler) CreatePlan(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.InstallmentPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.fees.CreatePlan(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// GetPlan godoc
// @Summary Installment plan of a fee
// @Tags Installments
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/plan [get]
func (h *FeeHandler) GetPlan(c *gin.Context) {
	plan, err := h.fees.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// PayInstallment godoc
// @Summary Pay one installment
// @Tags Installments
// @Accept json
// @Produce json
// @Param id path string true "Installment ID"
// @Param payload body service.PaymentRequest true "Payment"
// @Success 201 {object} response.Envelope
// @Router /installments/{id}/payments [post]
func (h *FeeHandler) PayInstallment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.PaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.fees.PayInstallment(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Checkout godoc
// @Summary Open an online checkout for a fee
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 201 {object} response.Envelope
// @Failure 503 {object} response.Envelope "Gateway not configured"
// @Router /fees/{id}/checkout [post]
func (h *FeeHandler) Checkout(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	fee, err := h.fees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !requireStudent(c, h.scopes, actor, fee.StudentID) {
		return
	}
	order, err := h.online.Checkout(c.Request.Context(), fee.ID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// Orders godoc
// @Summary Online checkouts opened for a fee
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/orders [get]
func (h *FeeHandler) Orders(c *gin.Context) {
	orders, err := h.online.Orders(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orders, nil)
}
