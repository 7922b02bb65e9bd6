package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/dto"
	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/service"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/response"
)

type exportService interface {
	RankList(ctx context.Context, examID, rawFormat string) (*dto.ExportResponse, error)
	ReportCard(ctx context.Context, actor models.Actor, examID, studentID string) (*dto.ExportResponse, error)
	FeeReceipt(ctx context.Context, actor models.Actor, paymentID string) (*dto.ExportResponse, error)
	AttendanceSheet(ctx context.Context, req service.AttendanceSheetRequest) (*dto.ExportResponse, error)
	Resolve(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler renders printable documents and serves them through signed links.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// RankList godoc
// @Summary Export an exam rank list
// @Tags Exports
// @Produce json
// @Param id path string true "Exam ID"
// @Param format query string false "csv (default), pdf or xlsx"
// @Success 201 {object} response.Envelope
// @Router /exports/exams/{id}/ranks [post]
func (h *ExportHandler) RankList(c *gin.Context) {
	resp, err := h.service.RankList(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// ReportCard godoc
// @Summary Export a report card as PDF
// @Tags Exports
// @Produce json
// @Param id path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Success 201 {object} response.Envelope
// @Router /exports/exams/{id}/report-cards/{studentId} [post]
func (h *ExportHandler) ReportCard(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	resp, err := h.service.ReportCard(c.Request.Context(), actor, c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// FeeReceipt godoc
// @Summary Export a payment receipt as PDF
// @Tags Exports
// @Produce json
// @Param paymentId path string true "Payment ID"
// @Success 201 {object} response.Envelope
// @Router /exports/payments/{paymentId}/receipt [post]
func (h *ExportHandler) FeeReceipt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	resp, err := h.service.FeeReceipt(c.Request.Context(), actor, c.Param("paymentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// AttendanceSheet godoc
// @Summary Export a class attendance sheet
// @Tags Exports
// @Produce json
// @Param class_id query string true "Class ID"
// @Param date_from query string true "YYYY-MM-DD"
// @Param date_to query string true "YYYY-MM-DD"
// @Param format query string false "csv (default) or xlsx"
// @Success 201 {object} response.Envelope
// @Router /exports/attendance [post]
func (h *ExportHandler) AttendanceSheet(c *gin.Context) {
	var req service.AttendanceSheetRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	resp, err := h.service.AttendanceSheet(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Download godoc
// @Summary Download an export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope "Invalid or expired token"
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	dl, err := h.service.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer dl.Body.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", dl.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, -1, dl.ContentType, dl.Body, nil)
}
