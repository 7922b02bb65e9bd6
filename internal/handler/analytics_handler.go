package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/service"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/response"
)

// AnalyticsHandler exposes school-wide analytics for administrators.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Counts godoc
// @Summary Headcounts of active records
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/counts [get]
func (h *AnalyticsHandler) Counts(c *gin.Context) {
	start := time.Now()
	counts, cacheHit, err := h.analytics.Counts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	cachedJSON(c, counts, cacheHit, start)
}

// Attendance godoc
// @Summary Attendance rate per class
// @Tags Analytics
// @Produce json
// @Param class_id query string false "Restrict to one class"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /analytics/attendance [get]
func (h *AnalyticsHandler) Attendance(c *gin.Context) {
	from, ok := dateQuery(c, "date_from")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "date_to")
	if !ok {
		return
	}
	start := time.Now()
	rates, cacheHit, err := h.analytics.Attendance(c.Request.Context(), models.AnalyticsAttendanceFilter{
		ClassID:  c.Query("class_id"),
		DateFrom: from,
		DateTo:   to,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	cachedJSON(c, rates, cacheHit, start)
}

// Collections godoc
// @Summary Fee collections per month
// @Tags Analytics
// @Produce json
// @Param months query int false "Number of months, default 6"
// @Success 200 {object} response.Envelope
// @Router /analytics/collections [get]
func (h *AnalyticsHandler) Collections(c *gin.Context) {
	months, err := strconv.Atoi(c.DefaultQuery("months", "6"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "months must be a number"))
		return
	}
	start := time.Now()
	series, cacheHit, err := h.analytics.Collections(c.Request.Context(), months)
	if err != nil {
		response.Error(c, err)
		return
	}
	cachedJSON(c, series, cacheHit, start)
}

// ExamPerformance godoc
// @Summary Per-subject performance of an exam
// @Tags Analytics
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /analytics/exams/{id} [get]
func (h *AnalyticsHandler) ExamPerformance(c *gin.Context) {
	start := time.Now()
	rows, cacheHit, err := h.analytics.ExamPerformance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	cachedJSON(c, rows, cacheHit, start)
}

// System returns instrumentation metrics snapshots.
func (h *AnalyticsHandler) System(c *gin.Context) {
	start := time.Now()
	metrics := h.analytics.SystemMetrics()
	cachedJSON(c, metrics, false, start)
}
