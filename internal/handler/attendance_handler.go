package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/service"
	"github.com/noah-isme/sims-api/pkg/response"
)

// AttendanceHandler exposes student attendance endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	scopes     scopeResolver
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(attendance *service.AttendanceService, scopes scopeResolver) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, scopes: scopes}
}

// filter builds the attendance filter for the caller; restricted callers are pinned to their students.
func (h *AttendanceHandler) filter(c *gin.Context) (models.AttendanceFilter, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		return models.AttendanceFilter{}, false
	}
	studentID, restricted, ok := studentScope(c, h.scopes, actor, c.Query("student_id"))
	if !ok {
		return models.AttendanceFilter{}, false
	}
	from, ok := dateQuery(c, "date_from")
	if !ok {
		return models.AttendanceFilter{}, false
	}
	to, ok := dateQuery(c, "date_to")
	if !ok {
		return models.AttendanceFilter{}, false
	}
	p := pageQuery(c)
	filter := models.AttendanceFilter{
		StudentID: studentID,
		Status:    models.AttendanceStatus(c.Query("status")),
		DateFrom:  from,
		DateTo:    to,
		Page:      p.Page,
		PageSize:  p.PageSize,
		SortBy:    p.SortBy,
		SortOrder: p.SortOrder,
	}
	if !restricted {
		filter.ClassID = c.Query("class_id")
	}
	return filter, true
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param student_id query string false "Filter by student"
// @Param status query string false "present, absent, late or excused"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	rows, pagination, err := h.attendance.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Summary godoc
// @Summary Attendance counts and rate
// @Tags Attendance
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param student_id query string false "Filter by student"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	summary, err := h.attendance.Summary(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Get godoc
// @Summary Get attendance record
// @Tags Attendance
// @Produce json
// @Param id path string true "Attendance ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	row, err := h.attendance.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// MarkClass godoc
// @Summary Record a class roll call
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.ClassAttendanceRequest true "Roll call"
// @Success 200 {object} response.Envelope
// @Router /attendance/class [post]
func (h *AttendanceHandler) MarkClass(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ClassAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	rows, err := h.attendance.MarkClass(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Update godoc
// @Summary Update attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance ID"
// @Param payload body service.AttendanceUpdateRequest true "Status"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [put]
func (h *AttendanceHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.AttendanceUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	row, err := h.attendance.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// Delete godoc
// @Summary Delete attendance record
// @Tags Attendance
// @Param id path string true "Attendance ID"
// @Success 204
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if err := h.attendance.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
