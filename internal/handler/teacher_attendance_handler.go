package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/service"
	"github.com/noah-isme/sims-api/pkg/response"
)

// TeacherAttendanceHandler exposes staff attendance and self check-in.
type TeacherAttendanceHandler struct {
	service *service.TeacherAttendanceService
}

// NewTeacherAttendanceHandler constructs the handler.
func NewTeacherAttendanceHandler(svc *service.TeacherAttendanceService) *TeacherAttendanceHandler {
	return &TeacherAttendanceHandler{service: svc}
}

func (h *TeacherAttendanceHandler) filter(c *gin.Context) (models.TeacherAttendanceFilter, bool) {
	from, ok := dateQuery(c, "date_from")
	if !ok {
		return models.TeacherAttendanceFilter{}, false
	}
	to, ok := dateQuery(c, "date_to")
	if !ok {
		return models.TeacherAttendanceFilter{}, false
	}
	p := pageQuery(c)
	return models.TeacherAttendanceFilter{
		TeacherID: c.Query("teacher_id"),
		Status:    models.AttendanceStatus(c.Query("status")),
		DateFrom:  from,
		DateTo:    to,
		Page:      p.Page,
		PageSize:  p.PageSize,
		SortBy:    p.SortBy,
		SortOrder: p.SortOrder,
	}, true
}

// List godoc
// @Summary List teacher attendance
// @Tags TeacherAttendance
// @Produce json
// @Param teacher_id query string false "Filter by teacher"
// @Param status query string false "Filter by status"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /teacher-attendance [get]
func (h *TeacherAttendanceHandler) List(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	rows, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Summary godoc
// @Summary Teacher attendance counts and rate
// @Tags TeacherAttendance
// @Produce json
// @Param teacher_id query string false "Filter by teacher"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /teacher-attendance/summary [get]
func (h *TeacherAttendanceHandler) Summary(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Record godoc
// @Summary Record a teacher's attendance
// @Tags TeacherAttendance
// @Accept json
// @Produce json
// @Param payload body service.TeacherAttendanceRequest true "Attendance"
// @Success 200 {object} response.Envelope
// @Router /teacher-attendance [post]
func (h *TeacherAttendanceHandler) Record(c *gin.Context) {
	var req service.TeacherAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	row, err := h.service.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// CheckIn godoc
// @Summary Check in for today
// @Tags TeacherAttendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Already checked in"
// @Router /teacher-attendance/check-in [post]
func (h *TeacherAttendanceHandler) CheckIn(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	row, err := h.service.CheckIn(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// CheckOut godoc
// @Summary Check out for today
// @Tags TeacherAttendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teacher-attendance/check-out [post]
func (h *TeacherAttendanceHandler) CheckOut(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	row, err := h.service.CheckOut(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// Delete godoc
// @Summary Delete teacher attendance record
// @Tags TeacherAttendance
// @Param id path string true "Record ID"
// @Success 204
// @Router /teacher-attendance/{id} [delete]
func (h *TeacherAttendanceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
