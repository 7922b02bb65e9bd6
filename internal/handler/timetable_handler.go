package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/service"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/response"
)

// TimetableHandler exposes periods and the weekly timetable.
type TimetableHandler struct {
	service *service.TimetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// ListPeriods godoc
// @Summary List periods
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods [get]
func (h *TimetableHandler) ListPeriods(c *gin.Context) {
	periods, err := h.service.ListPeriods(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// GetPeriod godoc
// @Summary Get period
// @Tags Timetable
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id} [get]
func (h *TimetableHandler) GetPeriod(c *gin.Context) {
	period, err := h.service.GetPeriod(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// CreatePeriod godoc
// @Summary Create period
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body service.PeriodRequest true "Period payload"
// @Success 201 {object} response.Envelope
// @Router /periods [post]
func (h *TimetableHandler) CreatePeriod(c *gin.Context) {
	var req service.PeriodRequest
	if !bindJSON(c, &req) {
		return
	}
	period, err := h.service.CreatePeriod(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// UpdatePeriod godoc
// @Summary Update period
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Period ID"
// @Param payload body service.PeriodRequest true "Period payload"
// @Success 200 {object} response.Envelope
// @Router /periods/{id} [put]
func (h *TimetableHandler) UpdatePeriod(c *gin.Context) {
	var req service.PeriodRequest
	if !bindJSON(c, &req) {
		return
	}
	period, err := h.service.UpdatePeriod(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// DeletePeriod godoc
// @Summary Delete period
// @Tags Timetable
// @Param id path string true "Period ID"
// @Success 204
// @Router /periods/{id} [delete]
func (h *TimetableHandler) DeletePeriod(c *gin.Context) {
	if err := h.service.DeletePeriod(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func timetableFilter(c *gin.Context) (models.TimetableFilter, bool) {
	filter := models.TimetableFilter{ClassID: c.Query("class_id"), TeacherID: c.Query("teacher_id")}
	if raw := c.Query("day_of_week"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day_of_week must be a number"))
			return filter, false
		}
		filter.DayOfWeek = day
	}
	return filter, true
}

// List godoc
// @Summary Weekly timetable
// @Tags Timetable
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param teacher_id query string false "Filter by teacher"
// @Param day_of_week query int false "1 (Monday) to 7 (Sunday)"
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) List(c *gin.Context) {
	filter, ok := timetableFilter(c)
	if !ok {
		return
	}
	entries, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Today godoc
// @Summary Today's timetable
// @Tags Timetable
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param teacher_id query string false "Filter by teacher"
// @Success 200 {object} response.Envelope
// @Router /timetable/today [get]
func (h *TimetableHandler) Today(c *gin.Context) {
	filter, ok := timetableFilter(c)
	if !ok {
		return
	}
	entries, err := h.service.Today(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Get godoc
// @Summary Get timetable entry
// @Tags Timetable
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	entry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Create godoc
// @Summary Create timetable entry
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body service.TimetableRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Class or teacher slot already taken"
// @Router /timetable [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	var req service.TimetableRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Update timetable entry
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body service.TimetableRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/{id} [put]
func (h *TimetableHandler) Update(c *gin.Context) {
	var req service.TimetableRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Delete timetable entry
// @Tags Timetable
// @Param id path string true "Entry ID"
// @Success 204
// @Router /timetable/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
