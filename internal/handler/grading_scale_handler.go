package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/service"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/response"
)

// GradingScaleHandler exposes grading bands.
type GradingScaleHandler struct {
	service *service.GradingScaleService
}

// NewGradingScaleHandler constructs the handler.
func NewGradingScaleHandler(svc *service.GradingScaleService) *GradingScaleHandler {
	return &GradingScaleHandler{service: svc}
}

// List godoc
// @Summary List grading bands
// @Tags Grading
// @Produce json
// @Param active query bool false "Only active bands"
// @Success 200 {object} response.Envelope
// @Router /grading-scales [get]
func (h *GradingScaleHandler) List(c *gin.Context) {
	activeOnly := false
	if v := boolQuery(c, "active"); v != nil {
		activeOnly = *v
	}
	bands, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bands, nil)
}

// Get godoc
// @Summary Get grading band
// @Tags Grading
// @Produce json
// @Param id path string true "Band ID"
// @Success 200 {object} response.Envelope
// @Router /grading-scales/{id} [get]
func (h *GradingScaleHandler) Get(c *gin.Context) {
	band, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, band, nil)
}

// Create godoc
// @Summary Create grading band
// @Tags Grading
// @Accept json
// @Produce json
// @Param payload body service.GradingBandRequest true "Band payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Overlaps an active band"
// @Router /grading-scales [post]
func (h *GradingScaleHandler) Create(c *gin.Context) {
	var req service.GradingBandRequest
	if !bindJSON(c, &req) {
		return
	}
	band, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, band)
}

// Update godoc
// @Summary Update grading band
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Band ID"
// @Param payload body service.GradingBandRequest true "Band payload"
// @Success 200 {object} response.Envelope
// @Router /grading-scales/{id} [put]
func (h *GradingScaleHandler) Update(c *gin.Context) {
	var req service.GradingBandRequest
	if !bindJSON(c, &req) {
		return
	}
	band, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, band, nil)
}

// Delete godoc
// @Summary Delete grading band
// @Tags Grading
// @Param id path string true "Band ID"
// @Success 204
// @Router /grading-scales/{id} [delete]
func (h *GradingScaleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Preview godoc
// @Summary Resolve the grade for a mark
// @Tags Grading
// @Produce json
// @Param marks query number true "Marks obtained"
// @Param full_mark query number true "Full mark"
// @Param pass_mark query number true "Pass mark"
// @Success 200 {object} response.Envelope
// @Router /grading-scales/preview [get]
func (h *GradingScaleHandler) Preview(c *gin.Context) {
	var req service.GradePreviewRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	outcome, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}
