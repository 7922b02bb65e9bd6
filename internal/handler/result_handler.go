package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/service"
	"github.com/noah-isme/sims-api/pkg/response"
)

// ResultHandler exposes mark entry and result lookups.
type ResultHandler struct {
	results *service.ResultService
	scopes  scopeResolver
}

// NewResultHandler constructs the handler.
func NewResultHandler(results *service.ResultService, scopes scopeResolver) *ResultHandler {
	return &ResultHandler{results: results, scopes: scopes}
}

// List godoc
// @Summary List results
// @Description Students and guardians only see published results of their own students.
// @Tags Results
// @Produce json
// @Param exam_id query string false "Filter by exam"
// @Param student_id query string false "Filter by student"
// @Param subject_id query string false "Filter by subject"
// @Success 200 {object} response.Envelope
// @Router /results [get]
func (h *ResultHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	studentID, restricted, ok := studentScope(c, h.scopes, actor, c.Query("student_id"))
	if !ok {
		return
	}
	p := pageQuery(c)
	results, pagination, err := h.results.List(c.Request.Context(), models.ResultFilter{
		ExamID:        c.Query("exam_id"),
		StudentID:     studentID,
		SubjectID:     c.Query("subject_id"),
		PublishedOnly: restricted,
		Page:          p.Page,
		PageSize:      p.PageSize,
		SortBy:        p.SortBy,
		SortOrder:     p.SortOrder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, pagination)
}

// Get godoc
// @Summary Get result
// @Tags Results
// @Produce json
// @Param id path string true "Result ID"
// @Success 200 {object} response.Envelope
// @Router /results/{id} [get]
func (h *ResultHandler) Get(c *gin.Context) {
	result, err := h.results.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkEntry godoc
// @Summary Enter marks for an exam
// @Description All entries are validated first; one bad entry rejects the batch with details.
// @Tags Results
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.BulkResultRequest true "Marks"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exams/{id}/results [post]
func (h *ResultHandler) BulkEntry(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.BulkResultRequest
	if !bindJSON(c, &req) {
		return
	}
	results, err := h.results.BulkEntry(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil, map[string]interface{}{"stored": len(results)})
}

// Update godoc
// @Summary Update one result
// @Tags Results
// @Accept json
// @Produce json
// @Param id path string true "Result ID"
// @Param payload body service.ResultUpdateRequest true "Marks"
// @Success 200 {object} response.Envelope
// @Router /results/{id} [put]
func (h *ResultHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ResultUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.results.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete result
// @Tags Results
// @Param id path string true "Result ID"
// @Success 204
// @Router /results/{id} [delete]
func (h *ResultHandler) Delete(c *gin.Context) {
	if err := h.results.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ReportCard godoc
// @Summary Student report card for an exam
// @Tags Results
// @Produce json
// @Param id path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/report-cards/{studentId} [get]
func (h *ResultHandler) ReportCard(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	studentID, restricted, ok := studentScope(c, h.scopes, actor, c.Param("studentId"))
	if !ok {
		return
	}
	includeUnpublished := !restricted && (actor.Role.IsAdmin() || actor.Role == models.RoleTeacher)
	card, err := h.results.ReportCard(c.Request.Context(), c.Param("id"), studentID, includeUnpublished)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}
