package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/service"
	"github.com/noah-isme/sims-api/pkg/response"
)

// LessonPlanHandler exposes the lesson plan workflow.
type LessonPlanHandler struct {
	service *service.LessonPlanService
}

// NewLessonPlanHandler constructs the handler.
func NewLessonPlanHandler(svc *service.LessonPlanService) *LessonPlanHandler {
	return &LessonPlanHandler{service: svc}
}

// List godoc
// @Summary List lesson plans
// @Description Teachers only see their own plans.
// @Tags LessonPlans
// @Produce json
// @Param teacher_id query string false "Filter by teacher"
// @Param class_id query string false "Filter by class"
// @Param subject_id query string false "Filter by subject"
// @Param status query string false "draft, submitted, approved or rejected"
// @Success 200 {object} response.Envelope
// @Router /lesson-plans [get]
func (h *LessonPlanHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	p := pageQuery(c)
	plans, pagination, err := h.service.List(c.Request.Context(), actor, models.LessonPlanFilter{
		TeacherID: c.Query("teacher_id"),
		ClassID:   c.Query("class_id"),
		SubjectID: c.Query("subject_id"),
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
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Counts godoc
// @Summary Lesson plans by status
// @Tags LessonPlans
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lesson-plans/counts [get]
func (h *LessonPlanHandler) Counts(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	counts, err := h.service.StatusCounts(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}

// Get godoc
// @Summary Get lesson plan
// @Tags LessonPlans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /lesson-plans/{id} [get]
func (h *LessonPlanHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	plan, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Create godoc
// @Summary Draft a lesson plan
// @Tags LessonPlans
// @Accept json
// @Produce json
// @Param payload body service.LessonPlanRequest true "Plan payload"
// @Success 201 {object} response.Envelope
// @Router /lesson-plans [post]
func (h *LessonPlanHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.LessonPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// Update godoc
// @Summary Edit a lesson plan
// @Description Editing returns the plan to draft.
// @Tags LessonPlans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body service.LessonPlanRequest true "Plan payload"
// @Success 200 {object} response.Envelope
// @Router /lesson-plans/{id} [put]
func (h *LessonPlanHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.LessonPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Submit godoc
// @Summary Submit a plan for review
// @Tags LessonPlans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /lesson-plans/{id}/submit [post]
func (h *LessonPlanHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	plan, err := h.service.Submit(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Review godoc
// @Summary Approve or reject a submitted plan
// @Tags LessonPlans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body service.LessonPlanReviewRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /lesson-plans/{id}/review [post]
func (h *LessonPlanHandler) Review(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.LessonPlanReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.service.Review(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Delete godoc
// @Summary Delete a lesson plan
// @Tags LessonPlans
// @Param id path string true "Plan ID"
// @Success 204
// @Router /lesson-plans/{id} [delete]
func (h *LessonPlanHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
