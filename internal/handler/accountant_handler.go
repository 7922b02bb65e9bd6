package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/service"
	"github.com/noah-isme/sims-api/pkg/response"
)

// AccountantHandler exposes accountant profiles and their waiver limits.
type AccountantHandler struct {
	service *service.AccountantService
}

// NewAccountantHandler constructs the handler.
func NewAccountantHandler(svc *service.AccountantService) *AccountantHandler {
	return &AccountantHandler{service: svc}
}

// List godoc
// @Summary List accountants
// @Tags Accountants
// @Produce json
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Search by name or phone"
// @Success 200 {object} response.Envelope
// @Router /accountants [get]
func (h *AccountantHandler) List(c *gin.Context) {
	p := pageQuery(c)
	items, pagination, err := h.service.List(c.Request.Context(), models.AccountantFilter{
		Active:    boolQuery(c, "active"),
		Search:    strings.TrimSpace(c.Query("search")),
		Page:      p.Page,
		PageSize:  p.PageSize,
		SortBy:    p.SortBy,
		SortOrder: p.SortOrder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get accountant
// @Tags Accountants
// @Produce json
// @Param id path string true "Accountant ID"
// @Success 200 {object} response.Envelope
// @Router /accountants/{id} [get]
func (h *AccountantHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create accountant
// @Tags Accountants
// @Accept json
// @Produce json
// @Param payload body service.AccountantRequest true "Accountant payload"
// @Success 201 {object} response.Envelope
// @Router /accountants [post]
func (h *AccountantHandler) Create(c *gin.Context) {
	var req service.AccountantRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update accountant
// @Tags Accountants
// @Accept json
// @Produce json
// @Param id path string true "Accountant ID"
// @Param payload body service.AccountantRequest true "Accountant payload"
// @Success 200 {object} response.Envelope
// @Router /accountants/{id} [put]
func (h *AccountantHandler) Update(c *gin.Context) {
	var req service.AccountantRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete accountant
// @Tags Accountants
// @Param id path string true "Accountant ID"
// @Success 204
// @Router /accountants/{id} [delete]
func (h *AccountantHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
