package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/service"
	"github.com/noah-isme/sims-api/pkg/response"
)

// AuditHandler serves the audit trail to administrators.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List audit logs
// @Tags Audit
// @Produce json
// @Param user_id query string false "Acting user"
// @Param action query string false "Action, e.g. RESULTS_PUBLISH"
// @Param resource query string false "Resource type"
// @Param resource_id query string false "Resource ID"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD, inclusive"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	from, ok := dateQuery(c, "date_from")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "date_to")
	if !ok {
		return
	}
	page := pageQuery(c)
	logs, pagination, err := h.service.List(c.Request.Context(), models.AuditFilter{
		UserID:     c.Query("user_id"),
		Action:     c.Query("action"),
		Resource:   c.Query("resource"),
		ResourceID: c.Query("resource_id"),
		From:       from,
		To:         to,
		Page:       page.Page,
		PageSize:   page.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
