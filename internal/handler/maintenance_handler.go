package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/service"
	"github.com/noah-isme/sims-api/pkg/response"
)

// MaintenanceHandler exposes the maintenance commands to administrators.
type MaintenanceHandler struct {
	service *service.MaintenanceService
}

// NewMaintenanceHandler constructs the handler.
func NewMaintenanceHandler(svc *service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{service: svc}
}

// SyncRoles godoc
// @Summary Reconcile legacy roles with permission roles
// @Tags Maintenance
// @Produce json
// @Param dry_run query bool false "Report without writing"
// @Param prune query bool false "Remove permission roles that disagree with the legacy column"
// @Success 200 {object} response.Envelope
// @Router /admin/maintenance/roles-sync [post]
func (h *MaintenanceHandler) SyncRoles(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var opts service.RoleSyncOptions
	if v := boolQuery(c, "dry_run"); v != nil {
		opts.DryRun = *v
	}
	if v := boolQuery(c, "prune"); v != nil {
		opts.Prune = *v
	}
	report, err := h.service.SyncRoles(c.Request.Context(), opts, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// CheckIntegrity godoc
// @Summary Run the data integrity checks
// @Tags Maintenance
// @Produce json
// @Param fix query bool false "Repair fee statuses and resync roles"
// @Success 200 {object} response.Envelope
// @Router /admin/maintenance/integrity [post]
func (h *MaintenanceHandler) CheckIntegrity(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	fix := false
	if v := boolQuery(c, "fix"); v != nil {
		fix = *v
	}
	report, err := h.service.CheckIntegrity(c.Request.Context(), fix, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, map[string]interface{}{"issues": len(report.Issues)})
}
