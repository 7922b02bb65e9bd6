package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/dto"
	"github.com/noah-isme/sims-api/internal/models"
)

type portalService interface {
	Guardian(ctx context.Context, actor models.Actor) (*dto.GuardianPortalResponse, bool, error)
	Accountant(ctx context.Context, actor models.Actor) (*dto.AccountantPortalResponse, bool, error)
}

// PortalHandler serves the guardian and accountant portals.
type PortalHandler struct {
	service portalService
}

// NewPortalHandler constructs the handler.
func NewPortalHandler(service portalService) *PortalHandler {
	return &PortalHandler{service: service}
}

// Guardian godoc
// @Summary Guardian portal
// @Description Attendance rate, pending fees and published results per linked child.
// @Tags Portals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /portal/guardian [get]
func (h *PortalHandler) Guardian(c *gin.Context) {
	serveDashboard(c, h.service.Guardian)
}

// Accountant godoc
// @Summary Accountant portal
// @Description Collections, pending and overdue balances, pending waivers and recent payments.
// @Tags Portals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /portal/accountant [get]
func (h *PortalHandler) Accountant(c *gin.Context) {
	serveDashboard(c, h.service.Accountant)
}
