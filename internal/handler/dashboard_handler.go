package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/dto"
	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/response"
)

type dashboardService interface {
	Admin(ctx context.Context, actor models.Actor) (*dto.AdminDashboardResponse, bool, error)
	Teacher(ctx context.Context, actor models.Actor) (*dto.TeacherDashboardResponse, bool, error)
	Student(ctx context.Context, actor models.Actor) (*dto.StudentDashboardResponse, bool, error)
	Staff(ctx context.Context, actor models.Actor) (*dto.StaffDashboardResponse, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Home godoc
// @Summary Dashboard for the caller's role
// @Description Guardians and accountants use their portals instead.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Home(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	switch {
	case claims.Role.IsAdmin():
		h.Admin(c)
	case claims.Role == models.RoleTeacher:
		h.Teacher(c)
	case claims.Role == models.RoleStudent:
		h.Student(c)
	case claims.Role == models.RoleStaff:
		h.Staff(c)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no dashboard for this role"))
	}
}

// Admin godoc
// @Summary Admin dashboard summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	serveDashboard(c, h.service.Admin)
}

// Teacher godoc
// @Summary Teacher dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/teacher [get]
func (h *DashboardHandler) Teacher(c *gin.Context) {
	serveDashboard(c, h.service.Teacher)
}

// Student godoc
// @Summary Student dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/student [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	serveDashboard(c, h.service.Student)
}

// Staff godoc
// @Summary Staff dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/staff [get]
func (h *DashboardHandler) Staff(c *gin.Context) {
	serveDashboard(c, h.service.Staff)
}

// serveDashboard runs one aggregate for the caller and writes it with cache metadata.
func serveDashboard[T any](c *gin.Context, load func(context.Context, models.Actor) (T, bool, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	start := time.Now()
	data, hit, err := load(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	cachedJSON(c, data, hit, start)
}
