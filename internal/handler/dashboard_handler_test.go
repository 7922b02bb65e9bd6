package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sims-api/internal/dto"
	"github.com/noah-isme/sims-api/internal/middleware"
	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type fakeDashboardSrv struct {
	adminResp   *dto.AdminDashboardResponse
	adminHit    bool
	teacherResp *dto.TeacherDashboardResponse
	studentErr  error
	lastActor   models.Actor
}

func (f *fakeDashboardSrv) Admin(_ context.Context, actor models.Actor) (*dto.AdminDashboardResponse, bool, error) {
	f.lastActor = actor
	return f.adminResp, f.adminHit, nil
}

func (f *fakeDashboardSrv) Teacher(_ context.Context, actor models.Actor) (*dto.TeacherDashboardResponse, bool, error) {
	f.lastActor = actor
	return f.teacherResp, false, nil
}

func (f *fakeDashboardSrv) Student(_ context.Context, actor models.Actor) (*dto.StudentDashboardResponse, bool, error) {
	f.lastActor = actor
	return nil, false, f.studentErr
}

func (f *fakeDashboardSrv) Staff(_ context.Context, actor models.Actor) (*dto.StaffDashboardResponse, bool, error) {
	f.lastActor = actor
	return &dto.StaffDashboardResponse{Date: "2025-03-03"}, false, nil
}

func dashboardContext(path string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, path, nil)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func TestDashboardHandlerRequiresUser(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{})
	c, rec := dashboardContext("/dashboard/admin", nil)

	handler.Admin(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerAdminSuccess(t *testing.T) {
	srv := &fakeDashboardSrv{
		adminResp: &dto.AdminDashboardResponse{Date: "2025-03-03"},
		adminHit:  true,
	}
	handler := NewDashboardHandler(srv)
	c, rec := dashboardContext("/dashboard/admin", &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Admin(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	assert.Equal(t, "2025-03-03", envelope.Data["date"])
	assert.Equal(t, "admin-1", srv.lastActor.UserID)
}

func TestDashboardHandlerHomeDispatchesByRole(t *testing.T) {
	srv := &fakeDashboardSrv{teacherResp: &dto.TeacherDashboardResponse{TeacherID: "teacher-1"}}
	handler := NewDashboardHandler(srv)

	c, rec := dashboardContext("/dashboard", &models.JWTClaims{UserID: "u-teacher", Role: models.RoleTeacher})
	handler.Home(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "teacher-1", envelope.Data["teacherId"])
	assert.Equal(t, false, envelope.Meta["cache_hit"])

	c, rec = dashboardContext("/dashboard", &models.JWTClaims{UserID: "u-parent", Role: models.RoleGuardian})
	handler.Home(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDashboardHandlerPropagatesServiceError(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{studentErr: appErrors.Clone(appErrors.ErrForbidden, "no student profile for this account")})
	c, rec := dashboardContext("/dashboard/student", &models.JWTClaims{UserID: "u-stu", Role: models.RoleStudent})

	handler.Student(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type fakePortalSrv struct{ hit bool }

func (f fakePortalSrv) Guardian(context.Context, models.Actor) (*dto.GuardianPortalResponse, bool, error) {
	return &dto.GuardianPortalResponse{GuardianID: "g-1", Children: []dto.ChildOverview{}}, f.hit, nil
}

func (f fakePortalSrv) Accountant(context.Context, models.Actor) (*dto.AccountantPortalResponse, bool, error) {
	return &dto.AccountantPortalResponse{TotalPending: 125.5}, f.hit, nil
}

func TestPortalHandler(t *testing.T) {
	handler := NewPortalHandler(fakePortalSrv{hit: true})

	c, rec := dashboardContext("/portal/guardian", &models.JWTClaims{UserID: "u-parent", Role: models.RoleGuardian})
	handler.Guardian(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "g-1", envelope.Data["guardianId"])
	assert.Equal(t, true, envelope.Meta["cache_hit"])

	c, rec = dashboardContext("/portal/accountant", &models.JWTClaims{UserID: "u-acc", Role: models.RoleAccountant})
	handler.Accountant(c)
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, 125.5, envelope.Data["totalPending"])
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
