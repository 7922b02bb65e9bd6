package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/response"
)

type staticValidator map[string]*models.JWTClaims

func (v staticValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/items/:id", handlers...)
	return r
}

func perform(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRBAC(t *testing.T) {
	validator := staticValidator{
		"admin":   {UserID: "u-admin", Role: models.RoleAdmin},
		"root":    {UserID: "u-root", Role: models.RoleSuperAdmin},
		"teacher": {UserID: "u-teacher", Role: models.RoleTeacher},
	}
	r := newTestRouter(JWT(validator), RBAC(string(models.RoleAdmin), "SELF"))

	assert.Equal(t, http.StatusUnauthorized, perform(r, "/items/x", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "/items/x", "bogus").Code)
	assert.Equal(t, http.StatusOK, perform(r, "/items/x", "admin").Code)
	assert.Equal(t, http.StatusOK, perform(r, "/items/x", "root").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, "/items/x", "teacher").Code)
	assert.Equal(t, http.StatusOK, perform(r, "/items/u-teacher", "teacher").Code)
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	var seen *models.JWTClaims
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/items/:id", OptionalJWT(staticValidator{"ok": {UserID: "u1"}}), func(c *gin.Context) {
		if v, exists := c.Get(ContextUserKey); exists {
			seen = v.(*models.JWTClaims)
		}
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, perform(r, "/items/1", "nope").Code)
	assert.Nil(t, seen)
	assert.Equal(t, http.StatusOK, perform(r, "/items/1", "ok").Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.UserID)
}

type recordingReporter struct {
	errs   []error
	extras map[string]interface{}
}

func (r *recordingReporter) RequestErrorWithExtras(level string, req *http.Request, err error, extras map[string]interface{}) {
	r.errs = append(r.errs, err)
	r.extras = extras
}

func TestErrorReportOnlyForServerErrors(t *testing.T) {
	reporter := &recordingReporter{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorReport(reporter, nil))
	r.GET("/boom", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin})
		response.Error(c, errors.New("database exploded"))
	})
	r.GET("/missing", func(c *gin.Context) { response.Error(c, appErrors.ErrNotFound) })

	assert.Equal(t, http.StatusNotFound, perform(r, "/missing", "").Code)
	assert.Empty(t, reporter.errs)

	assert.Equal(t, http.StatusInternalServerError, perform(r, "/boom", "").Code)
	require.Len(t, reporter.errs, 1)
	assert.Equal(t, "u1", reporter.extras["user_id"])
	assert.Equal(t, "/boom", reporter.extras["route"])
}

type memAudit struct{ logs []*models.AuditLog }

func (m *memAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type countingObserver struct{ paths []string }

func (o *countingObserver) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	o.paths = append(o.paths, path)
}

func TestAuditAndMetrics(t *testing.T) {
	audit := &memAudit{}
	observer := &countingObserver{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/items/:id", Audit(audit, nil, "STUDENT_DELETE", "student"), func(c *gin.Context) {
		if c.Param("id") == "bad" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusNoContent)
	})

	perform(r, "/items/s1", "")
	perform(r, "/items/bad", "")
	perform(r, "/nowhere", "")

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "s1", *audit.logs[0].ResourceID)
	assert.Equal(t, []string{"/items/:id", "/items/:id", "unmatched"}, observer.paths)
}

func TestResponseMetaCollectsScopeAndCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/dash", func(c *gin.Context) {
		SetCacheHit(c, true)
		SetScope(c, string(models.RoleTeacher))
		SetScope(c, "")
		meta := FinalMeta(c, time.Now().Add(-time.Hour))
		c.JSON(http.StatusOK, meta)
	})

	w := perform(r, "/dash", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache_hit":true`)
	assert.Contains(t, w.Body.String(), `"scope":"TEACHER"`)
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Less(t, meta[MetaProcessingTime].(float64), float64(time.Minute.Milliseconds()))
}

func TestFinalMetaWithoutMiddlewareUsesFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	meta := FinalMeta(c, time.Now().Add(-2*time.Second))
	assert.GreaterOrEqual(t, meta[MetaProcessingTime].(int64), int64(2000))
	assert.NotContains(t, meta, MetaCacheHit)
}
