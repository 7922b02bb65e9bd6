package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/middleware/requestid"
)

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", h)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestid.HeaderKey, "req-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestErrorEnvelopeCarriesRequestID(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		Error(c, appErrors.Clone(appErrors.ErrNotFound, "student not found"))
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]interface{})["code"])
	assert.Equal(t, "req-7", body["meta"].(map[string]interface{})["request_id"])
	assert.NotContains(t, body, "data")
}

func TestJSONWithPaginationAndMeta(t *testing.T) {
	_, body := serve(t, func(c *gin.Context) {
		JSON(c, http.StatusOK, []string{"a"}, models.NewPagination(1, 20, 1), map[string]interface{}{"cache_hit": true})
	})
	assert.Equal(t, []interface{}{"a"}, body["data"])
	assert.Contains(t, body, "pagination")
	assert.Equal(t, true, body["meta"].(map[string]interface{})["cache_hit"])
	assert.NotContains(t, body, "error")
}

func TestUnknownErrorsBecomeInternal(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		Error(c, assert.AnError)
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", body["error"].(map[string]interface{})["message"])
}
