package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(HeaderKey, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddlewareReusesOrReplacesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, Value(c)+"|"+FromContext(c.Request.Context()))
	})

	w := serve(r, "abc-123")
	assert.Equal(t, "abc-123|abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(HeaderKey))

	for _, bad := range []string{strings.Repeat("x", 200), "two words", "tab\there"} {
		w = serve(r, bad)
		id := w.Header().Get(HeaderKey)
		assert.Len(t, id, 36, bad)
		assert.Equal(t, id+"|"+id, w.Body.String())
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, FromContext(ctx))
	assert.Equal(t, ctx, NewContext(ctx, ""))
	assert.Equal(t, "req-9", FromContext(NewContext(ctx, "req-9")))
}
