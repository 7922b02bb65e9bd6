package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sims-api/pkg/config"
)

func TestNewHonoursFormatAndLevel(t *testing.T) {
	cfg := &config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "warn", Format: "console"}}
	l, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))
}

func TestGinMiddlewareLevelsSkipsAndFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(GinMiddleware(zap.New(core),
		SkipPaths("/health"),
		WithFields(func(c *gin.Context) []zap.Field {
			return []zap.Field{zap.String("role", c.GetHeader("X-Role"))}
		}),
	))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/denied", func(c *gin.Context) { c.Status(http.StatusForbidden) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/health", "/ok", "/denied", "/boom"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Role", "TEACHER")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/boom", entries[2].ContextMap()["route"])
	assert.Equal(t, "TEACHER", entries[0].ContextMap()["role"])
}

func TestWatermillAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := NewWatermillAdapter(zap.New(core)).With(watermill.LogFields{"topic": "notice.published"})
	adapter.Error("handler failed", errors.New("boom"), watermill.LogFields{"message_uuid": "1"})
	adapter.Trace("tick", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "notice.published", entries[0].ContextMap()["topic"])
	assert.Equal(t, "boom", entries[0].ContextMap()["error"])
	assert.Equal(t, zap.DebugLevel, entries[1].Level)
}

func TestCronAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := NewCronAdapter(zap.New(core))
	adapter.Info("schedule", "entry", 1)
	adapter.Error(errors.New("panic"), "job failed", "entry", 1)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}
