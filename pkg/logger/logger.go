package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/sims-api/pkg/config"
	"github.com/noah-isme/sims-api/pkg/middleware/requestid"
)

// New builds the process logger. Production uses zap's production preset; console format is for local runs.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.InitialFields = map[string]interface{}{"service": "sims-api", "version": cfg.Version}

	return zapCfg.Build()
}

// Option tunes GinMiddleware.
type Option func(*middlewareOptions)

type middlewareOptions struct {
	skip   map[string]struct{}
	fields []func(*gin.Context) []zap.Field
}

// SkipPaths suppresses request lines for probe and scrape endpoints.
func SkipPaths(paths ...string) Option {
	return func(o *middlewareOptions) {
		for _, p := range paths {
			o.skip[p] = struct{}{}
		}
	}
}

// WithFields appends caller-derived fields, such as the authenticated user, to every request line.
func WithFields(fn func(*gin.Context) []zap.Field) Option {
	return func(o *middlewareOptions) {
		o.fields = append(o.fields, fn)
	}
}

// GinMiddleware writes one structured line per request: error level for 5xx, warn for 4xx.
func GinMiddleware(l *zap.Logger, opts ...Option) gin.HandlerFunc {
	o := middlewareOptions{skip: map[string]struct{}{}}
	for _, opt := range opts {
		opt(&o)
	}
	l = l.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if _, skip := o.skip[c.Request.URL.Path]; skip {
			return
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		for _, fn := range o.fields {
			fields = append(fields, fn(c)...)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			l.Error("http_request", fields...)
		case status >= 400:
			l.Warn("http_request", fields...)
		default:
			l.Info("http_request", fields...)
		}
	}
}
