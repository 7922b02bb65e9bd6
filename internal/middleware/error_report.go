package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/pkg/config"
)

// ErrorReporter forwards server errors to an error tracker.
type ErrorReporter interface {
	RequestErrorWithExtras(level string, r *http.Request, err error, extras map[string]interface{})
}

// NewRollbarReporter builds a Rollbar client, or returns nil when no token is configured.
func NewRollbarReporter(cfg config.RollbarConfig, env string) *rollbar.Client {
	if cfg.Token == "" {
		return nil
	}
	return rollbar.New(cfg.Token, env, "", "", "")
}

// ErrorReport sends responses with a 5xx status to reporter along with the last gin error.
func ErrorReport(reporter ErrorReporter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusInternalServerError {
			return
		}
		err := errors.New(http.StatusText(status))
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		}
		extras := map[string]interface{}{
			"status": status,
			"route":  c.FullPath(),
		}
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok {
				extras["user_id"] = claims.UserID
				extras["role"] = string(claims.Role)
			}
		}
		logger.Error("server error", zap.Int("status", status), zap.String("route", c.FullPath()), zap.Error(err))
		if reporter != nil {
			reporter.RequestErrorWithExtras(rollbar.ERR, c.Request, err, extras)
		}
	}
}
