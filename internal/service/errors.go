package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/repository"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

func internalError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) *appErrors.Error {
	return appErrors.Validation(err, message)
}

// NewValidator returns a validator that reports fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// lookupError maps a repository read failure to NOT_FOUND or INTERNAL_ERROR for entity.
func lookupError(err error, entity string) *appErrors.Error {
	if isNotFound(err) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return internalError(err, "failed to load "+entity)
}

// writeError maps unique violations to CONFLICT.
func writeError(err error, message, conflict string) *appErrors.Error {
	if errors.Is(err, repository.ErrDuplicate) {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict)
	}
	return internalError(err, message)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

func recordAudit(ctx context.Context, repo auditLogger, logger *zap.Logger, entry *models.AuditLog) {
	if repo == nil {
		return
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.String("resource", entry.Resource), zap.Error(err))
	}
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// actorAudit builds an audit row attributed to actor. values is stored as JSON when non-nil.
func actorAudit(actor models.Actor, action, resource, resourceID string, values interface{}) *models.AuditLog {
	entry := &models.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: strPtr(resourceID),
		UserID:     strPtr(actor.UserID),
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
		CreatedAt:  time.Now().UTC(),
	}
	if values != nil {
		if raw, err := json.Marshal(values); err == nil {
			entry.NewValues = raw
		}
	}
	return entry
}
