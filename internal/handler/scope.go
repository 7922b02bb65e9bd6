package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/models"
	"github.com/noah-isme/sims-api/internal/service"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/response"
)

type scopeResolver interface {
	Resolve(ctx context.Context, actor models.Actor) (service.Scope, error)
}

// studentScope narrows a requested student id to what the caller may see. Staff get the
// requested value back with restricted=false. Students and guardians must name a student
// they own; a caller owning exactly one student may omit it.
func studentScope(c *gin.Context, scopes scopeResolver, actor models.Actor, requested string) (studentID string, restricted bool, ok bool) {
	scope, err := scopes.Resolve(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return "", false, false
	}
	if scope.Unrestricted {
		return requested, false, true
	}
	if requested == "" {
		if len(scope.StudentIDs) == 1 {
			return scope.StudentIDs[0], true, true
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id is required"))
		return "", true, false
	}
	if !scope.Allows(requested) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this student"))
		return "", true, false
	}
	return requested, true, true
}

// requireStudent writes a 403 and returns false unless actor may see studentID.
func requireStudent(c *gin.Context, scopes scopeResolver, actor models.Actor, studentID string) bool {
	scope, err := scopes.Resolve(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return false
	}
	if !scope.Allows(studentID) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this student"))
		return false
	}
	return true
}
