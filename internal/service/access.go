package service

import (
	"context"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type studentByUserLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

type guardianScopeReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Guardian, error)
	ListStudents(ctx context.Context, guardianID string) ([]models.GuardianLink, error)
}

// Scope lists the students and classes a caller may see. Unrestricted scopes see everything.
type Scope struct {
	Unrestricted bool
	StudentIDs   []string
	ClassIDs     []string
	GuardianID   string
}

// Allows reports whether the scope covers studentID.
func (s Scope) Allows(studentID string) bool {
	if s.Unrestricted {
		return true
	}
	for _, id := range s.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// AccessResolver maps student and guardian logins to the records they own.
type AccessResolver struct {
	students  studentByUserLookup
	guardians guardianScopeReader
}

// NewAccessResolver constructs AccessResolver.
func NewAccessResolver(students studentByUserLookup, guardians guardianScopeReader) *AccessResolver {
	return &AccessResolver{students: students, guardians: guardians}
}

// Resolve returns the scope of actor. Staff roles are unrestricted.
func (r *AccessResolver) Resolve(ctx context.Context, actor models.Actor) (Scope, error) {
	switch actor.Role {
	case models.RoleStudent:
		student, err := r.students.FindByUserID(ctx, actor.UserID)
		if err != nil {
			if isNotFound(err) {
				return Scope{}, appErrors.Clone(appErrors.ErrForbidden, "no student profile for this account")
			}
			return Scope{}, internalError(err, "failed to load student profile")
		}
		scope := Scope{StudentIDs: []string{student.ID}}
		if student.ClassID != nil {
			scope.ClassIDs = []string{*student.ClassID}
		}
		return scope, nil
	case models.RoleGuardian:
		guardian, err := r.guardians.FindByUserID(ctx, actor.UserID)
		if err != nil {
			if isNotFound(err) {
				return Scope{}, appErrors.Clone(appErrors.ErrForbidden, "no guardian profile for this account")
			}
			return Scope{}, internalError(err, "failed to load guardian profile")
		}
		links, err := r.guardians.ListStudents(ctx, guardian.ID)
		if err != nil {
			return Scope{}, internalError(err, "failed to load linked students")
		}
		scope := Scope{GuardianID: guardian.ID, StudentIDs: []string{}}
		seenClass := map[string]struct{}{}
		for _, link := range links {
			scope.StudentIDs = append(scope.StudentIDs, link.StudentID)
			if link.ClassID != nil {
				if _, ok := seenClass[*link.ClassID]; !ok {
					seenClass[*link.ClassID] = struct{}{}
					scope.ClassIDs = append(scope.ClassIDs, *link.ClassID)
				}
			}
		}
		return scope, nil
	case "":
		return Scope{}, appErrors.ErrUnauthorized
	default:
		return Scope{Unrestricted: true}, nil
	}
}

// RequireStudent fails with FORBIDDEN unless actor may see studentID.
func (r *AccessResolver) RequireStudent(ctx context.Context, actor models.Actor, studentID string) error {
	scope, err := r.Resolve(ctx, actor)
	if err != nil {
		return err
	}
	if !scope.Allows(studentID) {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this student")
	}
	return nil
}
