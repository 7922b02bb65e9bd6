package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	ReplaceRoles(ctx context.Context, userID string, role models.UserRole) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required,max=255"`
	Phone    string          `json:"phone" validate:"omitempty,max=32"`
	Role     models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN TEACHER STUDENT GUARDIAN ACCOUNTANT STAFF"`
	Active   bool            `json:"active"`
	Password string          `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest payload for updating users.
type UpdateUserRequest struct {
	FullName string `json:"full_name" validate:"required,max=255"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Active   *bool  `json:"active"`
}

// ChangeRoleRequest moves a user to another role.
type ChangeRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN TEACHER STUDENT GUARDIAN ACCOUNTANT STAFF"`
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	return user, nil
}

// Create adds a new login. The legacy role column and the permission role are written together so
// roles:sync finds nothing to reconcile for accounts created here.
func (s *UserService) Create(ctx context.Context, actor models.Actor, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid create user payload")
	}
	if req.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a superadmin can create superadmins")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.repo.ExistsByEmail(ctx, email, "")
	if err != nil {
		return nil, internalError(err, "failed to check email uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        strPtr(strings.TrimSpace(req.Phone)),
		Role:         req.Role,
		Active:       req.Active,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, writeError(err, "failed to create user", "email already exists")
	}
	if err := s.repo.ReplaceRoles(ctx, user.ID, user.Role); err != nil {
		s.logger.Warn("permission role not assigned", zap.String("user_id", user.ID), zap.String("role", string(user.Role)), zap.Error(err))
	}

	recordAudit(ctx, s.repo, s.logger, actorAudit(actor, models.AuditActionUserCreate, "users", user.ID,
		map[string]interface{}{"email": user.Email, "role": user.Role, "active": user.Active}))
	return user, nil
}

// Update modifies profile attributes. Deactivating one's own account is refused.
func (s *UserService) Update(ctx context.Context, actor models.Actor, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid update payload")
	}
	if req.Active != nil && !*req.Active && id == actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "users cannot deactivate themselves")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user")
	}

	previous := map[string]interface{}{"full_name": user.FullName, "active": user.Active}
	user.FullName = strings.TrimSpace(req.FullName)
	user.Phone = strPtr(strings.TrimSpace(req.Phone))
	if req.Active != nil {
		user.Active = *req.Active
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, internalError(err, "failed to update user")
	}

	entry := actorAudit(actor, models.AuditActionUserUpdate, "users", user.ID,
		map[string]interface{}{"full_name": user.FullName, "active": user.Active})
	entry.OldValues, _ = json.Marshal(previous)
	recordAudit(ctx, s.repo, s.logger, entry)
	return user, nil
}

// ChangeRole updates the legacy role column and replaces the permission roles with the same role.
func (s *UserService) ChangeRole(ctx context.Context, actor models.Actor, id string, req ChangeRoleRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid role payload")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	if id == actor.UserID && user.Role.IsAdmin() && !req.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrators cannot demote themselves")
	}
	if (req.Role == models.RoleSuperAdmin || user.Role == models.RoleSuperAdmin) && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a superadmin can grant or revoke superadmin")
	}
	if user.Role == req.Role {
		return user, nil
	}

	previous := user.Role
	user.Role = req.Role
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, internalError(err, "failed to update user role")
	}
	if err := s.repo.ReplaceRoles(ctx, user.ID, user.Role); err != nil {
		return nil, internalError(err, "failed to sync permission roles")
	}

	entry := actorAudit(actor, models.AuditActionUserUpdate, "users", user.ID, map[string]interface{}{"role": user.Role})
	entry.OldValues, _ = json.Marshal(map[string]interface{}{"role": previous})
	recordAudit(ctx, s.repo, s.logger, entry)
	s.logger.Info("user role changed",
		zap.String("user_id", user.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(user.Role)),
		zap.String("actor", actor.UserID),
	)
	return user, nil
}

// Delete deactivates a login. Rows are kept for audit history.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if id == actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "users cannot deactivate themselves")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "user")
	}
	if user.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only a superadmin can deactivate superadmins")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete user")
	}

	entry := actorAudit(actor, models.AuditActionUserDelete, "users", user.ID, map[string]interface{}{"active": false})
	entry.OldValues, _ = json.Marshal(map[string]interface{}{"active": user.Active})
	recordAudit(ctx, s.repo, s.logger, entry)
	return nil
}
