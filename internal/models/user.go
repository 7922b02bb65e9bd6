package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
	RoleGuardian   UserRole = "GUARDIAN"
	RoleAccountant UserRole = "ACCOUNTANT"
	RoleStaff      UserRole = "STAFF"
)

// AllRoles lists roles from most to least privileged.
var AllRoles = []UserRole{RoleSuperAdmin, RoleAdmin, RoleAccountant, RoleTeacher, RoleStaff, RoleGuardian, RoleStudent}

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r.Priority() >= 0
}

// Priority ranks roles; lower is more privileged and -1 marks an unknown role.
func (r UserRole) Priority() int {
	for i, role := range AllRoles {
		if role == r {
			return i
		}
	}
	return -1
}

// IsAdmin reports whether the role administers the whole school.
func (r UserRole) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// User represents an application user stored in the users table. Role is the legacy role column.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Role is a row of the permission role table.
type Role struct {
	ID        string    `db:"id" json:"id"`
	Name      UserRole  `db:"name" json:"name"`
	GuardName string    `db:"guard_name" json:"guard_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserRoleAssignment pairs a user with its legacy role column and assigned permission roles.
type UserRoleAssignment struct {
	UserID     string     `json:"user_id"`
	Email      string     `json:"email"`
	LegacyRole UserRole   `json:"legacy_role"`
	Assigned   []UserRole `json:"assigned"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NewPagination normalises page inputs the same way repositories do.
func NewPagination(page, size, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total}
}
