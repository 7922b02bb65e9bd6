package models

// RoleSyncChange describes one change made (or planned) by a role sync.
type RoleSyncChange struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Action string   `json:"action"`
	Role   UserRole `json:"role"`
}

// Role sync actions.
const (
	RoleSyncCreateRole  = "create_role"
	RoleSyncAssign      = "assign"
	RoleSyncFillLegacy  = "fill_legacy"
	RoleSyncPrune       = "prune"
	RoleSyncUnknownRole = "unknown_legacy_role"
)

// RoleSyncReport summarises a role synchronisation run.
type RoleSyncReport struct {
	DryRun       bool             `json:"dry_run"`
	Pruned       bool             `json:"pruned"`
	UsersScanned int              `json:"users_scanned"`
	Changes      []RoleSyncChange `json:"changes"`
}

// IntegrityIssue is one inconsistency found by an integrity check.
type IntegrityIssue struct {
	Check    string `json:"check"`
	EntityID string `json:"entity_id"`
	Detail   string `json:"detail"`
	Fixed    bool   `json:"fixed"`
}

// IntegrityReport groups issues found by the integrity checks.
type IntegrityReport struct {
	Fix          bool             `json:"fix"`
	Issues       []IntegrityIssue `json:"issues"`
	FeesRepaired int              `json:"fees_repaired"`
	RoleSync     *RoleSyncReport  `json:"role_sync,omitempty"`
}

// Integrity check names.
const (
	CheckMissingProfile = "missing_profile"
	CheckStudentNoClass = "student_without_class"
	CheckResultClass    = "result_class_mismatch"
	CheckFeeStatus      = "fee_status_mismatch"
	CheckInstallmentSum = "installment_sum_mismatch"
	CheckRoleOutOfSync  = "role_out_of_sync"
)
