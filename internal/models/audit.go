package models

import "time"

// Audit actions recorded for sensitive operations.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionUserCreate     = "USER_CREATE"
	AuditActionUserUpdate     = "USER_UPDATE"
	AuditActionUserDelete     = "USER_DELETE"
	AuditActionResultsPublish = "RESULTS_PUBLISH"
	AuditActionMarksEntry     = "MARKS_ENTRY"
	AuditActionPaymentRecord  = "PAYMENT_RECORD"
	AuditActionWaiverDecision = "WAIVER_DECISION"
	AuditActionRoleSync       = "ROLE_SYNC"
	AuditActionNoticePublish  = "NOTICE_PUBLISH"
	AuditActionLessonReview   = "LESSON_PLAN_REVIEW"
	AuditActionIntegrityFix   = "INTEGRITY_FIX"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter narrows the audit trail listing.
type AuditFilter struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}
