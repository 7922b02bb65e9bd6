package models

import "time"

// Notice audiences.
const (
	AudienceAll      = "all"
	AudienceStudents = "students"
	AudienceTeachers = "teachers"
	AudienceGuardian = "guardians"
	AudienceStaff    = "staff"
	AudienceClass    = "class"
)

// Notice is an announcement shown on dashboards.
type Notice struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Body        string     `db:"body" json:"body"`
	Audience    string     `db:"audience" json:"audience"`
	ClassID     *string    `db:"class_id" json:"class_id,omitempty"`
	Pinned      bool       `db:"pinned" json:"pinned"`
	PublishedAt time.Time  `db:"published_at" json:"published_at"`
	ExpiresAt   *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedBy   *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// NoticeFilter defines filters for listing notices. Audiences and ClassIDs narrow a role feed.
type NoticeFilter struct {
	Audiences []string
	ClassIDs  []string
	ActiveAt  *time.Time
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AudiencesFor returns the notice audiences visible to a role.
func AudiencesFor(role UserRole) []string {
	switch role {
	case RoleStudent:
		return []string{AudienceAll, AudienceStudents, AudienceClass}
	case RoleGuardian:
		return []string{AudienceAll, AudienceGuardian, AudienceClass}
	case RoleTeacher:
		return []string{AudienceAll, AudienceTeachers, AudienceStaff}
	case RoleStaff, RoleAccountant:
		return []string{AudienceAll, AudienceStaff}
	default:
		return nil
	}
}
