package models

import "time"

// Accountant is finance staff allowed to record payments and approve waivers up to a limit.
type Accountant struct {
	ID                  string    `db:"id" json:"id"`
	UserID              *string   `db:"user_id" json:"user_id,omitempty"`
	FullName            string    `db:"full_name" json:"full_name"`
	Phone               *string   `db:"phone" json:"phone,omitempty"`
	MaxWaiverAmount     float64   `db:"max_waiver_amount" json:"max_waiver_amount"`
	MaxWaiverPercentage float64   `db:"max_waiver_percentage" json:"max_waiver_percentage"`
	Active              bool      `db:"active" json:"active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// AccountantFilter defines filters for listing accountants.
type AccountantFilter struct {
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
