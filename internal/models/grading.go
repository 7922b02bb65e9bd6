package models

import "time"

// GradingBand maps a percentage range to a letter grade and GPA point.
type GradingBand struct {
	ID          string    `db:"id" json:"id"`
	Grade       string    `db:"grade" json:"grade"`
	MinMark     float64   `db:"min_mark" json:"min_mark"`
	MaxMark     float64   `db:"max_mark" json:"max_mark"`
	GPAPoint    float64   `db:"gpa_point" json:"gpa_point"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Contains reports whether v lies inside the closed band range.
func (b GradingBand) Contains(v float64) bool {
	return v >= b.MinMark && v <= b.MaxMark
}

// GradeOutcome is the result of grading one mark.
type GradeOutcome struct {
	Percentage float64 `json:"percentage"`
	Grade      string  `json:"grade"`
	GPAPoint   float64 `json:"gpa_point"`
	IsPassed   bool    `json:"is_passed"`
}
