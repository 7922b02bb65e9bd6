package models

import "time"

// Subject is taught to one class and carries the mark bounds used for grading.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	ClassID   string    `db:"class_id" json:"class_id"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	FullMark  float64   `db:"full_mark" json:"full_mark"`
	PassMark  float64   `db:"pass_mark" json:"pass_mark"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter defines filters for listing subjects.
type SubjectFilter struct {
	ClassID   string
	TeacherID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
