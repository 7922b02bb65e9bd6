package models

import "time"

// Guardian is a parent or other adult responsible for one or more students.
type Guardian struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	FullName   string    `db:"full_name" json:"full_name"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	Email      *string   `db:"email" json:"email,omitempty"`
	Occupation *string   `db:"occupation" json:"occupation,omitempty"`
	Address    *string   `db:"address" json:"address,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// GuardianLink describes one guardian-student relationship row.
type GuardianLink struct {
	GuardianID   string  `db:"guardian_id" json:"guardian_id"`
	GuardianName string  `db:"guardian_name" json:"guardian_name"`
	StudentID    string  `db:"student_id" json:"student_id"`
	StudentName  string  `db:"student_name" json:"student_name"`
	ClassID      *string `db:"class_id" json:"class_id,omitempty"`
	Relation     string  `db:"relation" json:"relation"`
	IsPrimary    bool    `db:"is_primary" json:"is_primary"`
	Phone        *string `db:"phone" json:"phone,omitempty"`
	Email        *string `db:"email" json:"email,omitempty"`
	UserID       *string `db:"user_id" json:"user_id,omitempty"`
}

// GuardianDetail is a guardian with its linked students.
type GuardianDetail struct {
	Guardian
	Students []GuardianLink `json:"students"`
}

// GuardianFilter defines filters for listing guardians.
type GuardianFilter struct {
	StudentID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
