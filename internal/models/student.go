package models

import "time"

// Student represents a learner enrolled at the school.
type Student struct {
	ID            string     `db:"id" json:"id"`
	UserID        *string    `db:"user_id" json:"user_id,omitempty"`
	AdmissionNo   string     `db:"admission_no" json:"admission_no"`
	RollNo        *string    `db:"roll_no" json:"roll_no,omitempty"`
	FullName      string     `db:"full_name" json:"full_name"`
	Gender        string     `db:"gender" json:"gender"`
	BirthDate     *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Address       *string    `db:"address" json:"address,omitempty"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	ClassID       *string    `db:"class_id" json:"class_id,omitempty"`
	AdmissionDate *time.Time `db:"admission_date" json:"admission_date,omitempty"`
	Active        bool       `db:"active" json:"active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentDetail augments a student with its class name.
type StudentDetail struct {
	Student
	ClassName *string `db:"class_name" json:"class_name,omitempty"`
}

// StudentProfile is the student show page: detail plus computed attributes.
type StudentProfile struct {
	StudentDetail
	Attendance    AttendanceSummary `json:"attendance"`
	PendingFees   float64           `json:"pending_fees"`
	Guardians     []GuardianLink    `json:"guardians"`
	LatestResults []ResultDetail    `json:"latest_results"`
}

// StudentFilter captures query parameters for listing students.
type StudentFilter struct {
	ClassID   string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
