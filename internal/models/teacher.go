package models

import "time"

// Teacher represents a teaching staff member.
type Teacher struct {
	ID           string     `db:"id" json:"id"`
	UserID       *string    `db:"user_id" json:"user_id,omitempty"`
	EmployeeNo   string     `db:"employee_no" json:"employee_no"`
	FullName     string     `db:"full_name" json:"full_name"`
	Email        *string    `db:"email" json:"email,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	Designation  *string    `db:"designation" json:"designation,omitempty"`
	JoiningDate  *time.Time `db:"joining_date" json:"joining_date,omitempty"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// TeacherDetail adds the department name.
type TeacherDetail struct {
	Teacher
	DepartmentName *string `db:"department_name" json:"department_name,omitempty"`
}

// TeacherFilter defines filters for listing teachers.
type TeacherFilter struct {
	DepartmentID string
	Active       *bool
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
