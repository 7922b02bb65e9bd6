package models

import "time"

// ClassRoom represents a class section for an academic year.
type ClassRoom struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Section        string    `db:"section" json:"section"`
	GradeLevel     int       `db:"grade_level" json:"grade_level"`
	Capacity       int       `db:"capacity" json:"capacity"`
	AcademicYear   string    `db:"academic_year" json:"academic_year"`
	ClassTeacherID *string   `db:"class_teacher_id" json:"class_teacher_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail adds the class teacher's name and headcount.
type ClassDetail struct {
	ClassRoom
	ClassTeacherName *string `db:"class_teacher_name" json:"class_teacher_name,omitempty"`
	StudentCount     int     `db:"student_count" json:"student_count"`
}

// ClassFilter defines filters for listing classes.
type ClassFilter struct {
	GradeLevel   *int
	AcademicYear string
	TeacherID    string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
