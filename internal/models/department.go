package models

import "time"

// Department groups teachers by discipline.
type Department struct {
	ID            string    `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	Description   *string   `db:"description" json:"description,omitempty"`
	HeadTeacherID *string   `db:"head_teacher_id" json:"head_teacher_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentDetail adds the head teacher's name and the teacher count.
type DepartmentDetail struct {
	Department
	HeadTeacherName *string `db:"head_teacher_name" json:"head_teacher_name,omitempty"`
	TeacherCount    int     `db:"teacher_count" json:"teacher_count"`
}

// DepartmentFilter defines filters for listing departments.
type DepartmentFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
