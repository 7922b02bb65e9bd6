package models

import "time"

// Exam is an assessment for one class. Results are published once and stay published.
type Exam struct {
	ID                string     `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	ClassID           string     `db:"class_id" json:"class_id"`
	AcademicYear      string     `db:"academic_year" json:"academic_year"`
	StartDate         time.Time  `db:"start_date" json:"start_date"`
	EndDate           time.Time  `db:"end_date" json:"end_date"`
	IsResultPublished bool       `db:"is_result_published" json:"is_result_published"`
	PublishedAt       *time.Time `db:"published_at" json:"published_at,omitempty"`
	PublishedBy       *string    `db:"published_by" json:"published_by,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Completed reports whether the exam end date has been reached at now.
func (e Exam) Completed(now time.Time) bool {
	return !now.Before(e.EndDate)
}

// ExamDetail adds the class name.
type ExamDetail struct {
	Exam
	ClassName string `db:"class_name" json:"class_name"`
}

// ExamFilter defines filters for listing exams.
type ExamFilter struct {
	ClassID      string
	AcademicYear string
	Published    *bool
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// MissingResult names a student and subject pair without a result row.
type MissingResult struct {
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	SubjectID   string `db:"subject_id" json:"subject_id"`
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// StudentTotal is a student's aggregate marks for one exam.
type StudentTotal struct {
	StudentID     string  `db:"student_id" json:"student_id"`
	StudentName   string  `db:"student_name" json:"student_name"`
	AdmissionNo   string  `db:"admission_no" json:"admission_no"`
	RollNo        *string `db:"roll_no" json:"roll_no,omitempty"`
	TotalMarks    float64 `db:"total_marks" json:"total_marks"`
	TotalFullMark float64 `db:"total_full_mark" json:"total_full_mark"`
	FailedCount   int     `db:"failed_count" json:"failed_count"`
}

// RankEntry is one line of an exam rank list.
type RankEntry struct {
	Rank int `json:"rank"`
	StudentTotal
	Percentage float64 `json:"percentage"`
	Grade      string  `json:"grade"`
	GPAPoint   float64 `json:"gpa_point"`
}

// RankList is the ranked outcome of an exam.
type RankList struct {
	Exam    ExamDetail  `json:"exam"`
	Entries []RankEntry `json:"entries"`
}
