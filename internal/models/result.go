package models

import "time"

// Result stores one student's marks in one subject of one exam along with the derived grade.
type Result struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	ExamID        string    `db:"exam_id" json:"exam_id"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	MarksObtained float64   `db:"marks_obtained" json:"marks_obtained"`
	Percentage    float64   `db:"percentage" json:"percentage"`
	Grade         string    `db:"grade" json:"grade"`
	GPAPoint      float64   `db:"gpa_point" json:"gpa_point"`
	IsPassed      bool      `db:"is_passed" json:"is_passed"`
	Remarks       *string   `db:"remarks" json:"remarks,omitempty"`
	EnteredBy     *string   `db:"entered_by" json:"entered_by,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ResultDetail joins names and mark bounds onto a result.
type ResultDetail struct {
	Result
	StudentName string  `db:"student_name" json:"student_name"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	ExamName    string  `db:"exam_name" json:"exam_name"`
	FullMark    float64 `db:"full_mark" json:"full_mark"`
	PassMark    float64 `db:"pass_mark" json:"pass_mark"`
	Published   bool    `db:"is_result_published" json:"published"`
}

// ResultFilter defines filters for listing results.
type ResultFilter struct {
	ExamID        string
	StudentID     string
	SubjectID     string
	PublishedOnly bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// MarkEntry is one (student, subject, marks) triple of a bulk entry.
type MarkEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	SubjectID string  `json:"subject_id" validate:"required"`
	Marks     float64 `json:"marks" validate:"gte=0"`
	Remarks   string  `json:"remarks"`
}

// ReportCard is one student's results for an exam.
type ReportCard struct {
	Exam          ExamDetail     `json:"exam"`
	Student       StudentDetail  `json:"student"`
	Results       []ResultDetail `json:"results"`
	TotalMarks    float64        `json:"total_marks"`
	TotalFullMark float64        `json:"total_full_mark"`
	Percentage    float64        `json:"percentage"`
	Grade         string         `json:"grade"`
	GPA           float64        `json:"gpa"`
	Passed        bool           `json:"passed"`
	Rank          int            `json:"rank,omitempty"`
}
