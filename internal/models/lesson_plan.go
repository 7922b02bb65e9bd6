package models

import "time"

// Lesson plan statuses.
const (
	LessonPlanDraft     = "draft"
	LessonPlanSubmitted = "submitted"
	LessonPlanApproved  = "approved"
	LessonPlanRejected  = "rejected"
)

// LessonPlan is a teacher's plan for a lesson, reviewed by an administrator.
type LessonPlan struct {
	ID          string     `db:"id" json:"id"`
	TeacherID   string     `db:"teacher_id" json:"teacher_id"`
	ClassID     string     `db:"class_id" json:"class_id"`
	SubjectID   string     `db:"subject_id" json:"subject_id"`
	Title       string     `db:"title" json:"title"`
	Topic       *string    `db:"topic" json:"topic,omitempty"`
	Objectives  *string    `db:"objectives" json:"objectives,omitempty"`
	Activities  *string    `db:"activities" json:"activities,omitempty"`
	Resources   *string    `db:"resources" json:"resources,omitempty"`
	PlannedDate time.Time  `db:"planned_date" json:"planned_date"`
	Status      string     `db:"status" json:"status"`
	ReviewNote  *string    `db:"review_note" json:"review_note,omitempty"`
	ReviewedBy  *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Editable reports whether the teacher may still change the plan.
func (p LessonPlan) Editable() bool {
	return p.Status == LessonPlanDraft || p.Status == LessonPlanRejected
}

// LessonPlanFilter defines filters for listing lesson plans.
type LessonPlanFilter struct {
	TeacherID string
	ClassID   string
	SubjectID string
	Status    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StatusCount is a generic status histogram row.
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}
