package models

import "time"

// Period is a named time slot of the school day, times in HH:MM.
type Period struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	IsBreak   bool      `db:"is_break" json:"is_break"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimetableEntry places a subject, teacher and class in a period on a weekday (1 = Monday).
type TimetableEntry struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	PeriodID  string    `db:"period_id" json:"period_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	Room      *string   `db:"room" json:"room,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimetableDetail adds display names and period times.
type TimetableDetail struct {
	TimetableEntry
	ClassName   string `db:"class_name" json:"class_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	PeriodName  string `db:"period_name" json:"period_name"`
	StartTime   string `db:"start_time" json:"start_time"`
	EndTime     string `db:"end_time" json:"end_time"`
}

// TimetableFilter narrows timetable queries.
type TimetableFilter struct {
	ClassID   string
	TeacherID string
	DayOfWeek int
}

// ISOWeekday converts a time.Weekday into 1..7 with Monday = 1.
func ISOWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}
