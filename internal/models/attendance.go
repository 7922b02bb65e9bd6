package models

import "time"

// AttendanceStatus enumerates daily attendance states.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// Attended reports whether the status counts toward the attendance rate.
func (s AttendanceStatus) Attended() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// Valid reports whether s is a known status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// Attendance is a student's status on a date.
type Attendance struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	ClassID    string           `db:"class_id" json:"class_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Remarks    *string          `db:"remarks" json:"remarks,omitempty"`
	RecordedBy *string          `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceDetail adds the student's name and admission number.
type AttendanceDetail struct {
	Attendance
	StudentName string `db:"student_name" json:"student_name"`
	AdmissionNo string `db:"admission_no" json:"admission_no"`
}

// AttendanceFilter defines filters for listing attendance rows.
type AttendanceFilter struct {
	StudentID string
	ClassID   string
	Status    AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AttendanceSummary counts statuses over a period.
type AttendanceSummary struct {
	Present int     `db:"present" json:"present"`
	Absent  int     `db:"absent" json:"absent"`
	Late    int     `db:"late" json:"late"`
	Excused int     `db:"excused" json:"excused"`
	Total   int     `db:"total" json:"total"`
	Rate    float64 `db:"-" json:"rate"`
}

// WithRate fills Rate as (present + late) / total, in percent.
func (s AttendanceSummary) WithRate() AttendanceSummary {
	s.Rate = Percent(float64(s.Present+s.Late), float64(s.Total))
	return s
}

// AttendanceMark is one student's status inside a class roll call.
type AttendanceMark struct {
	StudentID string           `json:"student_id" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"required,oneof=present absent late excused"`
	Remarks   string           `json:"remarks"`
}

// TeacherAttendance is a teacher's status on a date with check in/out times.
type TeacherAttendance struct {
	ID        string           `db:"id" json:"id"`
	TeacherID string           `db:"teacher_id" json:"teacher_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	CheckIn   *time.Time       `db:"check_in" json:"check_in,omitempty"`
	CheckOut  *time.Time       `db:"check_out" json:"check_out,omitempty"`
	Remarks   *string          `db:"remarks" json:"remarks,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// TeacherAttendanceDetail adds the teacher's name.
type TeacherAttendanceDetail struct {
	TeacherAttendance
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// TeacherAttendanceFilter defines filters for listing teacher attendance.
type TeacherAttendanceFilter struct {
	TeacherID string
	Status    AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
