package dto

import "github.com/noah-isme/sims-api/internal/models"

// AdminDashboardResponse captures the aggregated admin dashboard payload.
type AdminDashboardResponse struct {
	Date       string                   `json:"date"`
	Counts     AdminCounts              `json:"counts"`
	Attendance models.AttendanceSummary `json:"attendanceToday"`
	Finance    AdminFinanceSection      `json:"finance"`
	Notices    []models.Notice          `json:"notices"`
}

// AdminCounts holds headcounts of active records.
type AdminCounts struct {
	Students  int `json:"students"`
	Teachers  int `json:"teachers"`
	Classes   int `json:"classes"`
	Guardians int `json:"guardians"`
}

// AdminFinanceSection summarises collections for the admin landing page.
type AdminFinanceSection struct {
	CollectedThisMonth float64 `json:"collectedThisMonth"`
	TotalPending       float64 `json:"totalPending"`
	PendingWaivers     int     `json:"pendingWaivers"`
}

// TeacherDashboardResponse captures personalised teacher dashboard data.
type TeacherDashboardResponse struct {
	TeacherID   string                   `json:"teacherId"`
	Date        string                   `json:"date"`
	Classes     []models.ClassDetail     `json:"classes"`
	Today       []models.TimetableDetail `json:"today"`
	Attendance  models.AttendanceSummary `json:"attendance"`
	LessonPlans []models.StatusCount     `json:"lessonPlans"`
	Notices     []models.Notice          `json:"notices"`
}

// StudentDashboardResponse captures the student landing page.
type StudentDashboardResponse struct {
	StudentID   string                   `json:"studentId"`
	Date        string                   `json:"date"`
	Attendance  models.AttendanceSummary `json:"attendance"`
	PendingFees float64                  `json:"pendingFees"`
	Results     []models.ResultDetail    `json:"latestResults"`
	Today       []models.TimetableDetail `json:"today"`
	Notices     []models.Notice          `json:"notices"`
}

// StaffDashboardResponse captures the staff landing page.
type StaffDashboardResponse struct {
	Date              string                   `json:"date"`
	TeacherAttendance models.AttendanceSummary `json:"teacherAttendanceToday"`
	Notices           []models.Notice          `json:"notices"`
}

// GuardianPortalResponse lists every linked child with its key figures.
type GuardianPortalResponse struct {
	GuardianID string          `json:"guardianId"`
	Children   []ChildOverview `json:"children"`
	Notices    []models.Notice `json:"notices"`
}

// ChildOverview is one child inside the guardian portal.
type ChildOverview struct {
	StudentID   string                   `json:"studentId"`
	FullName    string                   `json:"fullName"`
	ClassID     *string                  `json:"classId,omitempty"`
	Relation    string                   `json:"relation"`
	Attendance  models.AttendanceSummary `json:"attendance"`
	PendingFees float64                  `json:"pendingFees"`
	Results     []models.ResultDetail    `json:"publishedResults"`
}

// AccountantPortalResponse aggregates the finance desk view.
type AccountantPortalResponse struct {
	Date                string                    `json:"date"`
	CollectedToday      float64                   `json:"collectedToday"`
	CollectedThisMonth  float64                   `json:"collectedThisMonth"`
	TotalPending        float64                   `json:"totalPending"`
	OverdueFees         int                       `json:"overdueFees"`
	OverdueInstallments int                       `json:"overdueInstallments"`
	PendingWaivers      int                       `json:"pendingWaivers"`
	RecentPayments      []models.FeePaymentDetail `json:"recentPayments"`
}
