package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/middleware"
	"github.com/noah-isme/sims-api/internal/models"
)

// Handlers groups every HTTP handler served under /api/v1.
type Handlers struct {
	Auth              *AuthHandler
	Users             *UserHandler
	Audit             *AuditHandler
	Students          *StudentHandler
	Teachers          *TeacherHandler
	Guardians         *GuardianHandler
	Accountants       *AccountantHandler
	Departments       *DepartmentHandler
	Classes           *ClassHandler
	Subjects          *SubjectHandler
	Exams             *ExamHandler
	Results           *ResultHandler
	Grading           *GradingScaleHandler
	Attendance        *AttendanceHandler
	TeacherAttendance *TeacherAttendanceHandler
	Fees              *FeeHandler
	PaymentWebhook    *PaymentWebhookHandler
	Notices           *NoticeHandler
	Timetable         *TimetableHandler
	Notifications     *NotificationHandler
	LessonPlans       *LessonPlanHandler
	Dashboard         *DashboardHandler
	Portal            *PortalHandler
	Analytics         *AnalyticsHandler
	Exports           *ExportHandler
	Maintenance       *MaintenanceHandler
}

// AuditFunc builds a middleware recording one audited action on a resource.
type AuditFunc func(action, resource string) gin.HandlerFunc

const (
	roleAdmin      = models.RoleAdmin
	roleTeacher    = models.RoleTeacher
	roleStaff      = models.RoleStaff
	roleAccountant = models.RoleAccountant
	roleGuardian   = models.RoleGuardian
	roleStudent    = models.RoleStudent
)

// Register mounts every route on r. authenticate must populate middleware.ContextUserKey.
// SUPERADMIN passes every role check.
func Register(r gin.IRouter, h Handlers, authenticate gin.HandlerFunc, audit AuditFunc) {
	if audit == nil {
		audit = func(string, string) gin.HandlerFunc { return func(c *gin.Context) { c.Next() } }
	}
	admin := middleware.RequireRoles(roleAdmin)
	staff := middleware.RequireRoles(roleAdmin, roleTeacher, roleAccountant, roleStaff)
	academic := middleware.RequireRoles(roleAdmin, roleTeacher)
	finance := middleware.RequireRoles(roleAdmin, roleAccountant)

	v1 := r.Group("/api/v1")

	// Unauthenticated: login, token refresh, gateway callbacks and signed downloads.
	v1.POST("/auth/login", h.Auth.Login)
	v1.POST("/auth/refresh", h.Auth.Refresh)
	v1.POST("/payments/notifications", h.PaymentWebhook.Notify)
	v1.GET("/exports/download/:token", h.Exports.Download)

	api := v1.Group("")
	api.Use(authenticate)

	auth := api.Group("/auth")
	auth.POST("/logout", h.Auth.Logout)
	auth.POST("/change-password", h.Auth.ChangePassword)
	auth.GET("/me", h.Auth.Me)

	users := api.Group("/users")
	users.GET("", admin, h.Users.List)
	users.POST("", admin, h.Users.Create)
	users.GET("/:id", middleware.RBAC(string(roleAdmin), "SELF"), h.Users.Get)
	users.PUT("/:id", admin, h.Users.Update)
	users.PUT("/:id/role", admin, h.Users.ChangeRole)
	users.DELETE("/:id", admin, h.Users.Delete)

	api.GET("/audit-logs", admin, h.Audit.List)

	students := api.Group("/students")
	students.GET("", staff, h.Students.List)
	students.GET("/:id", staff, h.Students.Get)
	students.GET("/:id/profile", staff, h.Students.Profile)
	students.POST("", admin, h.Students.Create)
	students.PUT("/:id", admin, h.Students.Update)
	students.DELETE("/:id", admin, audit("STUDENT_DELETE", "student"), h.Students.Delete)

	teachers := api.Group("/teachers")
	teachers.GET("", staff, h.Teachers.List)
	teachers.GET("/:id", staff, h.Teachers.Get)
	teachers.POST("", admin, h.Teachers.Create)
	teachers.PUT("/:id", admin, h.Teachers.Update)
	teachers.DELETE("/:id", admin, audit("TEACHER_DELETE", "teacher"), h.Teachers.Delete)

	guardians := api.Group("/guardians")
	guardians.GET("", staff, h.Guardians.List)
	guardians.GET("/:id", staff, h.Guardians.Get)
	guardians.POST("", admin, h.Guardians.Create)
	guardians.PUT("/:id", admin, h.Guardians.Update)
	guardians.DELETE("/:id", admin, audit("GUARDIAN_DELETE", "guardian"), h.Guardians.Delete)
	guardians.POST("/:id/students", admin, h.Guardians.LinkStudent)
	guardians.DELETE("/:id/students/:studentId", admin, h.Guardians.UnlinkStudent)

	accountants := api.Group("/accountants")
	accountants.GET("", finance, h.Accountants.List)
	accountants.GET("/:id", finance, h.Accountants.Get)
	accountants.POST("", admin, h.Accountants.Create)
	accountants.PUT("/:id", admin, audit("ACCOUNTANT_UPDATE", "accountant"), h.Accountants.Update)
	accountants.DELETE("/:id", admin, h.Accountants.Delete)

	departments := api.Group("/departments")
	departments.GET("", staff, h.Departments.List)
	departments.GET("/:id", staff, h.Departments.Get)
	departments.POST("", admin, h.Departments.Create)
	departments.PUT("/:id", admin, h.Departments.Update)
	departments.DELETE("/:id", admin, h.Departments.Delete)

	classes := api.Group("/classes")
	classes.GET("", h.Classes.List)
	classes.GET("/:id", h.Classes.Get)
	classes.POST("", admin, h.Classes.Create)
	classes.PUT("/:id", admin, h.Classes.Update)
	classes.DELETE("/:id", admin, h.Classes.Delete)

	subjects := api.Group("/subjects")
	subjects.GET("", h.Subjects.List)
	subjects.GET("/:id", h.Subjects.Get)
	subjects.POST("", admin, h.Subjects.Create)
	subjects.PUT("/:id", admin, h.Subjects.Update)
	subjects.DELETE("/:id", admin, h.Subjects.Delete)

	exams := api.Group("/exams")
	exams.GET("", h.Exams.List)
	exams.GET("/:id", h.Exams.Get)
	exams.POST("", admin, h.Exams.Create)
	exams.PUT("/:id", admin, h.Exams.Update)
	exams.DELETE("/:id", admin, audit("EXAM_DELETE", "exam"), h.Exams.Delete)
	exams.POST("/:id/publish", admin, h.Exams.Publish)
	exams.GET("/:id/ranks", academic, h.Exams.RankList)
	exams.POST("/:id/results", academic, h.Results.BulkEntry)
	exams.GET("/:id/report-cards/:studentId", h.Results.ReportCard)

	results := api.Group("/results")
	results.GET("", h.Results.List)
	results.GET("/:id", academic, h.Results.Get)
	results.PUT("/:id", academic, h.Results.Update)
	results.DELETE("/:id", admin, audit("RESULT_DELETE", "result"), h.Results.Delete)

	grading := api.Group("/grading-scales")
	grading.GET("", h.Grading.List)
	grading.GET("/preview", h.Grading.Preview)
	grading.GET("/:id", h.Grading.Get)
	grading.POST("", admin, h.Grading.Create)
	grading.PUT("/:id", admin, h.Grading.Update)
	grading.DELETE("/:id", admin, h.Grading.Delete)

	attendance := api.Group("/attendance")
	attendance.GET("", h.Attendance.List)
	attendance.GET("/summary", h.Attendance.Summary)
	attendance.GET("/:id", staff, h.Attendance.Get)
	attendance.POST("/class", academic, h.Attendance.MarkClass)
	attendance.PUT("/:id", academic, h.Attendance.Update)
	attendance.DELETE("/:id", admin, h.Attendance.Delete)

	teacherAttendance := api.Group("/teacher-attendance")
	teacherAttendance.GET("", middleware.RequireRoles(roleAdmin, roleStaff), h.TeacherAttendance.List)
	teacherAttendance.GET("/summary", middleware.RequireRoles(roleAdmin, roleStaff), h.TeacherAttendance.Summary)
	teacherAttendance.POST("", middleware.RequireRoles(roleAdmin, roleStaff), h.TeacherAttendance.Record)
	teacherAttendance.POST("/check-in", middleware.RequireRoles(roleTeacher), h.TeacherAttendance.CheckIn)
	teacherAttendance.POST("/check-out", middleware.RequireRoles(roleTeacher), h.TeacherAttendance.CheckOut)
	teacherAttendance.DELETE("/:id", admin, h.TeacherAttendance.Delete)

	fees := api.Group("/fees")
	fees.GET("", h.Fees.List)
	fees.GET("/:id", h.Fees.Get)
	fees.POST("", finance, h.Fees.Create)
	fees.PUT("/:id", finance, h.Fees.Update)
	fees.DELETE("/:id", finance, audit("FEE_DELETE", "fee"), h.Fees.Delete)
	fees.GET("/:id/payments", finance, h.Fees.ListPayments)
	fees.POST("/:id/payments", finance, h.Fees.RecordPayment)
	fees.POST("/:id/waivers", finance, h.Fees.RequestWaiver)
	fees.GET("/:id/plan", finance, h.Fees.GetPlan)
	fees.POST("/:id/plan", finance, h.Fees.CreatePlan)
	fees.POST("/:id/checkout", middleware.RequireRoles(roleGuardian, roleStudent), h.Fees.Checkout)
	fees.GET("/:id/orders", finance, h.Fees.Orders)

	api.GET("/payments/:paymentId/receipt", h.Fees.Receipt)
	api.POST("/installments/:id/payments", finance, h.Fees.PayInstallment)
	api.GET("/waivers", finance, h.Fees.ListWaivers)
	api.POST("/waivers/:id/decision", finance, h.Fees.DecideWaiver)

	notices := api.Group("/notices")
	notices.GET("", admin, h.Notices.List)
	notices.GET("/feed", h.Notices.Feed)
	notices.GET("/:id", h.Notices.Get)
	notices.POST("", admin, h.Notices.Create)
	notices.PUT("/:id", admin, h.Notices.Update)
	notices.DELETE("/:id", admin, h.Notices.Delete)

	periods := api.Group("/periods")
	periods.GET("", h.Timetable.ListPeriods)
	periods.GET("/:id", h.Timetable.GetPeriod)
	periods.POST("", admin, h.Timetable.CreatePeriod)
	periods.PUT("/:id", admin, h.Timetable.UpdatePeriod)
	periods.DELETE("/:id", admin, h.Timetable.DeletePeriod)

	timetable := api.Group("/timetable")
	timetable.GET("", h.Timetable.List)
	timetable.GET("/today", h.Timetable.Today)
	timetable.GET("/:id", h.Timetable.Get)
	timetable.POST("", admin, h.Timetable.Create)
	timetable.PUT("/:id", admin, h.Timetable.Update)
	timetable.DELETE("/:id", admin, h.Timetable.Delete)

	notifications := api.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.GET("/unread-count", h.Notifications.UnreadCount)
	notifications.POST("/read-all", h.Notifications.MarkAllRead)
	notifications.POST("/:id/read", h.Notifications.MarkRead)

	plans := api.Group("/lesson-plans", academic)
	plans.GET("", h.LessonPlans.List)
	plans.GET("/counts", h.LessonPlans.Counts)
	plans.GET("/:id", h.LessonPlans.Get)
	plans.POST("", h.LessonPlans.Create)
	plans.PUT("/:id", h.LessonPlans.Update)
	plans.POST("/:id/submit", h.LessonPlans.Submit)
	plans.POST("/:id/review", admin, h.LessonPlans.Review)
	plans.DELETE("/:id", h.LessonPlans.Delete)

	dashboard := api.Group("/dashboard")
	dashboard.GET("", h.Dashboard.Home)
	dashboard.GET("/admin", admin, h.Dashboard.Admin)
	dashboard.GET("/teacher", middleware.RequireRoles(roleTeacher), h.Dashboard.Teacher)
	dashboard.GET("/student", middleware.RequireRoles(roleStudent), h.Dashboard.Student)
	dashboard.GET("/staff", middleware.RequireRoles(roleAdmin, roleStaff), h.Dashboard.Staff)

	portal := api.Group("/portal")
	portal.GET("/guardian", middleware.RequireRoles(roleGuardian), h.Portal.Guardian)
	portal.GET("/accountant", finance, h.Portal.Accountant)

	analytics := api.Group("/analytics", admin)
	analytics.GET("/counts", h.Analytics.Counts)
	analytics.GET("/attendance", h.Analytics.Attendance)
	analytics.GET("/collections", h.Analytics.Collections)
	analytics.GET("/exams/:id", h.Analytics.ExamPerformance)
	analytics.GET("/system", h.Analytics.System)

	exports := api.Group("/exports")
	exports.POST("/exams/:id/ranks", academic, h.Exports.RankList)
	exports.POST("/exams/:id/report-cards/:studentId", h.Exports.ReportCard)
	exports.POST("/payments/:paymentId/receipt", h.Exports.FeeReceipt)
	exports.POST("/attendance", academic, h.Exports.AttendanceSheet)

	maintenance := api.Group("/admin/maintenance", admin)
	maintenance.POST("/roles-sync", h.Maintenance.SyncRoles)
	maintenance.POST("/integrity", h.Maintenance.CheckIntegrity)
}
