package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/internal/dto"
	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/events"
)

type schoolCounter interface {
	Counts(ctx context.Context) (models.SchoolCounts, error)
}

type teacherAttendanceSummarizer interface {
	Summary(ctx context.Context, filter models.TeacherAttendanceFilter) (models.AttendanceSummary, error)
}

type financeReader interface {
	CollectedBetween(ctx context.Context, from, to time.Time) (float64, error)
	PendingTotal(ctx context.Context, studentIDs []string) (float64, error)
	CountPendingWaivers(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status models.FeeStatus) (int, error)
	CountOverdueInstallments(ctx context.Context) (int, error)
	RecentPayments(ctx context.Context, limit int) ([]models.FeePaymentDetail, error)
}

type noticeFeed interface {
	Feed(ctx context.Context, actor models.Actor, filter models.NoticeFilter) ([]models.Notice, *models.Pagination, error)
}

type timetableToday interface {
	Today(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableDetail, error)
}

type teacherClassLister interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.ClassDetail, error)
}

type lessonPlanCounter interface {
	StatusCounts(ctx context.Context, actor models.Actor) ([]models.StatusCount, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL       time.Duration
	NoticeLimit    int
	ResultLimit    int
	RecentPayments int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Counts            schoolCounter
	Attendance        attendanceSummarizer
	TeacherAttendance teacherAttendanceSummarizer
	Finance           financeReader
	Notices           noticeFeed
	Timetable         timetableToday
	Classes           teacherClassLister
	LessonPlans       lessonPlanCounter
	Results           publishedResultReader
	Teachers          teacherByUserLookup
	Students          studentByUserLookup
	Guardians         guardianScopeReader
	Cache             *CacheService
	Logger            *zap.Logger
	Config            DashboardServiceConfig
}

// DashboardService composes the role dashboards and portals, memoised per user.
type DashboardService struct {
	p      DashboardServiceParams
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.NoticeLimit <= 0 {
		cfg.NoticeLimit = 5
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 10
	}
	if cfg.RecentPayments <= 0 {
		cfg.RecentPayments = 10
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{p: params, cache: params.Cache, logger: logger, now: time.Now, cfg: cfg}
}

// Admin returns the admin dashboard and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context, actor models.Actor) (*dto.AdminDashboardResponse, bool, error) {
	var out dto.AdminDashboardResponse
	hit, err := s.cached(ctx, s.cacheKey("admin", actor), &out, func(day time.Time) error {
		counts, err := s.p.Counts.Counts(ctx)
		if err != nil {
			return internalError(err, "failed to count records")
		}
		attendance, err := s.p.Attendance.Summary(ctx, models.AttendanceFilter{DateFrom: &day, DateTo: &day})
		if err != nil {
			return internalError(err, "failed to summarise attendance")
		}
		monthStart := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		collected, err := s.p.Finance.CollectedBetween(ctx, monthStart, monthStart.AddDate(0, 1, 0))
		if err != nil {
			return internalError(err, "failed to sum collections")
		}
		pending, err := s.p.Finance.PendingTotal(ctx, nil)
		if err != nil {
			return internalError(err, "failed to sum pending fees")
		}
		waivers, err := s.p.Finance.CountPendingWaivers(ctx)
		if err != nil {
			return internalError(err, "failed to count waivers")
		}
		notices, err := s.notices(ctx, actor)
		if err != nil {
			return err
		}
		out = dto.AdminDashboardResponse{
			Date:       day.Format(dateLayout),
			Counts:     dto.AdminCounts(counts),
			Attendance: attendance.WithRate(),
			Finance: dto.AdminFinanceSection{
				CollectedThisMonth: models.Round2(collected),
				TotalPending:       models.Round2(pending),
				PendingWaivers:     waivers,
			},
			Notices: notices,
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, hit, nil
}

// Teacher returns the caller's teacher dashboard.
func (s *DashboardService) Teacher(ctx context.Context, actor models.Actor) (*dto.TeacherDashboardResponse, bool, error) {
	var out dto.TeacherDashboardResponse
	hit, err := s.cached(ctx, s.cacheKey("teacher", actor), &out, func(day time.Time) error {
		teacher, err := s.p.Teachers.FindByUserID(ctx, actor.UserID)
		if err != nil {
			return profileError(err, "teacher")
		}
		classes, err := s.p.Classes.ListByTeacher(ctx, teacher.ID)
		if err != nil {
			return internalError(err, "failed to list classes")
		}
		today, err := s.p.Timetable.Today(ctx, models.TimetableFilter{TeacherID: teacher.ID})
		if err != nil {
			return err
		}
		attendance, err := s.p.TeacherAttendance.Summary(ctx, models.TeacherAttendanceFilter{TeacherID: teacher.ID})
		if err != nil {
			return internalError(err, "failed to summarise attendance")
		}
		plans, err := s.p.LessonPlans.StatusCounts(ctx, actor)
		if err != nil {
			return err
		}
		notices, err := s.notices(ctx, actor)
		if err != nil {
			return err
		}
		out = dto.TeacherDashboardResponse{
			TeacherID:   teacher.ID,
			Date:        day.Format(dateLayout),
			Classes:     nonNilClasses(classes),
			Today:       nonNilTimetable(today),
			Attendance:  attendance.WithRate(),
			LessonPlans: plans,
			Notices:     notices,
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, hit, nil
}

// Student returns the caller's student dashboard.
func (s *DashboardService) Student(ctx context.Context, actor models.Actor) (*dto.StudentDashboardResponse, bool, error) {
	var out dto.StudentDashboardResponse
	hit, err := s.cached(ctx, s.cacheKey("student", actor), &out, func(day time.Time) error {
		student, err := s.p.Students.FindByUserID(ctx, actor.UserID)
		if err != nil {
			return profileError(err, "student")
		}
		attendance, err := s.p.Attendance.Summary(ctx, models.AttendanceFilter{StudentID: student.ID})
		if err != nil {
			return internalError(err, "failed to summarise attendance")
		}
		pending, err := s.p.Finance.PendingTotal(ctx, []string{student.ID})
		if err != nil {
			return internalError(err, "failed to sum pending fees")
		}
		results, err := s.p.Results.LatestPublished(ctx, student.ID, s.cfg.ResultLimit)
		if err != nil {
			return internalError(err, "failed to load results")
		}
		var today []models.TimetableDetail
		if student.ClassID != nil {
			if today, err = s.p.Timetable.Today(ctx, models.TimetableFilter{ClassID: *student.ClassID}); err != nil {
				return err
			}
		}
		notices, err := s.notices(ctx, actor)
		if err != nil {
			return err
		}
		out = dto.StudentDashboardResponse{
			StudentID:   student.ID,
			Date:        day.Format(dateLayout),
			Attendance:  attendance.WithRate(),
			PendingFees: models.Round2(pending),
			Results:     nonNilResults(results),
			Today:       nonNilTimetable(today),
			Notices:     notices,
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, hit, nil
}

// Staff returns the staff dashboard.
func (s *DashboardService) Staff(ctx context.Context, actor models.Actor) (*dto.StaffDashboardResponse, bool, error) {
	var out dto.StaffDashboardResponse
	hit, err := s.cached(ctx, s.cacheKey("staff", actor), &out, func(day time.Time) error {
		attendance, err := s.p.TeacherAttendance.Summary(ctx, models.TeacherAttendanceFilter{DateFrom: &day, DateTo: &day})
		if err != nil {
			return internalError(err, "failed to summarise teacher attendance")
		}
		notices, err := s.notices(ctx, actor)
		if err != nil {
			return err
		}
		out = dto.StaffDashboardResponse{Date: day.Format(dateLayout), TeacherAttendance: attendance.WithRate(), Notices: notices}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, hit, nil
}

// Guardian returns the guardian portal with one overview per linked child.
func (s *DashboardService) Guardian(ctx context.Context, actor models.Actor) (*dto.GuardianPortalResponse, bool, error) {
	var out dto.GuardianPortalResponse
	hit, err := s.cached(ctx, s.cacheKey("guardian", actor), &out, func(time.Time) error {
		guardian, err := s.p.Guardians.FindByUserID(ctx, actor.UserID)
		if err != nil {
			return profileError(err, "guardian")
		}
		links, err := s.p.Guardians.ListStudents(ctx, guardian.ID)
		if err != nil {
			return internalError(err, "failed to load linked students")
		}
		children := make([]dto.ChildOverview, 0, len(links))
		for _, link := range links {
			attendance, err := s.p.Attendance.Summary(ctx, models.AttendanceFilter{StudentID: link.StudentID})
			if err != nil {
				return internalError(err, "failed to summarise attendance")
			}
			pending, err := s.p.Finance.PendingTotal(ctx, []string{link.StudentID})
			if err != nil {
				return internalError(err, "failed to sum pending fees")
			}
			results, err := s.p.Results.LatestPublished(ctx, link.StudentID, s.cfg.ResultLimit)
			if err != nil {
				return internalError(err, "failed to load results")
			}
			children = append(children, dto.ChildOverview{
				StudentID:   link.StudentID,
				FullName:    link.StudentName,
				ClassID:     link.ClassID,
				Relation:    link.Relation,
				Attendance:  attendance.WithRate(),
				PendingFees: models.Round2(pending),
				Results:     nonNilResults(results),
			})
		}
		notices, err := s.notices(ctx, actor)
		if err != nil {
			return err
		}
		out = dto.GuardianPortalResponse{GuardianID: guardian.ID, Children: children, Notices: notices}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, hit, nil
}

// Accountant returns the finance desk portal.
func (s *DashboardService) Accountant(ctx context.Context, actor models.Actor) (*dto.AccountantPortalResponse, bool, error) {
	var out dto.AccountantPortalResponse
	hit, err := s.cached(ctx, s.cacheKey("accountant", actor), &out, func(day time.Time) error {
		today, err := s.p.Finance.CollectedBetween(ctx, day, day.AddDate(0, 0, 1))
		if err != nil {
			return internalError(err, "failed to sum collections")
		}
		monthStart := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		month, err := s.p.Finance.CollectedBetween(ctx, monthStart, monthStart.AddDate(0, 1, 0))
		if err != nil {
			return internalError(err, "failed to sum collections")
		}
		pending, err := s.p.Finance.PendingTotal(ctx, nil)
		if err != nil {
			return internalError(err, "failed to sum pending fees")
		}
		overdue, err := s.p.Finance.CountByStatus(ctx, models.FeeOverdue)
		if err != nil {
			return internalError(err, "failed to count overdue fees")
		}
		overdueInstallments, err := s.p.Finance.CountOverdueInstallments(ctx)
		if err != nil {
			return internalError(err, "failed to count overdue installments")
		}
		waivers, err := s.p.Finance.CountPendingWaivers(ctx)
		if err != nil {
			return internalError(err, "failed to count waivers")
		}
		recent, err := s.p.Finance.RecentPayments(ctx, s.cfg.RecentPayments)
		if err != nil {
			return internalError(err, "failed to list payments")
		}
		if recent == nil {
			recent = []models.FeePaymentDetail{}
		}
		out = dto.AccountantPortalResponse{
			Date:                day.Format(dateLayout),
			CollectedToday:      models.Round2(today),
			CollectedThisMonth:  models.Round2(month),
			TotalPending:        models.Round2(pending),
			OverdueFees:         overdue,
			OverdueInstallments: overdueInstallments,
			PendingWaivers:      waivers,
			RecentPayments:      recent,
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, hit, nil
}

// Invalidate drops every memoised dashboard.
func (s *DashboardService) Invalidate(ctx context.Context) error {
	return s.cache.InvalidateNamespace(ctx, CacheNamespaceDashboard)
}

// RegisterInvalidation flushes dashboards whenever an event changes the figures they show.
func (s *DashboardService) RegisterInvalidation(sub eventSubscriber) {
	topics := []string{
		events.TopicResultsPublished,
		events.TopicNoticePublished,
		events.TopicFeePaymentRecorded,
		events.TopicWaiverDecided,
		events.TopicLessonPlanReviewed,
	}
	for _, topic := range topics {
		sub.Handle("dashboard_invalidate_"+topic, topic, func(ctx context.Context, _ []byte) error {
			return s.Invalidate(ctx)
		})
	}
}

func (s *DashboardService) cacheKey(view string, actor models.Actor) string {
	return CacheKey(CacheNamespaceDashboard, view, actor.UserID, s.now().UTC().Format(dateLayout))
}

// cached serves dest from cache or runs compose, which fills dest for the current day.
func (s *DashboardService) cached(ctx context.Context, key string, dest interface{}, compose func(day time.Time) error) (bool, error) {
	return s.cache.Remember(ctx, key, s.cfg.CacheTTL, dest, func() error {
		return compose(truncateDay(s.now()))
	})
}

func (s *DashboardService) notices(ctx context.Context, actor models.Actor) ([]models.Notice, error) {
	if s.p.Notices == nil {
		return []models.Notice{}, nil
	}
	items, _, err := s.p.Notices.Feed(ctx, actor, models.NoticeFilter{Page: 1, PageSize: s.cfg.NoticeLimit})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notice{}
	}
	return items, nil
}

func profileError(err error, role string) *appErrors.Error {
	if isNotFound(err) {
		return appErrors.Clone(appErrors.ErrForbidden, "no "+role+" profile for this account")
	}
	return internalError(err, "failed to load "+role+" profile")
}

func nonNilClasses(in []models.ClassDetail) []models.ClassDetail {
	if in == nil {
		return []models.ClassDetail{}
	}
	return in
}

func nonNilTimetable(in []models.TimetableDetail) []models.TimetableDetail {
	if in == nil {
		return []models.TimetableDetail{}
	}
	return in
}

func nonNilResults(in []models.ResultDetail) []models.ResultDetail {
	if in == nil {
		return []models.ResultDetail{}
	}
	return in
}
