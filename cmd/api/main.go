package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sims-api/api/swagger"
	"github.com/noah-isme/sims-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sims-api/internal/middleware"
	"github.com/noah-isme/sims-api/internal/repository"
	"github.com/noah-isme/sims-api/internal/service"
	"github.com/noah-isme/sims-api/migrations"
	"github.com/noah-isme/sims-api/pkg/cache"
	"github.com/noah-isme/sims-api/pkg/config"
	"github.com/noah-isme/sims-api/pkg/database"
	"github.com/noah-isme/sims-api/pkg/events"
	"github.com/noah-isme/sims-api/pkg/jobs"
	"github.com/noah-isme/sims-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sims-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sims-api/pkg/middleware/requestid"
	"github.com/noah-isme/sims-api/pkg/notify"
	"github.com/noah-isme/sims-api/pkg/payment"
	"github.com/noah-isme/sims-api/pkg/scheduler"
	"github.com/noah-isme/sims-api/pkg/storage"
)

// @title School Management API
// @version 1.0.0
// @description Academic records, attendance, fees and portals for a school or madrasa.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database, migrations.FS, database.MigrateUp, logr); err != nil {
			logr.Fatal("migrations failed", zap.Error(err))
		}
	}

	db, err := database.NewPostgres(cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis, logr)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	bus, err := events.NewBus(cfg.Events, logr)
	if err != nil {
		logr.Fatal("failed to init event bus", zap.Error(err))
	}

	store, err := newStore(cfg.Storage)
	if err != nil {
		logr.Fatal("failed to init export storage", zap.Error(err))
	}

	app := build(cfg, db, redisClient, bus, store, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.delivery.Start(ctx)
	go func() {
		if err := bus.Run(ctx); err != nil {
			logr.Error("event bus stopped", zap.Error(err))
		}
	}()

	cron := scheduler.New(logr, 0)
	if cfg.Cron.Enabled {
		mustRegister(logr, cron, "fee_overdue_sweep", cfg.Cron.OverdueSweep, func(ctx context.Context) error {
			fees, installments, err := app.fees.SweepOverdue(ctx)
			if err == nil {
				logr.Info("overdue sweep", zap.Int64("fees", fees), zap.Int64("installments", installments))
			}
			return err
		})
		mustRegister(logr, cron, "export_cleanup", cfg.Cron.ExportCleanup, func(ctx context.Context) error {
			removed, err := app.exports.Cleanup(ctx)
			if err == nil && len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
			return err
		})
		cron.Start()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown", zap.Error(err))
	}
	cron.Stop(shutdownCtx)
	if err := bus.Close(); err != nil {
		logr.Error("event bus close", zap.Error(err))
	}
	app.delivery.Stop(shutdownCtx)
}

type application struct {
	router   *gin.Engine
	fees     *service.FeeService
	exports  *service.ExportService
	delivery *jobs.Queue
}

func build(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, bus *events.Bus, store storage.Store, logr *zap.Logger) *application {
	validate := service.NewValidator()
	metrics := service.NewMetricsService()

	users := repository.NewUserRepository(db)
	students := repository.NewStudentRepository(db)
	teachers := repository.NewTeacherRepository(db)
	guardians := repository.NewGuardianRepository(db)
	accountants := repository.NewAccountantRepository(db)
	departments := repository.NewDepartmentRepository(db)
	classes := repository.NewClassRepository(db)
	subjects := repository.NewSubjectRepository(db)
	exams := repository.NewExamRepository(db)
	results := repository.NewResultRepository(db)
	grading := repository.NewGradingScaleRepository(db)
	attendance := repository.NewAttendanceRepository(db)
	teacherAttendance := repository.NewTeacherAttendanceRepository(db)
	fees := repository.NewFeeRepository(db)
	orders := repository.NewPaymentOrderRepository(db)
	notices := repository.NewNoticeRepository(db)
	timetable := repository.NewTimetableRepository(db)
	notifications := repository.NewNotificationRepository(db)
	lessonPlans := repository.NewLessonPlanRepository(db)
	analytics := repository.NewAnalyticsRepository(db)
	integrity := repository.NewIntegrityRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	access := service.NewAccessResolver(students, guardians)

	authSvc := service.NewAuthService(users, access, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sims-api",
	})
	userSvc := service.NewUserService(users, validate, logr)
	auditSvc := service.NewAuditService(users)
	studentSvc := service.NewStudentService(students, classes, service.StudentProfileDeps{
		Attendance: attendance,
		Fees:       fees,
		Guardians:  guardians,
		Results:    results,
	}, validate, logr)
	teacherSvc := service.NewTeacherService(teachers, departments, validate, logr)
	guardianSvc := service.NewGuardianService(guardians, students, validate, logr)
	accountantSvc := service.NewAccountantService(accountants, validate, logr)
	departmentSvc := service.NewDepartmentService(departments, teachers, validate, logr)
	classSvc := service.NewClassService(classes, teachers, validate, logr)
	subjectSvc := service.NewSubjectService(subjects, classes, teachers, validate, logr)
	gradingSvc := service.NewGradingScaleService(grading, validate, logr)
	examSvc := service.NewExamService(exams, classes, grading, users, bus, validate, logr)
	resultSvc := service.NewResultService(results, exams, subjects, students, grading, users, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendance, classes, students, validate, logr)
	teacherAttendanceSvc := service.NewTeacherAttendanceService(teacherAttendance, teachers, teachers, cfg.School.TeacherLateAfter, validate, logr)
	feeSvc := service.NewFeeService(fees, students, accountants, users, bus, validate, logr)
	onlineSvc := service.NewOnlinePaymentService(orders, feeSvc, newGateway(cfg.Payment), logr)
	noticeSvc := service.NewNoticeService(notices, classes, access, users, bus, validate, logr)
	timetableSvc := service.NewTimetableService(timetable, classes, subjects, teachers, validate, logr)
	notificationSvc := service.NewNotificationService(notifications, logr)
	lessonPlanSvc := service.NewLessonPlanService(lessonPlans, subjects, teachers, teachers, users, bus, validate, logr)
	analyticsSvc := service.NewAnalyticsService(analytics, cacheSvc, metrics, logr)
	maintenanceSvc := service.NewMaintenanceService(users, integrity, fees, users, logr)

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Counts:            analytics,
		Attendance:        attendance,
		TeacherAttendance: teacherAttendance,
		Finance:           fees,
		Notices:           noticeSvc,
		Timetable:         timetableSvc,
		Classes:           classes,
		LessonPlans:       lessonPlanSvc,
		Results:           results,
		Teachers:          teachers,
		Students:          students,
		Guardians:         guardians,
		Cache:             cacheSvc,
		Logger:            logr,
		Config:            service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	dashboardSvc.RegisterInvalidation(bus)
	metrics.RegisterEventCounters(bus)

	exportSvc := service.NewExportService(service.ExportServiceParams{
		Ranks:      examSvc,
		Cards:      resultSvc,
		Receipts:   feeSvc,
		Attendance: attendance,
		Classes:    classes,
		Guard:      access,
		Store:      store,
		Signer:     storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		Metrics:    metrics,
		Logger:     logr,
		Config:     service.ExportConfig{BaseURL: cfg.Exports.BaseURL, RetainFor: cfg.Exports.RetainFor},
	})

	worker := service.NewDeliveryWorker(newMailer(cfg.Mail, logr), newSMS(cfg.SMS, logr), metrics, logr)
	delivery := jobs.NewQueue("notification_delivery", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Delivery.Workers,
		BufferSize: cfg.Delivery.BufferSize,
		MaxRetries: cfg.Delivery.MaxRetries,
		RetryDelay: cfg.Delivery.RetryDelay,
		Logger:     logr,
		OnGiveUp:   worker.GivenUp,
	})
	dispatcher := service.NewNotificationDispatcher(notifications, notifications, teachers, delivery, logr)
	dispatcher.Register(bus)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr,
		logger.SkipPaths("/health", "/ready", "/metrics"),
		logger.WithFields(internalmiddleware.LogFields),
	))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())
	if reporter := internalmiddleware.NewRollbarReporter(cfg.Rollbar, cfg.Env); reporter != nil {
		r.Use(internalmiddleware.ErrorReport(reporter, logr))
	}

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Register(r, handler.Handlers{
		Auth:              handler.NewAuthHandler(authSvc),
		Users:             handler.NewUserHandler(userSvc),
		Audit:             handler.NewAuditHandler(auditSvc),
		Students:          handler.NewStudentHandler(studentSvc),
		Teachers:          handler.NewTeacherHandler(teacherSvc),
		Guardians:         handler.NewGuardianHandler(guardianSvc),
		Accountants:       handler.NewAccountantHandler(accountantSvc),
		Departments:       handler.NewDepartmentHandler(departmentSvc),
		Classes:           handler.NewClassHandler(classSvc),
		Subjects:          handler.NewSubjectHandler(subjectSvc),
		Exams:             handler.NewExamHandler(examSvc),
		Results:           handler.NewResultHandler(resultSvc, access),
		Grading:           handler.NewGradingScaleHandler(gradingSvc),
		Attendance:        handler.NewAttendanceHandler(attendanceSvc, access),
		TeacherAttendance: handler.NewTeacherAttendanceHandler(teacherAttendanceSvc),
		Fees:              handler.NewFeeHandler(feeSvc, onlineSvc, access),
		PaymentWebhook:    handler.NewPaymentWebhookHandler(onlineSvc, logr),
		Notices:           handler.NewNoticeHandler(noticeSvc),
		Timetable:         handler.NewTimetableHandler(timetableSvc),
		Notifications:     handler.NewNotificationHandler(notificationSvc),
		LessonPlans:       handler.NewLessonPlanHandler(lessonPlanSvc),
		Dashboard:         handler.NewDashboardHandler(dashboardSvc),
		Portal:            handler.NewPortalHandler(dashboardSvc),
		Analytics:         handler.NewAnalyticsHandler(analyticsSvc),
		Exports:           handler.NewExportHandler(exportSvc),
		Maintenance:       handler.NewMaintenanceHandler(maintenanceSvc),
	}, internalmiddleware.JWT(authSvc), func(action, resource string) gin.HandlerFunc {
		return internalmiddleware.Audit(users, logr, action, resource)
	})

	return &application{router: r, fees: feeSvc, exports: exportSvc, delivery: delivery}
}

func newStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.StorageS3:
		return storage.NewS3Storage(cfg)
	case "", config.StorageLocal:
		return storage.NewLocalStorage(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// newGateway returns nil when no server key is configured so checkout reports the feature as unavailable.
func newGateway(cfg config.PaymentConfig) service.CheckoutGateway {
	if cfg.ServerKey == "" {
		return nil
	}
	return payment.NewMidtransGateway(cfg)
}

func newMailer(cfg config.MailConfig, logr *zap.Logger) notify.EmailSender {
	if cfg.APIKey == "" {
		return notify.NewLogSender(logr)
	}
	return notify.NewSendGridMailer(cfg)
}

func newSMS(cfg config.SMSConfig, logr *zap.Logger) notify.SMSSender {
	if cfg.AccountSID == "" {
		return notify.NewLogSender(logr)
	}
	return notify.NewTwilioSMS(cfg)
}

func mustRegister(logr *zap.Logger, s *scheduler.Scheduler, name, spec string, job scheduler.Job) {
	if err := s.Register(name, spec, job); err != nil {
		logr.Fatal("invalid schedule", zap.Error(err))
	}
}
