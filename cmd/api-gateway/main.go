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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/blueridge-hs/registrar-api/api/swagger"
	"github.com/blueridge-hs/registrar-api/internal/handler"
	"github.com/blueridge-hs/registrar-api/internal/middleware"
	"github.com/blueridge-hs/registrar-api/internal/models"
	"github.com/blueridge-hs/registrar-api/internal/repository"
	"github.com/blueridge-hs/registrar-api/internal/service"
	"github.com/blueridge-hs/registrar-api/pkg/cache"
	"github.com/blueridge-hs/registrar-api/pkg/config"
	"github.com/blueridge-hs/registrar-api/pkg/database"
	"github.com/blueridge-hs/registrar-api/pkg/jobs"
	"github.com/blueridge-hs/registrar-api/pkg/logger"
	corsmiddleware "github.com/blueridge-hs/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/blueridge-hs/registrar-api/pkg/middleware/requestid"
	"github.com/blueridge-hs/registrar-api/pkg/storage"
)

// @title Registrar API
// @version 1.0.0
// @description Eligibility checks, section assignment, and enrollment reporting
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	prereqRepo := repository.NewPrerequisiteRepository(db)
	completionRepo := repository.NewCompletionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	reportRepo := repository.NewReportRepository(db)

	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Assignments.StatsCacheTTL, logr, true)
	}

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "registrar-api",
		Audience:           []string{"registrar-api"},
	})

	eligibilityService := service.NewEligibilityService(prereqRepo, completionRepo, courseRepo, studentRepo, logr)
	statsService := service.NewStatsService(enrollmentRepo, cacheService, cfg.Assignments.StatsCacheTTL, logr)
	assignmentService := service.NewAssignmentService(
		enrollmentRepo,
		sectionRepo,
		studentRepo,
		courseRepo,
		completionRepo,
		prereqRepo,
		db,
		metricsService,
		statsService,
		validate,
		logr,
		service.AssignmentConfig{
			DefaultFraction: cfg.Assignments.DefaultFraction,
			MinCourseLoad:   cfg.Assignments.MinCourseLoad,
			MaxCourseLoad:   cfg.Assignments.MaxCourseLoad,
		},
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reportService *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		artifactStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportService := service.NewExportService(
			enrollmentRepo,
			studentRepo,
			courseRepo,
			eligibilityService,
			artifactStore,
			signer,
			service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL},
			logr,
			nil,
			nil,
		)
		worker := service.NewReportWorker(reportRepo, exportService, cfg.Reports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportService = service.NewReportService(reportRepo, reportQueue, exportService, logr, service.ReportServiceConfig{
			ResultTTL:  cfg.Reports.SignedURLTTL,
			MaxRetries: cfg.Reports.WorkerRetries,
		})

		reportQueue.Start(rootCtx)
		reportService.RecoverPendingJobs(rootCtx)
		reportService.StartCleanup(rootCtx)
	}

	authHandler := handler.NewAuthHandler(authService)
	eligibilityHandler := handler.NewEligibilityHandler(eligibilityService)
	courseHandler := handler.NewCourseHandler(eligibilityService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService, statsService)
	enrollmentHandler := handler.NewEnrollmentHandler(assignmentService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.Use(middleware.WithResponseMeta())

	r.GET("/healthz", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/auth/me", authHandler.Me)

	protected.GET("/students/:id/eligibility/:courseId", eligibilityHandler.Check)
	protected.POST("/students/:id/qualified-courses", eligibilityHandler.QualifiedCourses)
	protected.GET("/students/:id/schedule", enrollmentHandler.StudentSchedule)

	protected.GET("/courses/:id/prerequisite-chain", courseHandler.PrerequisiteChain)
	protected.GET("/courses/:id/requirements/description", courseHandler.RequirementsDescription)

	protected.GET("/enrollments", enrollmentHandler.List)
	protected.GET("/assignments/stats", assignmentHandler.Stats)
	protected.GET("/metrics/summary", metricsHandler.Snapshot)

	admin := protected.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/assignments/batch",
		middleware.Audit(userRepo, models.AuditActionBatchRun, "assignments"),
		assignmentHandler.RunBatch)

	staff := protected.Group("")
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar))
	staff.POST("/enrollments",
		middleware.Audit(userRepo, models.AuditActionEnrollmentCreate, "enrollments"),
		enrollmentHandler.Create)
	staff.DELETE("/enrollments/:id",
		middleware.Audit(userRepo, models.AuditActionEnrollmentDrop, "enrollments"),
		enrollmentHandler.Drop)

	if reportService != nil {
		reportHandler := handler.NewReportHandler(reportService, logr)
		staff.POST("/reports/assignments",
			middleware.Audit(userRepo, models.AuditActionReportRequest, "reports"),
			reportHandler.GenerateReport)
		protected.GET("/reports/:id", reportHandler.ReportStatus)
		protected.GET("/reports/:id/download", reportHandler.DownloadByID)
		api.GET("/export/:token", reportHandler.DownloadReport)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
}
