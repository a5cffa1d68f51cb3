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

	"github.com/go-playground/validator/v10"

	_ "github.com/oets-school/oets-api/api/swagger"
	"github.com/oets-school/oets-api/internal/database"
	"github.com/oets-school/oets-api/internal/handler"
	"github.com/oets-school/oets-api/internal/repository"
	"github.com/oets-school/oets-api/internal/router"
	"github.com/oets-school/oets-api/internal/service"
	"github.com/oets-school/oets-api/pkg/cache"
	"github.com/oets-school/oets-api/pkg/config"
	pgdb "github.com/oets-school/oets-api/pkg/database"
	"github.com/oets-school/oets-api/pkg/logger"
	"github.com/oets-school/oets-api/pkg/storage"
)

// @title OETS API
// @version 1.0.0
// @description Course catalog, enrollment and back-office API for the open education and training school
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pgdb.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(ctx, db, logr); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	// Redis is optional: the catalog cache degrades to direct reads without it.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheEnabled := cfg.Catalog.CacheEnabled && redisClient != nil
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cacheEnabled)

	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	newsRepo := repository.NewNewsRepository(db)
	pageRepo := repository.NewPageRepository(db)
	trainingRepo := repository.NewTrainingRequestRepository(db)
	reportRepo := repository.NewReportRepository(db)

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	uploadSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, cacheSvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, userRepo, departmentRepo, cacheSvc, validate, logr)

	notifier := service.NewLogNotifier(logr)
	notificationSvc := service.NewNotificationService(notifier, cfg.Notifications, metrics, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, documentRepo, uploadStore, notificationSvc, validate, logr)
	documentSvc := service.NewDocumentService(documentRepo, enrollmentRepo, courseRepo, uploadStore, uploadSigner, cfg.Uploads, logr)
	newsSvc := service.NewNewsService(newsRepo, validate, logr)
	pageSvc := service.NewPageService(pageRepo, validate, logr)
	trainingSvc := service.NewTrainingRequestService(trainingRepo, validate, logr)

	reportSvc := service.NewReportService(reportRepo, enrollmentRepo, courseRepo, reportStore, reportSigner, cfg.Reports, metrics, validate, logr)
	reportSvc.Start(ctx)
	defer reportSvc.Stop()

	engine := router.New(router.Dependencies{
		Config:  cfg,
		Logger:  logr,
		DB:      db,
		Redis:   redisClient,
		Metrics: metrics,

		UserRepo: userRepo,

		Auth:             handler.NewAuthHandler(authSvc),
		Users:            handler.NewUserHandler(userSvc),
		Departments:      handler.NewDepartmentHandler(departmentSvc),
		Courses:          handler.NewCourseHandler(courseSvc),
		Enrollments:      handler.NewEnrollmentHandler(enrollmentSvc),
		Documents:        handler.NewDocumentHandler(documentSvc),
		News:             handler.NewNewsHandler(newsSvc),
		Pages:            handler.NewPageHandler(pageSvc),
		TrainingRequests: handler.NewTrainingRequestHandler(trainingSvc),
		Reports:          handler.NewReportHandler(reportSvc),

		AuthService: authSvc,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
