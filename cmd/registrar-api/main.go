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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/SatvikPraveen/SmartCampus-sub000/api/swagger"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/handler"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/middleware"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/repository"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/service"
	"github.com/SatvikPraveen/SmartCampus-sub000/pkg/config"
	"github.com/SatvikPraveen/SmartCampus-sub000/pkg/jobs"
	"github.com/SatvikPraveen/SmartCampus-sub000/pkg/logger"
	corsmiddleware "github.com/SatvikPraveen/SmartCampus-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/SatvikPraveen/SmartCampus-sub000/pkg/middleware/requestid"
	"github.com/SatvikPraveen/SmartCampus-sub000/pkg/storage"
)

// @title SmartCampus Registrar API
// @version 0.1.0
// @description Enrollment and waitlist management for university course offerings
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	courseRepo := repository.NewCourseRepository()
	studentRepo := repository.NewStudentRepository()
	termRepo := repository.NewTermRepository()
	store := repository.NewEnrollmentStore(repository.EnrollmentStoreConfig{
		DefaultCapacity:    cfg.Enrollment.DefaultCapacity,
		DefaultMaxWaitlist: cfg.Enrollment.DefaultMaxWaitlist,
		StudentLoadCap:     cfg.Enrollment.StudentLoadCap,
	})

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logr.Sugar().Warnw("redis unreachable, statistics cache disabled", "error", err)
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)
	notifier := service.NewLogNotifier(logr)

	enrollmentSvc := service.NewEnrollmentService(store, courseRepo, studentRepo, termRepo, notifier, metricsSvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	termSvc := service.NewTermService(termRepo, validate, logr)

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exporter := service.NewExportService(store, courseRepo, files, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr)
		jobRepo := repository.NewReportJobRepository()
		reportSvc = service.NewReportService(jobRepo, exporter, enrollmentSvc, courseRepo, cacheSvc, validate, logr, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
		})
		reportSvc.StartWorkers(ctx)
		defer reportSvc.StopWorkers()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	termHandler := handler.NewTermHandler(termSvc)

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/students", studentHandler.List)
		api.POST("/students", studentHandler.Create)
		api.GET("/students/:id", studentHandler.Get)
		api.PUT("/students/:id", studentHandler.Update)
		api.GET("/students/:id/enrollments", enrollmentHandler.StudentEnrollments)

		api.GET("/courses", courseHandler.List)
		api.POST("/courses", courseHandler.Create)
		api.GET("/courses/:id", courseHandler.Get)
		api.PUT("/courses/:id", courseHandler.Update)
		api.GET("/courses/:id/enrollments", enrollmentHandler.CourseEnrollments)
		api.GET("/courses/:id/seats", enrollmentHandler.Seats)
		api.POST("/courses/:id/waitlist/process", enrollmentHandler.ProcessWaitlist)

		api.GET("/terms", termHandler.List)
		api.POST("/terms", termHandler.Create)
		api.GET("/terms/:id", termHandler.Get)

		api.GET("/enrollments", enrollmentHandler.List)
		api.POST("/enrollments", enrollmentHandler.Enroll)
		api.POST("/enrollments/bulk", enrollmentHandler.BulkEnroll)
		api.POST("/enrollments/waitlist", enrollmentHandler.AddToWaitlist)
		api.POST("/enrollments/waitlist/remove", enrollmentHandler.RemoveFromWaitlist)
		api.POST("/enrollments/drop", enrollmentHandler.Drop)
		api.POST("/enrollments/withdraw", enrollmentHandler.Withdraw)
		api.POST("/enrollments/transfer", enrollmentHandler.Transfer)
		api.POST("/enrollments/complete", enrollmentHandler.Complete)

		if reportSvc != nil {
			reportHandler := handler.NewReportHandler(reportSvc)
			api.POST("/reports", reportHandler.Submit)
			api.GET("/reports/:id", reportHandler.Status)
			api.GET("/reports/download/:token", reportHandler.Download)
			api.GET("/statistics", reportHandler.Statistics)
		} else {
			api.GET("/statistics", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"data": enrollmentSvc.Statistics(c.Request.Context())})
			})
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
