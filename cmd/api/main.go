package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	_ "github.com/noah-isme/university-admin-api/api/swagger"
	"github.com/noah-isme/university-admin-api/internal/handler"
	"github.com/noah-isme/university-admin-api/internal/migrations"
	"github.com/noah-isme/university-admin-api/internal/repository"
	"github.com/noah-isme/university-admin-api/internal/router"
	"github.com/noah-isme/university-admin-api/internal/service"
	"github.com/noah-isme/university-admin-api/pkg/cache"
	"github.com/noah-isme/university-admin-api/pkg/config"
	"github.com/noah-isme/university-admin-api/pkg/database"
	"github.com/noah-isme/university-admin-api/pkg/logger"
)

// @title University Admin API
// @version 1.0.0
// @description Role-based administration portal for departments, courses, teachers and students
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrations.NewMigrator(db, logr).Run(migrateCtx); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	var cacheRepo service.CacheRepository
	if cfg.Catalog.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, catalog caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && cacheRepo != nil)

	authSvc := service.NewAuthService(userRepo, studentRepo, teacherRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	departmentSvc := service.NewDepartmentService(departmentRepo, cacheSvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, departmentRepo, teacherRepo, enrollmentRepo, cacheSvc, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, userRepo, departmentRepo, cacheSvc, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, enrollmentRepo, courseRepo, departmentRepo, validate, logr)
	exportSvc := service.NewExportService(nil, nil, logr)
	userSvc := service.NewUserService(userRepo, logr)

	engine := router.New(router.Dependencies{
		Config:      cfg,
		Logger:      logr,
		Auth:        authSvc,
		Metrics:     metricsSvc,
		AuthHandler: handler.NewAuthHandler(authSvc),
		Departments: handler.NewDepartmentHandler(departmentSvc, courseSvc),
		Courses:     handler.NewCourseHandler(courseSvc),
		Teachers:    handler.NewTeacherHandler(teacherSvc, courseSvc, exportSvc),
		Students:    handler.NewStudentHandler(studentSvc),
		Users:       handler.NewUserHandler(userSvc),
		Observe:     handler.NewMetricsHandler(metricsSvc),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := engine.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
