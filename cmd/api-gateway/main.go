package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/unimet-iinf/obs-admin-api/api/swagger"
	"github.com/unimet-iinf/obs-admin-api/internal/handler"
	"github.com/unimet-iinf/obs-admin-api/internal/middleware"
	"github.com/unimet-iinf/obs-admin-api/internal/repository"
	"github.com/unimet-iinf/obs-admin-api/internal/service"
	"github.com/unimet-iinf/obs-admin-api/pkg/cache"
	"github.com/unimet-iinf/obs-admin-api/pkg/config"
	"github.com/unimet-iinf/obs-admin-api/pkg/database"
	"github.com/unimet-iinf/obs-admin-api/pkg/logger"
	corsmiddleware "github.com/unimet-iinf/obs-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/unimet-iinf/obs-admin-api/pkg/middleware/requestid"
)

// @title Observaciones IINF API
// @version 1.0.0
// @description API for the enrollment observations administration dashboard
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

	metrics := service.NewMetricsService()

	var cacheService *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, true)
		defer cacheRepo.Close() //nolint:errcheck
	}

	validate := validator.New()

	observationRepo := repository.NewObservationRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	audit := service.NewAuditEmitter(auditRepo, logr)

	authService := service.NewAuthService(profileRepo, audit, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "obs-admin-api",
	})
	profileService := service.NewProfileService(profileRepo, audit, logr, service.ProfileServiceConfig{
		FetchTimeout: cfg.Profiles.FetchTimeout,
		FetchRetries: cfg.Profiles.FetchRetries,
	})
	observationService := service.NewObservationService(observationRepo, auditRepo, logr)
	reviewService := service.NewReviewService(observationRepo, audit, logr)
	studentService := service.NewStudentService(observationRepo, logr)
	dashboardService := service.NewDashboardService(observationRepo, cacheService, metrics, logr, service.DashboardServiceConfig{
		CacheTTL:    cfg.Dashboard.CacheTTL,
		DailyWindow: cfg.Dashboard.DailyWindow,
	})

	authHandler := handler.NewAuthHandler(authService, profileService)
	observationHandler := handler.NewObservationHandler(observationService, reviewService, dashboardService)
	studentHandler := handler.NewStudentHandler(studentService, reviewService, dashboardService)
	profileHandler := handler.NewProfileHandler(profileService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	observations := api.Group("/observations", middleware.JWT(authService), middleware.RequireDashboard())
	{
		observations.GET("", observationHandler.List)
		observations.GET("/:id", observationHandler.Get)
		observations.GET("/:id/audit", observationHandler.AuditTrail)
		observations.POST("/:id/claim", middleware.RequireEdit(), observationHandler.Claim)
		observations.POST("/:id/release", middleware.RequireEdit(), observationHandler.Release)
		observations.PUT("/:id", middleware.RequireEdit(), observationHandler.Save)
	}

	students := api.Group("/students", middleware.JWT(authService), middleware.RequireDashboard())
	{
		students.GET("", studentHandler.List)
		students.GET("/:studentId", studentHandler.Get)
		students.POST("/:studentId/claim", middleware.RequireEdit(), studentHandler.Claim)
		students.POST("/:studentId/release", middleware.RequireEdit(), studentHandler.Release)
		students.PUT("/:studentId/observations", middleware.RequireEdit(), studentHandler.Save)
	}

	api.GET("/dashboard", middleware.JWT(authService), middleware.RequireDashboard(), dashboardHandler.Overview)

	users := api.Group("/users", middleware.JWT(authService), middleware.RequireAdmin())
	{
		users.GET("", profileHandler.List)
		users.PUT("/:id/role", profileHandler.AssignRole)
	}

	api.GET("/system/metrics", middleware.JWT(authService), middleware.RequireAdmin(), metricsHandler.System)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
