package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/handler"
	"github.com/folio-cms/folio/internal/middleware"
	"github.com/folio-cms/folio/internal/pkg/logger"
	"github.com/folio-cms/folio/internal/repository"
	"github.com/folio-cms/folio/internal/service"
	"github.com/folio-cms/folio/internal/service/translator"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 0. Initialize Logger
	logger.Init("info")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Initialize Persistence
	db, err := repository.NewDB(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	logger.Info("✅ Database ready")

	visitRepo := repository.NewVisitRepo(db)
	contentRepo := repository.NewContentRepo(db)

	// Translation Cache (Redis > Memory)
	cacheTTL := time.Duration(cfg.Redis.CacheTTLSeconds) * time.Second
	var cache translator.Cache
	var redisClient *repository.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient, err = repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			cache = repository.NewRedisTranslationCache(redisClient.Client, cacheTTL)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if cache == nil {
		cache = translator.NewMemoryCache(cacheTTL, 10000)
	}

	// 3. Initialize Core Services
	client, err := translator.NewFromConfig(cfg.Translation, cache)
	if err != nil {
		log.Fatalf("Failed to initialize translation provider: %v", err)
	}
	orchestrator := service.NewOrchestrator(contentRepo, client, cfg.Translation)
	contentSvc := service.NewContentService(contentRepo, orchestrator, cfg.Translation)

	var queue *service.Queue
	if orchestrator.Enabled() && cfg.Translation.Async {
		queue = service.NewQueue(orchestrator, cfg.Translation.Workers, cfg.Translation.QueueSize)
		contentSvc.UseQueue(queue)
	}
	if orchestrator.Enabled() {
		logger.Info("🌐 Automatic translation enabled",
			"provider", client.ProviderName(), "targets", cfg.Translation.TargetLanguages(), "async", queue != nil)
	}

	visitSvc := service.NewVisitService(visitRepo, cfg.Visits)
	var recorder middleware.VisitRecorder = visitSvc
	var visitWriter *service.VisitWriter
	if cfg.Visits.WriteBuffer > 0 {
		visitWriter = service.NewVisitWriter(visitSvc, cfg.Visits.WriteBuffer)
		recorder = visitWriter
	}
	sweeper := service.NewRetentionSweeper(visitRepo, cfg.Visits)

	var scheduler *service.Scheduler
	if cfg.Visits.CleanupIntervalMinutes > 0 {
		scheduler = service.NewScheduler(sweeper, time.Duration(cfg.Visits.CleanupIntervalMinutes)*time.Minute)
		scheduler.Start()
	}

	// 4. Initialize Handlers
	contentHandler := handler.NewContentHandler(contentSvc)
	visitHandler := handler.NewVisitHandler(visitSvc, sweeper)
	publicHandler := handler.NewPublicHandler(contentSvc, cfg.Translation)

	// 5. Setup Router
	r := gin.Default()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Fatalf("Invalid trusted proxies: %v", err)
	}

	// Global Middleware
	r.Use(middleware.RequestIDMiddleware())
	// outside ErrorHandler so the recorded status is the one the client got
	r.Use(middleware.VisitMiddleware(recorder, middleware.NewVisitPolicy(cfg.Visits)))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "folio"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// Admin API
	admin := r.Group("/admin/api")
	admin.Use(middleware.RateLimitMiddleware(middleware.NewIPLimiter(cfg.Auth.AdminRateLimit)))
	admin.Use(middleware.AdminMiddleware(cfg))
	{
		admin.POST("/content", contentHandler.Create)
		admin.PUT("/content/:id", contentHandler.Update)
		admin.DELETE("/content/:id", contentHandler.Delete)
		admin.GET("/content/:id/translations", contentHandler.Translations)
		admin.PUT("/content/:id/translations/:lang/:field", contentHandler.SetTranslation)
		admin.DELETE("/content/:id/translations/:lang/:field", contentHandler.ClearTranslation)
		admin.POST("/content/:id/retranslate", contentHandler.Retranslate)
		admin.GET("/translation/status", contentHandler.Status)

		admin.GET("/visits", visitHandler.List)
		admin.GET("/visits/stats", visitHandler.Stats)
		admin.POST("/visits/sweep", middleware.AdminSecretMiddleware(cfg), visitHandler.Sweep)
		admin.POST("/visits/purge-invalid", middleware.AdminSecretMiddleware(cfg), visitHandler.PurgeInvalid)
	}

	// Public Site
	r.GET("/", publicHandler.Home)
	r.GET("/profile", publicHandler.Profile)
	r.GET("/projects", publicHandler.Projects)
	r.GET("/projects/:id", publicHandler.Project)
	r.GET("/blog", publicHandler.Blog)
	r.GET("/blog/:id", publicHandler.BlogPost)
	r.GET("/resume", publicHandler.Resume)

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 Folio started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	if queue != nil {
		queue.Close(ctx)
	}
	if visitWriter != nil {
		visitWriter.Close(ctx)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("Server exiting")
}
