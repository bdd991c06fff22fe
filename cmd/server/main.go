// Package main runs the course video platform HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danribes/mystic-ecom-sub009/config"
	"github.com/danribes/mystic-ecom-sub009/internal/auth"
	"github.com/danribes/mystic-ecom-sub009/internal/courses"
	"github.com/danribes/mystic-ecom-sub009/internal/middleware"
	"github.com/danribes/mystic-ecom-sub009/internal/notifications"
	"github.com/danribes/mystic-ecom-sub009/internal/stream"
	"github.com/danribes/mystic-ecom-sub009/internal/videos"
	"github.com/danribes/mystic-ecom-sub009/pkg/cache"
	"github.com/danribes/mystic-ecom-sub009/pkg/database"
	"github.com/danribes/mystic-ecom-sub009/pkg/queue"
	"github.com/danribes/mystic-ecom-sub009/pkg/redis"
	"github.com/danribes/mystic-ecom-sub009/pkg/response"
	"github.com/danribes/mystic-ecom-sub009/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.ArchiveBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ArchiveBucket:        cfg.AWS.ArchiveBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	videoCache := cache.New(rdb.Client, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	provider := stream.NewClient(cfg.Provider, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Courses
	courseRepo := courses.NewRepository(pool)
	courseHandler := courses.NewHandler(courseRepo, logger)

	// Videos (intake + webhook-driven reconciliation)
	videoRepo := videos.NewRepository(pool)
	videoHandler := videos.NewHandler(videoRepo, courseRepo, provider, videoCache, cfg.Provider, logger)
	if s3Client != nil {
		videoHandler.SetArchiveStorage(s3Client)
	}
	videoWebhook := videos.NewWebhookHandler(videoRepo, jobQueue, cfg.Provider.WebhookSecret, logger)

	// Notification log
	notifyRepo := notifications.NewRepository(pool)
	notifyHandler := notifications.NewHandler(notifyRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Webhooks (no JWT; signature validated in handler when configured)
	router.POST("/api/webhooks/video-provider", videoWebhook.HandleNotification)

	// Protected API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/courses", courseHandler.List)
		api.GET("/courses/:id", courseHandler.GetByID)
		api.GET("/courses/:id/lessons", courseHandler.ListLessons)
		api.GET("/courses/:id/videos", videoHandler.ListByCourse)

		api.POST("/videos/upload", middleware.RequireRole("admin", "instructor"), videoHandler.Upload)
		api.GET("/videos/:id", videoHandler.GetByID)
		api.GET("/videos/:id/archive-url", middleware.RequireRole("admin", "instructor"), videoHandler.ArchiveDownloadURL)
		api.GET("/videos/:id/notifications", middleware.RequireRole("admin", "instructor"), notifyHandler.ListByVideo)
		api.DELETE("/videos/:id", middleware.RequireRole("admin"), videoHandler.Delete)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
