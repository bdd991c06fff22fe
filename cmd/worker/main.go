// Package main runs the background worker: video side-effect jobs
// (cache purge, notifications, S3 archive) and the stale-upload sweep.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danribes/mystic-ecom-sub009/config"
	"github.com/danribes/mystic-ecom-sub009/internal/notifications"
	"github.com/danribes/mystic-ecom-sub009/internal/stream"
	"github.com/danribes/mystic-ecom-sub009/internal/videos"
	"github.com/danribes/mystic-ecom-sub009/internal/worker"
	"github.com/danribes/mystic-ecom-sub009/pkg/cache"
	"github.com/danribes/mystic-ecom-sub009/pkg/database"
	"github.com/danribes/mystic-ecom-sub009/pkg/queue"
	"github.com/danribes/mystic-ecom-sub009/pkg/redis"
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

	videoRepo := videos.NewRepository(pool)
	notifyRepo := notifications.NewRepository(pool)
	videoCache := cache.New(rdb.Client, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	provider := stream.NewClient(cfg.Provider, logger)

	processor := worker.NewProcessor(videoRepo, notifyRepo, s3Client, videoCache, provider, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	go processor.RunSweep(workerCtx,
		time.Duration(cfg.Worker.SweepIntervalMinutes)*time.Minute,
		time.Duration(cfg.Provider.UploadTTLMinutes)*time.Minute)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
