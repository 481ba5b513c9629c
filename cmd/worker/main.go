// Package main runs the standalone orphaned-object reconciler worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vidvault/backend/config"
	"github.com/vidvault/backend/internal/videos"
	"github.com/vidvault/backend/internal/worker"
	"github.com/vidvault/backend/pkg/database"
	"github.com/vidvault/backend/pkg/queue"
	"github.com/vidvault/backend/pkg/redis"
	"github.com/vidvault/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		VideosBucket:    cfg.AWS.VideosBucket,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	videoRepo := videos.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	grace := time.Duration(cfg.Reconcile.GraceMinutes) * time.Minute
	reconciler := worker.NewReconciler(videoRepo, s3Client, jobQueue, grace, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go reconciler.Run(workerCtx)
	go reconciler.RunSweep(workerCtx, cfg.AWS.VideosBucket, time.Duration(cfg.Reconcile.SweepIntervalMinutes)*time.Minute)
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
