// Package main runs the video upload HTTP server with graceful shutdown.
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

	"github.com/vidvault/backend/config"
	"github.com/vidvault/backend/internal/middleware"
	"github.com/vidvault/backend/internal/videos"
	"github.com/vidvault/backend/internal/worker"
	"github.com/vidvault/backend/pkg/database"
	"github.com/vidvault/backend/pkg/queue"
	"github.com/vidvault/backend/pkg/redis"
	"github.com/vidvault/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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

	jobQueue := queue.NewQueue(rdb.Client, logger)

	videoRepo := videos.NewRepository(pool)
	videoService := videos.NewService(s3Client, videoRepo, jobQueue, cfg.Upload.MaxUploadBytes, logger)
	videoHandler := videos.NewHandler(videoService, logger)

	grace := time.Duration(cfg.Reconcile.GraceMinutes) * time.Minute
	reconciler := worker.NewReconciler(videoRepo, s3Client, jobQueue, grace, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	router.POST("/videos", videoHandler.Upload)
	router.GET("/videos", videoHandler.List)
	router.GET("/videos/:id", videoHandler.GetByID)
	router.GET("/videos/:id/content", videoHandler.Download)
	router.GET("/search", videoHandler.Search)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background reconciler: drains orphan cleanup jobs and sweeps the bucket.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go reconciler.Run(workerCtx)
	go reconciler.RunSweep(workerCtx, cfg.AWS.VideosBucket, time.Duration(cfg.Reconcile.SweepIntervalMinutes)*time.Minute)
	logger.Info("reconciler started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
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
