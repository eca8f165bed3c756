package main

import (
	"ChatApp/internal/api/config"
	"ChatApp/internal/pkg/cron"
	"ChatApp/internal/pkg/database"
	"ChatApp/internal/pkg/kafka"
	"ChatApp/internal/pkg/logger"
	"ChatApp/internal/pkg/minio"
	"ChatApp/internal/pkg/mongo"
	"ChatApp/internal/pkg/redis"
	"ChatApp/internal/wire"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func main() {
	// 加载配置
	if err := config.LoadConfig(); err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		panic(err)
	}
	cfg := config.Cfg

	// 初始化日志
	logger.InitLogger(cfg.Log.Level)

	// 数据库连接
	dbCfg := cfg.DB
	db, err := database.NewGormDB(&dbCfg)
	if err != nil {
		log.Error("Fatal error: failed to create database connection", "err", err)
		panic(err)
	}

	// Redis 连接
	if err = redis.InitRedis(cfg.Redis); err != nil {
		log.Error("Fatal error: failed to create redis connection", "err", err)
		panic(err)
	}

	// Mongo 连接
	mongoDB, err := mongo.InitMongo(cfg.Mongo)
	if err != nil {
		log.Error("Fatal error: failed to create mongo connection", "err", err)
		panic(err)
	}
	messageRepo := mongo.NewMessageRepo(mongoDB)
	indexCtx, indexCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = messageRepo.EnsureIndexes(indexCtx)
	indexCancel()
	if err != nil {
		log.Error("Fatal error: failed to create mongo indexes", "err", err)
		panic(err)
	}

	// MinIO 连接
	minioClient, err := minio.NewClient(cfg.MinIO)
	if err != nil {
		log.Error("Fatal error: failed to initialize MinIO", "err", err)
		panic(err)
	}

	// Kafka 生产者
	publisher, err := kafka.NewEventPublisher(cfg.Kafka)
	if err != nil {
		log.Error("Fatal error: failed to create kafka publisher", "err", err)
		panic(err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("Kafka publisher close failed", "err", err)
		}
	}()

	// 依赖注入
	app := wire.BuildApplication(&wire.Infrastructure{
		DB:          db,
		Messages:    messageRepo,
		Revocations: redis.NewTokenStore(redis.Rdb),
		Storage:     minio.NewObjectStorage(minioClient, cfg.MinIO.Bucket, cfg.MinIO.PublicBaseURL),
		Publisher:   publisher,
	}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// 在线状态
	g.Go(func() error {
		return app.Presence.Run(ctx)
	})

	// 启动时修正上次异常退出遗留的在线标记
	g.Go(func() error {
		reconcileCtx, reconcileCancel := context.WithTimeout(ctx, 30*time.Second)
		defer reconcileCancel()
		flipped, err := app.Presence.Reconcile(reconcileCtx)
		if err != nil {
			log.Error("Initial presence reconcile failed", "err", err)
			return nil
		}
		log.Info("Initial presence reconcile finished", "flipped", flipped)
		return nil
	})

	// 定时任务
	if err = cron.InitCron(app.CronMgr); err != nil {
		log.Error("Fatal error: failed to start cron jobs", "err", err)
		panic(err)
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Cron Jobs stopping...")
		app.CronMgr.Stop()
		return nil
	})

	// HTTP 服务器
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info("HTTP Server starting...", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 优雅退出
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-ctx.Done():
		case sig := <-quit:
			log.Info("Received signal, shutting down...", "signal", sig)
			cancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP Server shutdown failed", "err", err)
		}
		return nil
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("App exited with error", "err", err)
	}
	log.Info("App exited successfully.")
}
