// Package main API Gateway 服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/infrastructure/persistence/milvus"
	"cam-sentinel-ai/internal/infrastructure/persistence/postgres"
	"cam-sentinel-ai/internal/infrastructure/persistence/redis"
	"cam-sentinel-ai/internal/interfaces/http/handler"
	"cam-sentinel-ai/internal/interfaces/http/router"
	"cam-sentinel-ai/pkg/logger"
	"cam-sentinel-ai/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting api-gateway",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	// Milvus 仅用于就绪探针；连接失败时网关仍可对外服务
	var milvusClient *milvus.Client
	if mc, err := milvus.NewClient(ctx, &cfg.Vector.Milvus); err != nil {
		log.Warn("milvus unavailable, readiness will report degraded", "error", err)
	} else {
		milvusClient = mc
		defer func() { _ = milvusClient.Close() }()
	}

	handlers := router.Handlers{
		Health: handler.NewHealthHandler(pgClient, redisClient, milvusClient),
		Event:  handler.NewEventHandler(postgres.NewEventRepository(pgClient)),
		Entity: handler.NewEntityHandler(postgres.NewRecognizedEntityRepository(pgClient)),
		// 网关侧走同一个缓存装饰器，Save 后使工作进程的配置缓存失效
		Camera: handler.NewCameraHandler(redis.NewCachedCameraRepository(
			postgres.NewCameraRepository(pgClient), redis.NewCache(redisClient))),
		Usage:  handler.NewUsageHandler(postgres.NewUsageRecordRepository(pgClient)),
	}

	r := router.New(cfg, handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
