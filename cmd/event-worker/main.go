// Package main 事件分析执行器入口（event-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cam-sentinel-ai/internal/application/analysis"
	"cam-sentinel-ai/internal/application/budget"
	"cam-sentinel-ai/internal/application/match"
	"cam-sentinel-ai/internal/application/media"
	"cam-sentinel-ai/internal/application/pipeline"
	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/infrastructure/embedding"
	"cam-sentinel-ai/internal/infrastructure/messaging"
	"cam-sentinel-ai/internal/infrastructure/nvr"
	"cam-sentinel-ai/internal/infrastructure/persistence/milvus"
	"cam-sentinel-ai/internal/infrastructure/persistence/postgres"
	"cam-sentinel-ai/internal/infrastructure/persistence/redis"
	"cam-sentinel-ai/internal/infrastructure/provider"
	"cam-sentinel-ai/pkg/logger"
	"cam-sentinel-ai/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	// 带文件监听的配置仓库，预算上限等调优参数支持热更新
	cfgStore, err := config.NewStore()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := cfgStore.Get()

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "event-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	// 数据层
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

	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Fatal(ctx, "failed to init milvus", err)
	}
	defer func() { _ = milvusClient.Close() }()

	vectorRepo := milvus.NewRepository(milvusClient)
	if err := vectorRepo.EnsureCollection(ctx); err != nil {
		logger.Fatal(ctx, "failed to ensure vector collection", err)
	}

	eventRepo := postgres.NewEventRepository(pgClient)
	usageRepo := postgres.NewUsageRecordRepository(pgClient)
	entityRepo := postgres.NewRecognizedEntityRepository(pgClient)
	// 摄像头配置加缓存，检测流每条消息都会读一次
	cameraCache := redis.NewCache(redisClient)
	cameraRepo := redis.NewCachedCameraRepository(postgres.NewCameraRepository(pgClient), cameraCache)

	// 媒体层
	nvrClient := nvr.NewClient(&cfg.NVR)
	fetcher := media.NewFetcher(nvrClient, &cfg.NVR)
	qualityFilter := media.NewQualityFilter(&cfg.Media)
	processor := media.NewProcessor(&cfg.Media)

	// 分析层
	providerFactory := provider.NewFactory(&cfg.Providers)
	accountant := budget.NewAccountant(usageRepo, &cfg.Budget)
	guard := budget.NewGuard(usageRepo, &cfg.Budget)
	orchestrator := analysis.NewOrchestrator(
		fetcher,
		qualityFilter,
		processor,
		providerFactory,
		guard,
		accountant,
		&cfg.Media,
		&cfg.Analysis,
	)

	// 实体匹配层
	embedClient := embedding.NewClient(&cfg.Embedding)
	matcher := match.NewMatcher(entityRepo, embedClient, match.NewMilvusIndex(vectorRepo), &cfg.Matching)

	// 调优参数热更新：阈值、费率、预算上限改动无需重启在途处理
	cfgStore.Subscribe(func(next *config.Config) {
		qualityFilter.UpdateThresholds(next.Media.BlurThreshold, next.Media.FlatnessThreshold)
		accountant.UpdateRates(next.Budget.Rates)
		guard.UpdateCaps(next.Budget.DailyCapUSD, next.Budget.MonthlyCapUSD)
		matcher.UpdateThreshold(next.Matching.SimilarityThreshold)
		logger.Info(ctx, "tuning parameters reloaded")
	})

	// 流水线
	producer := messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
	eventPipeline := pipeline.NewEventPipeline(cameraRepo, eventRepo, orchestrator, matcher, producer, &cfg.Messaging)

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamEventsDetected,
		Group:         messaging.ConsumerGroupEventWorker,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})
	consumer.RegisterHandler(messaging.MsgTypeDetection, eventPipeline.HandleDetection)

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go consumer.MonitorDLQ(ctx, 100)

	log := logger.FromContext(ctx)
	log.Info("event-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("event-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
