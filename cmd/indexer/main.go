package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/corvid-systems/ftsengine/internal/analytics"
	"github.com/corvid-systems/ftsengine/internal/indexer/adminrpc"
	"github.com/corvid-systems/ftsengine/internal/indexer/cache"
	"github.com/corvid-systems/ftsengine/internal/indexer/consumer"
	"github.com/corvid-systems/ftsengine/internal/indexer/shard"
	"github.com/corvid-systems/ftsengine/pkg/config"
	"github.com/corvid-systems/ftsengine/pkg/grpc"
	"github.com/corvid-systems/ftsengine/pkg/kafka"
	"github.com/corvid-systems/ftsengine/pkg/logger"
	"github.com/corvid-systems/ftsengine/pkg/metrics"
	"github.com/corvid-systems/ftsengine/pkg/postgres"
	pkgredis "github.com/corvid-systems/ftsengine/pkg/redis"
)

const numShards = 8

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service", "num_shards", numShards)
	router, err := shard.NewRouter(cfg.Indexer, numShards)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	defer router.Close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
		router.AttachMetrics(m)
	}

	if redisClient, err := pkgredis.NewClient(cfg.Redis); err != nil {
		slog.Warn("redis unavailable, term lookups will not be cached", "error", err)
	} else {
		defer redisClient.Close()
		termCache := cache.New(redisClient, cfg.Redis)
		if m != nil {
			termCache.SetMetrics(m)
		}
		router.AttachCache(termCache)
		slog.Info("term lookup cache attached", "addr", cfg.Redis.Addr)
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	analyticsCollector := analytics.NewCollector(analyticsProducer, 0)
	analyticsCollector.Start(ctx)
	defer analyticsCollector.Close()
	router.AttachAnalytics(analyticsCollector)

	for shardID, engine := range router.GetAllEngines() {
		engine.StartFlushLoop(ctx)
		engine.StartMergeLoop(ctx)
		slog.Info("flush and merge loops started", "shard_id", shardID)
	}
	var pgDB *sql.DB
	if pgClient, err := postgres.New(cfg.Postgres); err != nil {
		slog.Warn("postgres unavailable, document status will not be updated", "error", err)
	} else {
		defer pgClient.Close()
		pgDB = pgClient.DB
	}

	handler := consumer.HandleMessageSharded(router, pgDB)
	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentIngest,
		handler,
	)

	indexConsumer := consumer.New(kafkaConsumer)

	rpcServer := grpc.NewServer()
	adminrpc.Register(rpcServer, router)
	rpcAddr := fmt.Sprintf(":%d", cfg.Indexer.AdminRPCPort)
	go func() {
		if err := rpcServer.Serve(rpcAddr); err != nil {
			slog.Error("admin rpc server error", "error", err)
		}
	}()
	defer rpcServer.Stop()
	slog.Info("admin rpc listening", "addr", rpcAddr)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("flushing all shards before shutdown")
	if err := router.FlushAll(); err != nil {
		slog.Error("final flush failed", "error", err)
	}

	slog.Info("indexer service stopped")
}
