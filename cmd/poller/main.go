package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richardliu001/docflow-service/internal/config"
	"github.com/richardliu001/docflow-service/internal/logger"
	"github.com/richardliu001/docflow-service/internal/metrics"
	"github.com/richardliu001/docflow-service/internal/outbox"
	"github.com/richardliu001/docflow-service/internal/queue"
	"github.com/richardliu001/docflow-service/internal/repo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/go-redis/redis/v8"
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLoggerAt(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()
	metrics.Init()
	if cfg.Outbox.QueueDriver == "memory" {
		log.Fatal("memory queue driver runs the poller inside docflow-worker")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	opts := queue.Options{Attempts: cfg.Outbox.JobAttempts, Backoff: cfg.Outbox.JobBackoff, Lease: cfg.Outbox.JobLease}
	q := queue.NewRedisQueue(rdb, queue.DocEngine, opts)

	events := outbox.NewService(repo.NewRepository(gdb, log), cfg.Outbox.MaxAttempts, log)
	poller := outbox.NewPoller(events, q, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, log)

	poller.Run(ctx)
	log.Info("docflow-poller stopped")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "internal/config/config.yaml"
}
