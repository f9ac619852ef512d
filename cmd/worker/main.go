package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richardliu001/docflow-service/internal/config"
	"github.com/richardliu001/docflow-service/internal/logger"
	"github.com/richardliu001/docflow-service/internal/metrics"
	"github.com/richardliu001/docflow-service/internal/outbox"
	"github.com/richardliu001/docflow-service/internal/queue"
	"github.com/richardliu001/docflow-service/internal/repo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
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

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer kw.Close()

	events := outbox.NewService(repo.NewRepository(gdb, log), cfg.Outbox.MaxAttempts, log)

	forwarder := outbox.NewKafkaForwarder(kw)
	handlers := outbox.NewHandlerRegistry(log)
	for _, key := range outbox.PostedEventKeys {
		handlers.Register(key, forwarder)
	}
	worker := outbox.NewWorker(events, handlers, log)

	opts := queue.Options{Attempts: cfg.Outbox.JobAttempts, Backoff: cfg.Outbox.JobBackoff, Lease: cfg.Outbox.JobLease}
	var q queue.Queue
	switch cfg.Outbox.QueueDriver {
	case "memory":
		q = queue.NewMemoryQueue(opts)
		poller := outbox.NewPoller(events, q, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, log)
		go poller.Run(ctx)
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		q = queue.NewRedisQueue(rdb, queue.DocEngine, opts)
	}

	if cfg.Server.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				log.Errorf("metrics listen: %v", err)
			}
		}()
	}

	log.Infow("docflow-worker started", "driver", cfg.Outbox.QueueDriver, "workers", cfg.Outbox.Workers)
	if err := outbox.NewPool(q, worker, cfg.Outbox.Workers, log).WithSweep(cfg.Outbox.SweepInterval).Run(ctx); err != nil {
		log.Errorf("worker pool: %v", err)
	}
	log.Info("docflow-worker stopped")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "internal/config/config.yaml"
}
