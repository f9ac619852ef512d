package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/docflow-service/internal/config"
	"github.com/richardliu001/docflow-service/internal/doctype"
	"github.com/richardliu001/docflow-service/internal/logger"
	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/richardliu001/docflow-service/internal/outbox"
	"github.com/richardliu001/docflow-service/internal/posting"
	"github.com/richardliu001/docflow-service/internal/repo"
	"github.com/richardliu001/docflow-service/internal/service"
	httptransport "github.com/richardliu001/docflow-service/internal/transport/http"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load(configPath())
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLoggerAt(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(model.All()...); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. repo & services
	repository := repo.NewRepository(gdb, log)
	types := doctype.Default()
	numbers := service.NewNumberService(repository, types, log)
	events := outbox.NewService(repository, cfg.Outbox.MaxAttempts, log)
	postings := posting.NewRegistry(map[string]posting.Handler{
		doctype.DefaultPostingHandler: posting.NewDefaultHandler(repository, nil, log),
	})
	docs := service.NewDocumentService(repository, types, numbers, events, postings, log)

	// 5. gin router
	router := httptransport.NewRouter(docs, numbers, cfg.RateLimit, log)

	// 6. serve until signalled
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: router}
	go func() {
		log.Infof("docflow-server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	log.Info("docflow-server stopped")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "internal/config/config.yaml"
}
