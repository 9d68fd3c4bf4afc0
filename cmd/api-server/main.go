package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/careops/smart-scheduling/internal/api"
	"github.com/careops/smart-scheduling/internal/config"
	"github.com/careops/smart-scheduling/internal/db"
	"github.com/careops/smart-scheduling/internal/logger"
	"github.com/careops/smart-scheduling/internal/queue"
	redisclient "github.com/careops/smart-scheduling/internal/redis"
	"github.com/careops/smart-scheduling/internal/scheduling"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logg := logger.New(cfg.LogLevel)
	logg.Infof("api-server starting up env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logg.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	logg.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logg.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logg.Warnf("error closing redis: %v", err)
		}
	}()
	logg.Info("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewSlotLocker(rdb, cfg.LockTTL)
	notifier := scheduling.NewLogNotifier(logg)
	scheduler := scheduling.NewService(repo, locker, notifier, nil, cfg, logg)

	queueManager := queue.NewManager(queue.NewMemoryStore(), cfg, logg)

	sweeper := queue.NewSweeper(queueManager, cfg.SweepInterval, logg)
	if err := sweeper.Start(); err != nil {
		logg.Fatalf("sweeper start error: %v", err)
	}
	defer sweeper.Stop()

	router := api.NewRouter(api.RouterConfig{
		Scheduler: scheduler,
		Queue:     queueManager,
		PgPool:    pgPool,
		Redis:     rdb,
		Log:       logg,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Infof("listening on :%s", cfg.HTTPPort)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatalf("server error: %v", err)
		}
	case <-rootCtx.Done():
		logg.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Warnf("graceful shutdown failed: %v", err)
	}

	logg.Info("api-server stopped")
}
