// Command operator serves the admin HTTP API: liveness/readiness probes,
// Prometheus scraping, and the dead-letter audit endpoints backed by the
// Postgres-resident copy of every envelope that reached a .dlq topic.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zedaapi/eventspine/internal/bus"
	"github.com/zedaapi/eventspine/internal/config"
	"github.com/zedaapi/eventspine/internal/database"
	"github.com/zedaapi/eventspine/internal/dlqstore"
	ourhttp "github.com/zedaapi/eventspine/internal/http"
	"github.com/zedaapi/eventspine/internal/http/handlers"
	"github.com/zedaapi/eventspine/internal/locks"
	"github.com/zedaapi/eventspine/internal/logging"
	"github.com/zedaapi/eventspine/internal/observability"
	"github.com/zedaapi/eventspine/internal/redisclient"
	"github.com/zedaapi/eventspine/internal/sentryinit"
	"github.com/zedaapi/eventspine/internal/version"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level).With(slog.String("component", "operator"))

	sentryHandler, err := sentryinit.Init(cfg.Sentry.DSN, cfg.Sentry.Environment, version.String())
	if err != nil {
		log.Warn("sentry init failed", slog.String("error", err.Error()))
	}
	defer sentryinit.Flush(2 * time.Second)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(cfg.Prometheus.Namespace, registry)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		log.Error("database connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	store := dlqstore.New(pool)

	redisClient := redisclient.NewClient(redisclient.Config{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	lockManager := locks.NewRedisManager(redisClient)

	busCfg := bus.DefaultConfig()
	busCfg.URL = cfg.Bus.BootstrapServers
	busCfg.ConsumerGroupID = cfg.Bus.ConsumerGroupID
	busClient := bus.NewClient(busCfg, log, metrics)
	if err := busClient.Connect(ctx); err != nil {
		log.Error("bus connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer busClient.Close()

	healthHandler := handlers.NewHealthHandler(pool, lockManager)
	healthHandler.SetBusClient(busClient)

	dlqHandler := handlers.NewDLQHandler(store, busClient, log)

	router := ourhttp.NewRouter(ourhttp.RouterDeps{
		Logger:        log,
		Metrics:       metrics,
		SentryHandler: sentryHandler,
		HealthHandler: healthHandler,
		DLQHandler:    dlqHandler,
	})

	server := ourhttp.NewServer(router, cfg.Admin.Addr,
		cfg.HTTP.ReadHeaderTimeout, cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, cfg.HTTP.IdleTimeout,
		1<<20, log)

	if err := server.Run(ctx); err != nil {
		log.Error("operator server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
