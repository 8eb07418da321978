// Command webhook serves the WhatsApp Cloud API webhook ingress: the GET
// verification handshake and POST payload normalization/publish.
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
	ourhttp "github.com/zedaapi/eventspine/internal/http"
	"github.com/zedaapi/eventspine/internal/locks"
	"github.com/zedaapi/eventspine/internal/logging"
	"github.com/zedaapi/eventspine/internal/observability"
	"github.com/zedaapi/eventspine/internal/redisclient"
	"github.com/zedaapi/eventspine/internal/sentryinit"
	"github.com/zedaapi/eventspine/internal/version"
	"github.com/zedaapi/eventspine/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level).With(slog.String("component", "webhook"))

	if _, err := sentryinit.Init(cfg.Sentry.DSN, cfg.Sentry.Environment, version.String()); err != nil {
		log.Warn("sentry init failed", slog.String("error", err.Error()))
	}
	defer sentryinit.Flush(2 * time.Second)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(cfg.Prometheus.Namespace, registry)

	busCfg := bus.DefaultConfig()
	busCfg.URL = cfg.Bus.BootstrapServers
	busCfg.ConsumerGroupID = cfg.Bus.ConsumerGroupID

	busClient := bus.NewClient(busCfg, log, metrics)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := busClient.Connect(ctx); err != nil {
		log.Error("bus connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer busClient.Close()

	redisClient := redisclient.NewClient(redisclient.Config{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	dedupe := locks.NewCircuitBreakerManager(locks.NewRedisManager(redisClient), locks.DefaultCircuitBreakerConfig())
	dedupe.SetMetrics(locks.CircuitBreakerMetricsCallbacks{
		AcquireResult: func(result string) { metrics.LockAcquireTotal.WithLabelValues(result).Inc() },
		CircuitState:  func(state locks.CircuitState) { metrics.LockCircuitState.WithLabelValues("webhook").Set(float64(state)) },
	})

	handler := &webhook.Handler{
		VerifyToken:  cfg.Webhook.VerifyToken,
		MaxBodyBytes: int64(cfg.Webhook.MaxFileSizeMB) << 20,
		MaxAttempts:  cfg.Reliability.MaxAttempts,
		Bus:          busClient,
		Dedupe:       dedupe,
		Log:          log,
		Metrics:      metrics,
	}

	router := webhook.NewRouter(handler, metrics)
	server := ourhttp.NewServer(router, cfg.Webhook.Host+":"+cfg.Webhook.Port,
		cfg.HTTP.ReadHeaderTimeout, cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, cfg.HTTP.IdleTimeout,
		1<<20, log)

	if err := server.Run(ctx); err != nil {
		log.Error("webhook server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
