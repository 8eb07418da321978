// Command dispatcher consumes conversation.responses and delivers each
// ResponseReady to the WhatsApp Cloud Graph API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zedaapi/eventspine/internal/bus"
	"github.com/zedaapi/eventspine/internal/config"
	"github.com/zedaapi/eventspine/internal/dispatcher"
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

	log := logging.New(cfg.Log.Level).With(slog.String("component", "dispatcher"))

	if _, err := sentryinit.Init(cfg.Sentry.DSN, cfg.Sentry.Environment, version.String()); err != nil {
		log.Warn("sentry init failed", slog.String("error", err.Error()))
	}
	defer sentryinit.Flush(2 * time.Second)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(cfg.Prometheus.Namespace, registry)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	busCfg := bus.DefaultConfig()
	busCfg.URL = cfg.Bus.BootstrapServers
	busCfg.ConsumerGroupID = cfg.Bus.ConsumerGroupID
	busClient := bus.NewClient(busCfg, log, metrics)
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
		CircuitState:  func(state locks.CircuitState) { metrics.LockCircuitState.WithLabelValues("dispatcher").Set(float64(state)) },
	})

	httpClient := dispatcher.NewHTTPClient(dispatcher.ClientConfig{
		Timeout:         cfg.Dispatcher.CallTimeout,
		MaxIdleConns:    cfg.Dispatcher.MaxIdleConns,
		MaxConnsPerHost: cfg.Dispatcher.MaxConnsPerHost,
		IdleConnTimeout: cfg.Dispatcher.IdleConnTimeout,
	})

	dispatchCfg := dispatcher.Config{
		ConsumerGroupID: cfg.Dispatcher.ConsumerGroupID,
		AccessToken:     cfg.Whatsapp.AccessToken,
		APIVersion:      cfg.Whatsapp.APIVersion,
		PhoneNumberID:   cfg.Whatsapp.PhoneNumberID,
		RateLimitRPS:    cfg.Dispatcher.RateLimitRPS,
		RateLimitBurst:  cfg.Dispatcher.RateLimitBurst,
	}
	d := dispatcher.New(dispatchCfg, busClient, dedupe, httpClient, log, metrics)

	go serveMetrics(ctx, log, registry)

	if err := d.Run(ctx, busClient); err != nil {
		log.Error("dispatcher exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("dispatcher shut down cleanly")
}

func serveMetrics(ctx context.Context, log *slog.Logger, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: ":9090", Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn("metrics server exited", slog.String("error", err.Error()))
	}
}
