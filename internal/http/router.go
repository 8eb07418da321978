package http

import (
	"net/http"
	"time"

	"log/slog"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zedaapi/eventspine/internal/http/handlers"
	ourMiddleware "github.com/zedaapi/eventspine/internal/http/middleware"
	"github.com/zedaapi/eventspine/internal/observability"
)

// RouterDeps wires the operator-facing admin API: liveness/readiness
// probes, Prometheus scraping, and the dead-letter audit endpoints.
type RouterDeps struct {
	Logger        *slog.Logger
	Metrics       *observability.Metrics
	SentryHandler *sentryhttp.Handler
	HealthHandler *handlers.HealthHandler
	DLQHandler    *handlers.DLQHandler
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	if deps.Logger != nil {
		r.Use(ourMiddleware.RequestLogger(deps.Logger))
	}
	if deps.Metrics != nil {
		r.Use(ourMiddleware.PrometheusMiddleware(deps.Metrics))
	}
	if deps.SentryHandler != nil {
		r.Use(deps.SentryHandler.Handle)
	}

	if deps.HealthHandler != nil {
		r.Get("/health", deps.HealthHandler.Health)
		r.Get("/ready", deps.HealthHandler.Ready)
	}

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if deps.DLQHandler != nil {
		deps.DLQHandler.Register(r)
	}

	return r
}
