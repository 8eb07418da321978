package webhook

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ourmiddleware "github.com/zedaapi/eventspine/internal/http/middleware"
	"github.com/zedaapi/eventspine/internal/observability"
)

// NewRouter builds the chi router serving the webhook endpoints plus the
// operational /health and /metrics routes.
func NewRouter(h *Handler, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))
	r.Use(ourmiddleware.RequestLogger(h.Log))
	if metrics != nil {
		r.Use(ourmiddleware.PrometheusMiddleware(metrics))
	}

	r.Get("/webhook", h.Verify)
	r.Post("/webhook", h.Ingest)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
