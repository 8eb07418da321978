package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors shared across the webhook,
// dispatcher and bootstrap binaries. Each binary wires up only the
// collectors it actually touches.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	BusPublishTotal *prometheus.CounterVec
	BusAckTotal     *prometheus.CounterVec
	BusNakTotal     *prometheus.CounterVec

	RouterDecisions *prometheus.CounterVec

	DispatchDuration  *prometheus.HistogramVec
	DispatchStatus    *prometheus.CounterVec
	RateLimiterWait   prometheus.Histogram

	DLQDepth *prometheus.GaugeVec

	LockAcquireTotal *prometheus.CounterVec
	LockCircuitState *prometheus.GaugeVec
}

// NewMetrics builds and registers every collector under namespace.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	httpLabels := []string{"method", "path", "status"}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed.",
	}, httpLabels)
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, httpLabels)

	busPublish := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_publish_total",
		Help:      "Envelopes published to the bus, by topic.",
	}, []string{"topic"})
	busAck := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_ack_total",
		Help:      "Envelopes acknowledged after successful handling, by topic.",
	}, []string{"topic"})
	busNak := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_nak_total",
		Help:      "Envelopes negatively acknowledged, by topic.",
	}, []string{"topic"})

	routerDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "router_decisions_total",
		Help:      "Reliability router outcomes, by topic and outcome.",
	}, []string{"topic", "outcome"})

	dispatchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_http_duration_seconds",
		Help:      "Duration of outbound platform API calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"response_type"})
	dispatchStatus := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_http_status_total",
		Help:      "Outbound platform API call outcomes, by status class.",
	}, []string{"status_class"})
	rateLimiterWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_rate_limiter_wait_seconds",
		Help:      "Time spent waiting for a per-phone rate limiter token.",
		Buckets:   prometheus.DefBuckets,
	})

	dlqDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dlq_depth",
		Help:      "Number of audited dead-letter records, by topic.",
	}, []string{"topic"})

	lockAcquire := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lock_acquire_total",
		Help:      "Distributed lock acquisitions, by result (success/failure).",
	}, []string{"result"})
	lockCircuitState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "lock_circuit_state",
		Help:      "Dedupe lock circuit breaker state (0=closed, 1=open, 2=half_open), by component.",
	}, []string{"component"})

	reg.MustRegister(
		requests, duration,
		busPublish, busAck, busNak,
		routerDecisions,
		dispatchDuration, dispatchStatus, rateLimiterWait,
		dlqDepth,
		lockAcquire, lockCircuitState,
	)

	return &Metrics{
		HTTPRequests:     requests,
		HTTPDuration:     duration,
		BusPublishTotal:  busPublish,
		BusAckTotal:      busAck,
		BusNakTotal:      busNak,
		RouterDecisions:  routerDecisions,
		DispatchDuration: dispatchDuration,
		DispatchStatus:   dispatchStatus,
		RateLimiterWait:  rateLimiterWait,
		DLQDepth:         dlqDepth,
		LockAcquireTotal: lockAcquire,
		LockCircuitState: lockCircuitState,
	}
}
