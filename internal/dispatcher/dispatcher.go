// Package dispatcher consumes conversation.responses and delivers each
// ResponseReady to the platform's Graph API, applying per-phone-number
// rate limiting and the Success/Retry/Dead outcome classification.
package dispatcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/zedaapi/eventspine/internal/bus"
	"github.com/zedaapi/eventspine/internal/envelope"
	"github.com/zedaapi/eventspine/internal/locks"
	"github.com/zedaapi/eventspine/internal/observability"
	"github.com/zedaapi/eventspine/internal/router"
)

const sourceTopic = "conversation.responses"

// Config holds the dispatcher's tunables.
type Config struct {
	ConsumerGroupID string
	AccessToken     string
	APIVersion      string
	PhoneNumberID   string
	RateLimitRPS    float64
	RateLimitBurst  int
}

// Dispatcher consumes conversation.responses and calls the platform for
// each ResponseReady, routing the outcome through the reliability router.
type Dispatcher struct {
	cfg       Config
	router    *router.Router
	limits    *Limiters
	http      *http.Client
	dedupe    locks.Manager
	validator *Validator
	log       *slog.Logger
	metrics   *observability.Metrics
}

// New builds a Dispatcher. httpClient should come from NewHTTPClient.
func New(cfg Config, publisher router.Publisher, dedupe locks.Manager, httpClient *http.Client, log *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		router:    router.New(publisher, log, metrics),
		limits:    NewLimiters(cfg.RateLimitRPS, cfg.RateLimitBurst),
		http:      httpClient,
		dedupe:    dedupe,
		validator: NewValidator(),
		log:       log.With(slog.String("component", "dispatcher")),
		metrics:   metrics,
	}
}

// Run ensures the durable consumer for conversation.responses and drives
// messages through Handle until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, client *bus.Client) error {
	cfg := bus.GroupConsumerConfig(d.cfg.ConsumerGroupID, sourceTopic)
	consumer, err := bus.NewConsumer(ctx, client, sourceTopic, cfg, d.log)
	if err != nil {
		return fmt.Errorf("ensure dispatcher consumer: %w", err)
	}
	d.log.Info("dispatcher started", slog.String("consumer", cfg.Durable))
	return consumer.Run(ctx, d.Handle)
}

// Handle decodes one conversation.responses record, delivers it to the
// platform, and routes the outcome. It returns Nak only when the routing
// itself fails (a bus-level publish error), or a one-second NakDelay when
// the rate-limiter wait is aborted; Route already performs the
// retry/dead-letter republish for a Retry or Dead outcome.
func (d *Dispatcher) Handle(ctx context.Context, subject string, data []byte) bus.HandlerResult {
	start := time.Now()

	env, err := envelope.Decode(data)
	if err != nil {
		d.log.Error("failed to decode response envelope",
			slog.String("subject", subject), slog.String("error", err.Error()))
		return bus.Ok()
	}

	resp, ok := env.Data.(envelope.ResponseReady)
	if !ok {
		d.log.Error("unexpected envelope data on conversation.responses", slog.String("event_type", string(env.EventType)))
		return bus.Ok()
	}

	logFields := []any{
		slog.String("event_id", env.EventID.String()),
		slog.String("to_phone", resp.ToPhone),
		slog.String("response_type", string(resp.ResponseType)),
	}

	delivered, err := alreadyDelivered(ctx, d.dedupe, env.EventID.String())
	if err != nil {
		d.log.Warn("delivery dedupe check failed, proceeding without guard", append(logFields, slog.String("error", err.Error()))...)
	} else if delivered {
		d.log.Info("response already delivered, acknowledging without resend", logFields...)
		return bus.Ok()
	}

	waitStart := time.Now()
	if err := d.limits.Wait(ctx, d.cfg.PhoneNumberID); err != nil {
		d.log.Warn("rate limiter wait aborted", append(logFields, slog.String("error", err.Error()))...)
		return bus.NakDelay(time.Second)
	}
	if d.metrics != nil {
		d.metrics.RateLimiterWait.Observe(time.Since(waitStart).Seconds())
	}

	outcome := d.deliver(ctx, resp)
	duration := time.Since(start)

	if d.metrics != nil {
		d.metrics.DispatchDuration.WithLabelValues(string(resp.ResponseType)).Observe(duration.Seconds())
		d.metrics.DispatchStatus.WithLabelValues(outcomeLabel(outcome)).Inc()
	}

	if err := d.router.Route(ctx, sourceTopic, env, resp.ToPhone, outcome); err != nil {
		d.log.Error("router failed to apply outcome", append(logFields, slog.String("error", err.Error()))...)
		return bus.Nak()
	}

	if outcome.Status == router.Success {
		d.log.Info("response delivered", append(logFields, slog.Duration("duration", duration))...)
	}
	return bus.Ok()
}

// deliver performs the platform HTTP call and classifies the result into
// an Outcome per the outbound dispatcher's response handling: 2xx success,
// 429/5xx/network retry honoring Retry-After, other 4xx dead.
func (d *Dispatcher) deliver(ctx context.Context, resp envelope.ResponseReady) router.Outcome {
	if err := d.validator.ValidateResponse(resp); err != nil {
		return router.OutcomeDead(&router.ValidationError{Cause: err})
	}

	body, err := BuildRequestBody(resp)
	if err != nil {
		return router.OutcomeDead(&router.ValidationError{Cause: err})
	}

	url := fmt.Sprintf("https://graph.facebook.com/%s/%s/messages", d.cfg.APIVersion, d.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return router.OutcomeDead(&router.ValidationError{Cause: err})
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := d.http.Do(req)
	if err != nil {
		return router.OutcomeRetry(&router.ExternalServiceError{Cause: err})
	}
	defer httpResp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64<<10))

	if httpResp.StatusCode == http.StatusTooManyRequests {
		d.limits.DeferRefill(d.cfg.PhoneNumberID, retryAfterDuration(httpResp.Header.Get("Retry-After")))
	}

	cause := fmt.Errorf("platform call %s: HTTP %d: %s", url, httpResp.StatusCode, string(respBody))
	return router.ClassifyHTTPStatus(httpResp.StatusCode, cause)
}

func retryAfterDuration(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		return time.Until(when)
	}
	return 0
}

func outcomeLabel(o router.Outcome) string {
	switch o.Status {
	case router.Success:
		return "success"
	case router.Retry:
		return "retry"
	case router.Dead:
		return "dead"
	default:
		return "unknown"
	}
}
