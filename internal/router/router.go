// Package router implements the reliability state machine: given a
// handler's processing outcome for an envelope, it decides whether to
// commit, republish to a retry topic, or dead-letter it, and produces the
// MessageFailed record that lands on conversation.failures.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zedaapi/eventspine/internal/bus"
	"github.com/zedaapi/eventspine/internal/envelope"
	"github.com/zedaapi/eventspine/internal/observability"
	"github.com/zedaapi/eventspine/internal/sentryinit"
)

// Outcome is what a handler reports back after attempting to process an
// envelope.
type Outcome struct {
	Status Status
	Reason error // populated for Retry/Dead, classified into a FailureType
}

// Status is the three-way processing result a handler can report.
type Status int

const (
	Success Status = iota
	Retry
	Dead
)

func OutcomeSuccess() Outcome          { return Outcome{Status: Success} }
func OutcomeRetry(reason error) Outcome { return Outcome{Status: Retry, Reason: reason} }
func OutcomeDead(reason error) Outcome  { return Outcome{Status: Dead, Reason: reason} }

// Publisher is the subset of the bus client the router needs: publishing a
// copy of an envelope to a derived topic (retry, dlq, or failures).
type Publisher interface {
	PublishEnvelope(ctx context.Context, topic, key string, data []byte) error
}

// Router applies the Success/Retry/Dead state machine to one envelope
// observation on sourceTopic.
type Router struct {
	bus     Publisher
	log     *slog.Logger
	metrics *observability.Metrics
}

func New(bus Publisher, log *slog.Logger, metrics *observability.Metrics) *Router {
	return &Router{bus: bus, log: log.With(slog.String("component", "router")), metrics: metrics}
}

// Route executes the state machine described in the component design:
// Success commits with no republish; Retry republishes to the topic's
// .retry sibling with attempt_count+1 unless the ceiling is reached, in
// which case it is treated as Dead; Dead publishes to .dlq (attempt_count
// preserved) and, when the envelope identifies a message and phone, also
// emits a MessageFailed to conversation.failures.
func (r *Router) Route(ctx context.Context, sourceTopic string, env envelope.Envelope, key string, outcome Outcome) error {
	switch outcome.Status {
	case Success:
		if r.metrics != nil {
			r.metrics.RouterDecisions.WithLabelValues(sourceTopic, "success").Inc()
		}
		return nil

	case Retry:
		if !env.ExceedsMaxAttempts() {
			return r.retry(ctx, sourceTopic, env, key)
		}
		return r.dead(ctx, sourceTopic, env, key, outcome.Reason)

	case Dead:
		return r.dead(ctx, sourceTopic, env, key, outcome.Reason)

	default:
		return fmt.Errorf("router: unknown outcome status %d", outcome.Status)
	}
}

func (r *Router) retry(ctx context.Context, sourceTopic string, env envelope.Envelope, key string) error {
	retryTopic, ok := bus.RetryTopic(sourceTopic)
	if !ok {
		return r.dead(ctx, sourceTopic, env, key, fmt.Errorf("no retry topic for %s", sourceTopic))
	}

	next := env.NextAttempt()
	data, err := envelope.Encode(next)
	if err != nil {
		return fmt.Errorf("encode retry envelope: %w", err)
	}
	if err := r.bus.PublishEnvelope(ctx, retryTopic, key, data); err != nil {
		return fmt.Errorf("publish retry envelope: %w", err)
	}

	if r.metrics != nil {
		r.metrics.RouterDecisions.WithLabelValues(sourceTopic, "retry").Inc()
	}
	r.log.Info("envelope routed to retry",
		slog.String("event_id", env.EventID.String()),
		slog.String("retry_topic", retryTopic),
		slog.Int("attempt_count", next.AttemptCount),
	)
	return nil
}

func (r *Router) dead(ctx context.Context, sourceTopic string, env envelope.Envelope, key string, cause error) error {
	dlqTopic, ok := bus.DLQTopic(sourceTopic)
	if !ok {
		dlqTopic = sourceTopic + ".dlq"
	}

	data, err := envelope.Encode(env)
	if err != nil {
		return fmt.Errorf("encode dead envelope: %w", err)
	}
	if err := r.bus.PublishEnvelope(ctx, dlqTopic, key, data); err != nil {
		return fmt.Errorf("publish dead envelope: %w", err)
	}

	failureType := Classify(cause)

	messageID, phone, ok := messageIdentity(env)
	if ok {
		failed := envelope.New(envelope.EventMessageFailed, envelope.MessageFailed{
			MessageID:    messageID,
			Phone:        phone,
			FailureType:  failureType,
			ErrorDetails: causeText(cause),
			AttemptCount: env.AttemptCount,
			FailedAt:     time.Now().UTC(),
		}, 1)
		failedData, err := envelope.Encode(failed)
		if err != nil {
			return fmt.Errorf("encode MessageFailed: %w", err)
		}
		if err := r.bus.PublishEnvelope(ctx, "conversation.failures", phone, failedData); err != nil {
			return fmt.Errorf("publish MessageFailed: %w", err)
		}
	}

	if r.metrics != nil {
		r.metrics.RouterDecisions.WithLabelValues(sourceTopic, "dead").Inc()
	}
	sentryinit.CaptureDeadLetter(sourceTopic, env.EventID.String(), string(failureType), env.AttemptCount, cause)
	r.log.Warn("envelope routed to dlq",
		slog.String("event_id", env.EventID.String()),
		slog.String("dlq_topic", dlqTopic),
		slog.String("failure_type", string(failureType)),
	)
	return nil
}

// messageIdentity extracts message_id/phone from the envelope's payload,
// when the payload carries one, for the companion MessageFailed emission.
func messageIdentity(env envelope.Envelope) (messageID, phone string, ok bool) {
	switch p := env.Data.(type) {
	case envelope.MessageReceived:
		return p.MessageID, p.FromPhone, true
	case envelope.InteractionReceived:
		return p.OriginalMessageID, p.FromPhone, true
	case envelope.ResponseReady:
		return p.OriginalMessageID, p.ToPhone, true
	default:
		return "", "", false
	}
}

func causeText(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}
