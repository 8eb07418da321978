// Package webhook implements the WhatsApp Cloud API webhook ingress: the
// GET verification handshake, POST payload normalization, and publish to
// the conversation topics.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zedaapi/eventspine/internal/envelope"
	"github.com/zedaapi/eventspine/internal/locks"
	"github.com/zedaapi/eventspine/internal/observability"
)

// failuresTopic receives a MessageFailed record for an inbound message the
// ingress could not normalize into a domain event, so it stays auditable
// instead of silently dropped.
const failuresTopic = "conversation.failures"

// dedupeWindow bounds how long an inbound message/status id is remembered
// to reject a Meta-retried duplicate webhook delivery.
const dedupeWindow = 24 * 60 * 60

// Publisher is the seam onto the bus the handler needs: publish an
// already-encoded envelope to topic under the given partition key.
type Publisher interface {
	PublishEnvelope(ctx context.Context, topic, key string, data []byte) error
}

// Handler serves the webhook verification and ingestion endpoints.
type Handler struct {
	VerifyToken  string
	MaxBodyBytes int64
	MaxAttempts  int

	Bus     Publisher
	Dedupe  locks.Manager
	Log     *slog.Logger
	Metrics *observability.Metrics
}

// Verify handles GET /webhook, the Cloud API subscription handshake.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || token != h.VerifyToken {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// Ingest handles POST /webhook, normalizing and publishing inbound
// messages/interactions, counting but not publishing statuses[] entries.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, h.MaxBodyBytes+1))
	if err != nil {
		h.Log.Error("read webhook body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if int64(len(body)) > h.MaxBodyBytes {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.Log.Warn("malformed webhook payload", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if payload.Object != "whatsapp_business_account" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	published, statusCount, err := h.process(ctx, payload)
	if err != nil {
		h.Log.Error("webhook processing failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	h.Log.Info("webhook ingested",
		slog.Int("published", published),
		slog.Int("statuses", statusCount),
	)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) process(ctx context.Context, payload Payload) (published, statusCount int, err error) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			statusCount += len(change.Value.Statuses)
			for _, status := range change.Value.Statuses {
				h.Log.Debug("delivery status received",
					slog.String("message_id", status.ID),
					slog.String("status", status.Status),
				)
			}

			for _, msg := range change.Value.Messages {
				if err := h.publishMessage(ctx, msg); err != nil {
					if errors.Is(err, ErrUnsupportedMessageType) {
						h.Log.Warn("unsupported message type, publishing failure",
							slog.String("message_id", msg.ID),
							slog.String("type", msg.Type),
						)
						if ferr := h.publishMessageFailure(ctx, msg, err); ferr != nil {
							return published, statusCount, ferr
						}
						continue
					}
					return published, statusCount, err
				}
				published++
			}
		}
	}
	return published, statusCount, nil
}

func (h *Handler) publishMessage(ctx context.Context, msg Message) error {
	seen, err := h.alreadySeen(ctx, msg.ID)
	if err != nil {
		h.Log.Warn("dedupe check failed, proceeding without guard",
			slog.String("message_id", msg.ID), slog.String("error", err.Error()))
	} else if seen {
		h.Log.Info("duplicate webhook delivery skipped", slog.String("message_id", msg.ID))
		return nil
	}

	normalized, err := Normalize(msg, ParseTimestamp(msg.Timestamp))
	if err != nil {
		return err
	}

	env := envelope.New(eventTypeFor(normalized.Event), normalized.Event, h.effectiveMaxAttempts())
	raw, err := envelope.Encode(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	if err := h.Bus.PublishEnvelope(ctx, normalized.Topic, normalized.Key, raw); err != nil {
		return fmt.Errorf("publish to %s: %w", normalized.Topic, err)
	}
	if h.Metrics != nil {
		h.Metrics.BusPublishTotal.WithLabelValues(normalized.Topic).Inc()
	}
	return nil
}

// publishMessageFailure records an inbound message that Normalize could not
// turn into a domain event as a MessageFailed on conversation.failures,
// rather than letting it disappear at the webhook boundary.
func (h *Handler) publishMessageFailure(ctx context.Context, msg Message, cause error) error {
	failed := envelope.New(envelope.EventMessageFailed, envelope.MessageFailed{
		MessageID:    msg.ID,
		Phone:        msg.From,
		FailureType:  envelope.FailureValidation,
		ErrorDetails: cause.Error(),
		AttemptCount: 1,
		FailedAt:     time.Now().UTC(),
	}, 1)

	raw, err := envelope.Encode(failed)
	if err != nil {
		return fmt.Errorf("encode MessageFailed envelope: %w", err)
	}
	if err := h.Bus.PublishEnvelope(ctx, failuresTopic, msg.From, raw); err != nil {
		return fmt.Errorf("publish to %s: %w", failuresTopic, err)
	}
	if h.Metrics != nil {
		h.Metrics.BusPublishTotal.WithLabelValues(failuresTopic).Inc()
	}
	return nil
}

func (h *Handler) alreadySeen(ctx context.Context, messageID string) (bool, error) {
	if h.Dedupe == nil || messageID == "" {
		return false, nil
	}
	_, acquired, err := h.Dedupe.Acquire(ctx, "webhook:dedupe:"+messageID, dedupeWindow)
	if err != nil {
		return false, err
	}
	return !acquired, nil
}

func (h *Handler) effectiveMaxAttempts() int {
	if h.MaxAttempts <= 0 {
		return 1
	}
	return h.MaxAttempts
}

func eventTypeFor(event any) envelope.EventType {
	switch event.(type) {
	case envelope.InteractionReceived:
		return envelope.EventInteractionReceived
	default:
		return envelope.EventMessageReceived
	}
}
