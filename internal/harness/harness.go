// Package harness implements the deterministic producer/consumer pair used
// to exercise the end-to-end properties of §8 without a live platform: a
// producer injects synthetic MessageReceived events, a consumer subscribes
// to every conversation topic from the oldest retained message under a
// unique group id and prints each decoded envelope.
package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/zedaapi/eventspine/internal/bus"
	"github.com/zedaapi/eventspine/internal/envelope"
)

// ProduceMessage builds and publishes a synthetic MessageReceived envelope
// for phone, returning the event id that was published for the caller to
// correlate against consumer output.
func ProduceMessage(ctx context.Context, client *bus.Client, phone, body string) (uuid.UUID, error) {
	msg := envelope.MessageReceived{
		MessageID:   "harness-" + uuid.NewString(),
		FromPhone:   phone,
		MessageType: envelope.MessageText,
		Content:     envelope.MessageContent{Text: &envelope.TextContent{Body: body}},
		ReceivedAt:  time.Now().UTC(),
	}
	env := envelope.New(envelope.EventMessageReceived, msg, 3)

	data, err := envelope.Encode(env)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode harness envelope: %w", err)
	}
	if err := client.PublishEnvelope(ctx, "conversation.messages", phone, data); err != nil {
		return uuid.Nil, fmt.Errorf("publish harness envelope: %w", err)
	}
	return env.EventID, nil
}

// Observed is one envelope seen by the harness consumer, tagged with the
// topic subject it arrived on.
type Observed struct {
	Topic    string
	Envelope envelope.Envelope
}

// Consume subscribes groupID to every topic in topics from the oldest
// retained message and invokes onMessage for each decoded envelope until
// ctx is cancelled. Decode failures are logged and skipped rather than
// aborting the run, since the harness is a diagnostic oracle, not a
// production consumer subject to the reliability router.
func Consume(ctx context.Context, client *bus.Client, groupID string, topics []string, log *slog.Logger, onMessage func(Observed)) error {
	js := client.JetStream()
	if js == nil {
		return fmt.Errorf("harness: bus not connected")
	}

	for _, topic := range topics {
		cfg := jetstream.ConsumerConfig{
			Durable:       groupID,
			FilterSubject: bus.SubjectWildcard(topic),
			AckPolicy:     jetstream.AckExplicitPolicy,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		}
		consumer, err := bus.NewConsumer(ctx, client, topic, cfg, log)
		if err != nil {
			return fmt.Errorf("harness consumer for %s: %w", topic, err)
		}

		go func(topic string, consumer *bus.Consumer) {
			err := consumer.Run(ctx, func(_ context.Context, subject string, data []byte) bus.HandlerResult {
				env, decodeErr := envelope.Decode(data)
				if decodeErr != nil {
					log.Warn("harness: undecodable envelope",
						slog.String("subject", subject), slog.String("error", decodeErr.Error()))
					return bus.Ok()
				}
				onMessage(Observed{Topic: topic, Envelope: env})
				return bus.Ok()
			})
			if err != nil {
				log.Error("harness consumer exited", slog.String("topic", topic), slog.String("error", err.Error()))
			}
		}(topic, consumer)
	}

	<-ctx.Done()
	return nil
}

// FormatObserved renders an Observed envelope as a single-line JSON record
// for the consumer binary's stdout output.
func FormatObserved(o Observed) (string, error) {
	data, err := json.Marshal(struct {
		Topic        string            `json:"topic"`
		EventID      string            `json:"event_id"`
		EventType    envelope.EventType `json:"event_type"`
		AttemptCount int               `json:"attempt_count"`
		Data         any               `json:"data"`
	}{
		Topic:        o.Topic,
		EventID:      o.Envelope.EventID.String(),
		EventType:    o.Envelope.EventType,
		AttemptCount: o.Envelope.AttemptCount,
		Data:         o.Envelope.Data,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
