package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// streamConfig builds the JetStream stream config for one registry topic.
func streamConfig(t Topic) jetstream.StreamConfig {
	retention := jetstream.LimitsPolicy
	if t.Name == "conversation.responses" {
		retention = jetstream.WorkQueuePolicy
	}
	return jetstream.StreamConfig{
		Name:              StreamName(t.Name),
		Subjects:          []string{SubjectWildcard(t.Name)},
		Retention:         retention,
		MaxAge:            t.MaxAge,
		MaxBytes:          t.MaxBytes,
		Storage:           jetstream.FileStorage,
		Discard:           jetstream.DiscardOld,
		Duplicates:        2 * time.Minute,
		MaxMsgSize:        1 << 20,
		MaxMsgsPerSubject: -1,
	}
}

// EnsureAllStreams creates or updates every stream in the topic registry,
// idempotently. It is the core of the bootstrap provisioner.
func EnsureAllStreams(ctx context.Context, js jetstream.JetStream, log *slog.Logger) error {
	for _, t := range Registry {
		cfg := streamConfig(t)
		stream, err := js.CreateOrUpdateStream(ctx, cfg)
		if err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
		info, err := stream.Info(ctx)
		if err != nil {
			log.Warn("failed to get stream info after create",
				slog.String("stream", cfg.Name),
				slog.String("error", err.Error()))
			continue
		}
		log.Info("stream ensured",
			slog.String("topic", t.Name),
			slog.String("stream", cfg.Name),
			slog.Uint64("messages", info.State.Msgs),
			slog.Uint64("bytes", info.State.Bytes),
		)
	}
	return nil
}

// KeyConsumerConfig returns a durable consumer config for a single
// partition key (phone number) within a keyed topic. MaxAckPending=1
// guarantees the per-user FIFO ordering the topic registry requires;
// consumer group maps to the durable name.
func KeyConsumerConfig(groupID, topic, key string) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Durable:       fmt.Sprintf("%s-%s", groupID, sanitizeName(key)),
		FilterSubject: Subject(topic, key),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    10,
		MaxAckPending: 1,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
}

// GroupConsumerConfig returns a durable consumer config that fans a whole
// topic out to one consumer group without per-key ordering (up to 50
// unacknowledged messages in flight). The dispatcher uses it for the keyed
// conversation.responses topic.
func GroupConsumerConfig(groupID, topic string) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Durable:       groupID,
		FilterSubject: SubjectWildcard(topic),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    10,
		MaxAckPending: 50,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
}

func sanitizeName(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "anon"
	}
	return string(out)
}
