package bus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/zedaapi/eventspine/internal/observability"
)

// Handler processes one raw message body and returns a HandlerResult that
// tells the consumer to Ack, Nak or NakWithDelay it. Callers that need
// retry/dead-letter routing call the reliability router inside Handler and
// report the settlement through HandlerResult.
type Handler func(ctx context.Context, subject string, data []byte) HandlerResult

// HandlerResult tells Consume how to settle a delivered message.
type HandlerResult struct {
	Ack   bool
	Delay time.Duration // used when !Ack and Delay > 0 (NakWithDelay)
}

// Ok acknowledges the message.
func Ok() HandlerResult { return HandlerResult{Ack: true} }

// Nak negatively acknowledges the message for immediate redelivery.
func Nak() HandlerResult { return HandlerResult{Ack: false} }

// NakDelay negatively acknowledges the message, asking the broker to
// redeliver no sooner than delay from now.
func NakDelay(delay time.Duration) HandlerResult { return HandlerResult{Ack: false, Delay: delay} }

// Consumer wraps a single JetStream durable consumer, driving messages
// through a Handler until its context is cancelled.
type Consumer struct {
	topic    string
	consumer jetstream.Consumer
	log      *slog.Logger
	metrics  *observability.Metrics
}

// NewConsumer creates (or attaches to) the durable consumer described by
// cfg on the stream backing topic.
func NewConsumer(ctx context.Context, c *Client, topic string, cfg jetstream.ConsumerConfig, log *slog.Logger) (*Consumer, error) {
	js := c.JetStream()
	if js == nil {
		return nil, ErrNotConnected
	}
	consumer, err := js.CreateOrUpdateConsumer(ctx, StreamName(topic), cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		topic:    topic,
		consumer: consumer,
		log:      log.With(slog.String("topic", topic), slog.String("consumer", cfg.Durable)),
		metrics:  c.metrics,
	}, nil
}

// Run consumes messages one at a time until ctx is cancelled, invoking
// handler for each and settling it (Ack/Nak/NakWithDelay) per the
// returned HandlerResult.
func (cs *Consumer) Run(ctx context.Context, handler Handler) error {
	iter, err := cs.consumer.Messages()
	if err != nil {
		return err
	}
	defer iter.Stop()

	for {
		msg, err := iter.Next()
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) || ctx.Err() != nil {
				return nil
			}
			cs.log.Error("consumer iterator error", slog.String("error", err.Error()))
			continue
		}

		result := handler(ctx, msg.Subject(), msg.Data())
		cs.settle(msg, result)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func (cs *Consumer) settle(msg jetstream.Msg, result HandlerResult) {
	if result.Ack {
		if err := msg.Ack(); err != nil {
			cs.log.Warn("ack failed", slog.String("error", err.Error()))
		}
		if cs.metrics != nil {
			cs.metrics.BusAckTotal.WithLabelValues(cs.topic).Inc()
		}
		return
	}

	var err error
	if result.Delay > 0 {
		err = msg.NakWithDelay(result.Delay)
	} else {
		err = msg.Nak()
	}
	if err != nil {
		cs.log.Warn("nak failed", slog.String("error", err.Error()))
	}
	if cs.metrics != nil {
		cs.metrics.BusNakTotal.WithLabelValues(cs.topic).Inc()
	}
}
