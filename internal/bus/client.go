// Package bus wraps NATS JetStream behind the event-log abstraction the
// rest of the services program against: publish(topic, envelope, key) and
// subscribe(topic, consumer group, handler), with per-key ordering and
// explicit ack/nak/nak-with-delay commit.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/zedaapi/eventspine/internal/observability"
)

// Client wraps a NATS connection with JetStream support, reconnect
// handling, publish helpers, and graceful drain/close.
type Client struct {
	cfg     Config
	conn    *natsgo.Conn
	js      jetstream.JetStream
	log     *slog.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	closed bool
}

// NewClient creates a new bus client but does not connect. Call Connect to
// establish the connection.
func NewClient(cfg Config, log *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		cfg:     cfg,
		log:     log.With(slog.String("component", "bus_client")),
		metrics: metrics,
	}
}

// Connect establishes the underlying NATS connection and initializes
// JetStream.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("bus config: %w", err)
	}

	opts := []natsgo.Option{
		natsgo.Name("eventspine"),
		natsgo.Timeout(c.cfg.ConnectTimeout),
		natsgo.ReconnectWait(c.cfg.ReconnectWait),
		natsgo.MaxReconnects(c.cfg.MaxReconnects),
		natsgo.DisconnectErrHandler(c.onDisconnect),
		natsgo.ReconnectHandler(c.onReconnect),
		natsgo.ClosedHandler(c.onClosed),
		natsgo.ErrorHandler(c.onError),
	}

	conn, err := natsgo.Connect(c.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("bus connect to %s: %w", c.cfg.URL, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("jetstream init: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.js = js
	c.mu.Unlock()

	c.log.Info("connected to bus",
		slog.String("url", c.cfg.URL),
		slog.String("server_id", conn.ConnectedServerId()),
	)

	return nil
}

// Publish wraps data in a JetStream publish to topic.key, generating the
// durable per-key ordering subject, and reports publish metrics.
func (c *Client) Publish(ctx context.Context, topic, key string, data []byte) (*jetstream.PubAck, error) {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()

	if js == nil {
		return nil, ErrNotConnected
	}

	subject := Subject(topic, key)

	ack, err := js.Publish(ctx, subject, data, jetstream.WithExpectStream(StreamName(topic)))
	if c.metrics != nil {
		c.metrics.BusPublishTotal.WithLabelValues(topic).Inc()
	}
	if err != nil {
		return nil, fmt.Errorf("publish to %s: %w", subject, err)
	}
	return ack, nil
}

// PublishEnvelope publishes data to topic.key and discards the ack,
// satisfying the narrower publisher interface the reliability router and
// dispatcher program against.
func (c *Client) PublishEnvelope(ctx context.Context, topic, key string, data []byte) error {
	_, err := c.Publish(ctx, topic, key, data)
	return err
}

// JetStream returns the underlying JetStream context for consumer setup.
func (c *Client) JetStream() jetstream.JetStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.js
}

// Conn returns the underlying NATS connection.
func (c *Client) Conn() *natsgo.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// IsConnected reports whether the bus connection is currently active.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Drain initiates a graceful drain, waiting for in-flight messages to
// complete before closing.
func (c *Client) Drain(timeout time.Duration) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.log.Info("draining bus connection", slog.Duration("timeout", timeout))

	if err := conn.Drain(); err != nil {
		return fmt.Errorf("bus drain: %w", err)
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			c.log.Warn("bus drain timeout exceeded, forcing close")
			conn.Close()
			return ErrDrainTimeout
		case <-ticker.C:
			if conn.IsClosed() {
				c.log.Info("bus drain completed")
				return nil
			}
		}
	}
}

// Close immediately closes the bus connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if c.conn != nil {
		c.conn.Close()
	}

	c.log.Info("bus connection closed")
}

func (c *Client) onDisconnect(conn *natsgo.Conn, err error) {
	if err != nil {
		c.log.Warn("bus disconnected", slog.String("error", err.Error()))
		return
	}
	c.log.Warn("bus disconnected")
}

func (c *Client) onReconnect(conn *natsgo.Conn) {
	c.log.Info("bus reconnected",
		slog.String("url", conn.ConnectedUrl()),
		slog.String("server_id", conn.ConnectedServerId()),
	)
}

func (c *Client) onClosed(conn *natsgo.Conn) {
	c.log.Info("bus connection closed")
}

func (c *Client) onError(conn *natsgo.Conn, sub *natsgo.Subscription, err error) {
	fields := []any{slog.String("error", err.Error())}
	if sub != nil {
		fields = append(fields, slog.String("subject", sub.Subject))
	}
	c.log.Error("bus async error", fields...)
}
