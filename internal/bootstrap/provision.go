// Package bootstrap provisions the bus topology one time so that the
// webhook, dispatcher, and harness binaries never race each other on
// stream creation.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zedaapi/eventspine/internal/bus"
)

// Options configures the provisioning retry loop.
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

func DefaultOptions() Options {
	return Options{MaxAttempts: 10, RetryDelay: 2 * time.Second}
}

// Provision connects to the bus and ensures every registry stream exists,
// retrying on connection failure with a fixed backoff — the broker may
// still be starting up when this binary runs as an init container.
func Provision(ctx context.Context, client *bus.Client, log *slog.Logger, opts Options) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := client.Connect(ctx)
		if err == nil {
			break
		}
		lastErr = err
		log.Warn("bus connect failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", opts.MaxAttempts),
			slog.String("error", err.Error()),
		)
		if attempt == opts.MaxAttempts {
			return fmt.Errorf("bus unreachable after %d attempts: %w", opts.MaxAttempts, lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.RetryDelay):
		}
	}

	js := client.JetStream()
	if js == nil {
		return errors.New("bootstrap: jetstream not initialized after connect")
	}

	if err := bus.EnsureAllStreams(ctx, js, log); err != nil {
		return fmt.Errorf("ensure streams: %w", err)
	}

	log.Info("topic provisioning complete", slog.Int("topic_count", len(bus.Registry)))
	return nil
}
