package bootstrap_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zedaapi/eventspine/internal/bootstrap"
	"github.com/zedaapi/eventspine/internal/bus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func startEmbeddedNATS(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	}
	srv, err := natsserver.NewServer(opts)
	require.NoError(t, err)
	srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready for connections")
	}
	t.Cleanup(func() {
		srv.Shutdown()
		srv.WaitForShutdown()
	})
	return srv
}

func TestProvisionEnsuresEveryStream(t *testing.T) {
	srv := startEmbeddedNATS(t)
	cfg := bus.DefaultConfig()
	cfg.URL = srv.ClientURL()
	client := bus.NewClient(cfg, testLogger(), nil)
	t.Cleanup(client.Close)

	err := bootstrap.Provision(context.Background(), client, testLogger(), bootstrap.Options{
		MaxAttempts: 3,
		RetryDelay:  10 * time.Millisecond,
	})
	require.NoError(t, err)

	for _, topic := range bus.Registry {
		_, err := client.JetStream().Stream(context.Background(), bus.StreamName(topic.Name))
		assert.NoError(t, err, topic.Name)
	}
}

func TestProvisionRetriesThenFailsWhenBusNeverComesUp(t *testing.T) {
	cfg := bus.DefaultConfig()
	cfg.URL = "nats://127.0.0.1:1" // nothing listening
	cfg.ConnectTimeout = 50 * time.Millisecond
	client := bus.NewClient(cfg, testLogger(), nil)
	t.Cleanup(client.Close)

	err := bootstrap.Provision(context.Background(), client, testLogger(), bootstrap.Options{
		MaxAttempts: 2,
		RetryDelay:  10 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestProvisionRespectsContextCancellation(t *testing.T) {
	cfg := bus.DefaultConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.ConnectTimeout = 50 * time.Millisecond
	client := bus.NewClient(cfg, testLogger(), nil)
	t.Cleanup(client.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bootstrap.Provision(ctx, client, testLogger(), bootstrap.Options{
		MaxAttempts: 5,
		RetryDelay:  time.Second,
	})
	assert.Error(t, err)
}
