package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/zedaapi/eventspine/internal/bus"
	"github.com/zedaapi/eventspine/internal/observability"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, label string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, vec.WithLabelValues(label).Write(m))
	return m.GetCounter().GetValue()
}

func TestConsumerRunAcksAndNaks(t *testing.T) {
	srv := startEmbeddedNATS(t)
	log := testLogger()

	producer := connectedClient(t, srv)
	require.NoError(t, bus.EnsureAllStreams(context.Background(), producer.JetStream(), log))
	require.NoError(t, producer.PublishEnvelope(context.Background(), "conversation.messages", "k1", []byte("first")))
	require.NoError(t, producer.PublishEnvelope(context.Background(), "conversation.messages", "k2", []byte("second")))

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", registry)

	consumerCfg := bus.DefaultConfig()
	consumerCfg.URL = srv.ClientURL()
	consumerClient := bus.NewClient(consumerCfg, log, metrics)
	require.NoError(t, consumerClient.Connect(context.Background()))
	t.Cleanup(consumerClient.Close)

	cfg := bus.GroupConsumerConfig("consumer-test", "conversation.messages")
	consumer, err := bus.NewConsumer(context.Background(), consumerClient, "conversation.messages", cfg, log)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	acked := 0
	nakked := 0
	err = consumer.Run(ctx, func(_ context.Context, _ string, data []byte) bus.HandlerResult {
		if string(data) == "first" {
			acked++
			return bus.Ok()
		}
		nakked++
		if nakked >= 2 {
			cancel()
		}
		return bus.NakDelay(time.Millisecond)
	})
	require.NoError(t, err)

	require.Equal(t, float64(1), counterValue(t, metrics.BusAckTotal, "conversation.messages"))
	require.GreaterOrEqual(t, counterValue(t, metrics.BusNakTotal, "conversation.messages"), float64(1))
}
