package router

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zedaapi/eventspine/internal/envelope"
	"github.com/zedaapi/eventspine/internal/observability"
)

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
}

type publishCall struct {
	topic string
	key   string
	env   envelope.Envelope
}

func (f *fakePublisher) PublishEnvelope(_ context.Context, topic, key string, data []byte) error {
	env, err := envelope.Decode(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, publishCall{topic: topic, key: key, env: env})
	return nil
}

func newTestRouter(pub *fakePublisher) *Router {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	metrics := observability.NewMetrics("test_router", prometheus.NewRegistry())
	return New(pub, log, metrics)
}

func baseMessageEnvelope(maxAttempts int) envelope.Envelope {
	return envelope.New(envelope.EventMessageReceived, envelope.MessageReceived{
		MessageID: "test123",
		FromPhone: "1234567890",
	}, maxAttempts)
}

func TestRouteSuccessCommitsWithoutRepublish(t *testing.T) {
	pub := &fakePublisher{}
	r := newTestRouter(pub)

	err := r.Route(context.Background(), "conversation.messages", baseMessageEnvelope(3), "1234567890", OutcomeSuccess())
	require.NoError(t, err)
	assert.Empty(t, pub.calls)
}

func TestRouteRetryRepublishesWithIncrementedAttempt(t *testing.T) {
	pub := &fakePublisher{}
	r := newTestRouter(pub)

	env := baseMessageEnvelope(3)
	err := r.Route(context.Background(), "conversation.messages", env, "1234567890", OutcomeRetry(&ExternalServiceError{Cause: errors.New("boom")}))
	require.NoError(t, err)

	require.Len(t, pub.calls, 1)
	assert.Equal(t, "conversation.messages.retry", pub.calls[0].topic)
	assert.Equal(t, env.EventID, pub.calls[0].env.EventID)
	assert.Equal(t, 2, pub.calls[0].env.AttemptCount)
}

func TestRouteRetryAtCeilingGoesDeadWithFailureEvent(t *testing.T) {
	pub := &fakePublisher{}
	r := newTestRouter(pub)

	env := baseMessageEnvelope(1) // attempt_count=1 == max_attempts=1
	cause := &ExternalServiceError{Cause: errors.New("still failing")}
	err := r.Route(context.Background(), "conversation.messages", env, "1234567890", OutcomeRetry(cause))
	require.NoError(t, err)

	require.Len(t, pub.calls, 2)
	assert.Equal(t, "conversation.messages.dlq", pub.calls[0].topic)
	assert.Equal(t, 1, pub.calls[0].env.AttemptCount)
	assert.Equal(t, "conversation.failures", pub.calls[1].topic)

	failed, ok := pub.calls[1].env.Data.(envelope.MessageFailed)
	require.True(t, ok)
	assert.Equal(t, envelope.FailureExternalService, failed.FailureType)
	assert.Equal(t, "test123", failed.MessageID)
	assert.Equal(t, 1, failed.AttemptCount)
	assert.False(t, failed.FailedAt.IsZero())
}

func TestRouteDeadSerializationNeverRetried(t *testing.T) {
	pub := &fakePublisher{}
	r := newTestRouter(pub)

	env := baseMessageEnvelope(3)
	serErr := &envelope.SerializationError{Reason: "unknown event_type"}
	err := r.Route(context.Background(), "conversation.messages", env, "1234567890", OutcomeDead(serErr))
	require.NoError(t, err)

	require.Len(t, pub.calls, 2)
	failed := pub.calls[1].env.Data.(envelope.MessageFailed)
	assert.Equal(t, envelope.FailureSerialization, failed.FailureType)
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   Status
	}{
		{"ok", 200, Success},
		{"rate limited", 429, Retry},
		{"server error", 503, Retry},
		{"bad request", 400, Dead},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyHTTPStatus(tc.status, errors.New("x"))
			assert.Equal(t, tc.want, got.Status)
		})
	}
}
