package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zedaapi/eventspine/internal/bus"
	"github.com/zedaapi/eventspine/internal/dlqstore"
	"github.com/zedaapi/eventspine/internal/envelope"
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

func connectedPublisher(t *testing.T, srv *natsserver.Server) *bus.Client {
	t.Helper()
	cfg := bus.DefaultConfig()
	cfg.URL = srv.ClientURL()
	client := bus.NewClient(cfg, testLogger(), nil)
	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, bus.EnsureAllStreams(context.Background(), client.JetStream(), testLogger()))
	t.Cleanup(client.Close)
	return client
}

func routerFor(h *DLQHandler) chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestDLQStatsReturnsStoreTotals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"dimension", "key", "cnt"}).
		AddRow("topic", "conversation.messages.dlq", 2).
		AddRow("failure_type", "validation_error", 2)
	mock.ExpectQuery("SELECT dimension, key, cnt FROM").WillReturnRows(rows)

	store := dlqstore.NewTestStore(mock)
	h := NewDLQHandler(store, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/dlq/stats", nil)
	rec := httptest.NewRecorder()
	routerFor(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"conversation.messages.dlq":2`)
	assert.Contains(t, rec.Body.String(), `"total_records":2`)
}

func TestDLQGetEventNotFoundReturns404(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM dlq_records WHERE event_id").
		WithArgs(eventID).
		WillReturnError(dlqstore.ErrNotFound)

	store := dlqstore.NewTestStore(mock)
	h := NewDLQHandler(store, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/dlq/conversation.messages.dlq/"+eventID.String(), nil)
	rec := httptest.NewRecorder()
	routerFor(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDLQGetEventInvalidIDReturns400(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := dlqstore.NewTestStore(mock)
	h := NewDLQHandler(store, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/dlq/conversation.messages.dlq/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	routerFor(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDLQRetryRepublishesAndDiscardsOldRecord(t *testing.T) {
	srv := startEmbeddedNATS(t)
	publisher := connectedPublisher(t, srv)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	env := envelope.New(envelope.EventMessageReceived, envelope.MessageReceived{
		MessageID: "msg1",
		FromPhone: "15551234567",
	}, 3)
	raw, err := envelope.Encode(env)
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{
		"id", "event_id", "topic", "event_type", "failure_type", "attempt_count",
		"error_details", "raw_envelope", "discarded", "moved_to_dlq_at", "created_at",
	}).AddRow(int64(1), env.EventID, "conversation.messages.dlq", "MessageReceived", "external_service_error", 3,
		"timeout", json.RawMessage(raw), false, time.Now(), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM dlq_records WHERE event_id").
		WithArgs(env.EventID).
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE dlq_records SET discarded").
		WithArgs(env.EventID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := dlqstore.NewTestStore(mock)
	h := NewDLQHandler(store, publisher, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/dlq/conversation.messages.dlq/"+env.EventID.String()+"/retry", nil)
	rec := httptest.NewRecorder()
	routerFor(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "conversation.messages")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDLQDiscardMarksRecordDiscarded(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID := uuid.New()
	mock.ExpectExec("UPDATE dlq_records SET discarded").
		WithArgs(eventID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := dlqstore.NewTestStore(mock)
	h := NewDLQHandler(store, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/dlq/conversation.messages.dlq/"+eventID.String()+"/discard", nil)
	rec := httptest.NewRecorder()
	routerFor(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
