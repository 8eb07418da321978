package dlqstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zedaapi/eventspine/internal/envelope"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newWithConn(mock), mock
}

func TestStoreRecordInsertsEnvelope(t *testing.T) {
	store, mock := newMockStore(t)

	env := envelope.New(envelope.EventMessageReceived, envelope.MessageReceived{
		MessageID: "msg1",
		FromPhone: "15551234567",
	}, 3)

	mock.ExpectExec("INSERT INTO dlq_records").
		WithArgs(env.EventID, "conversation.messages", "MessageReceived", "external_service_error", env.AttemptCount, "timeout", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.Record(context.Background(), "conversation.messages", env, "external_service_error", "timeout")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetReturnsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	eventID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM dlq_records WHERE event_id").
		WithArgs(eventID).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), eventID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDiscardNoRowsReturnsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	eventID := uuid.New()
	mock.ExpectExec("UPDATE dlq_records SET discarded").
		WithArgs(eventID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.Discard(context.Background(), eventID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListReturnsRecords(t *testing.T) {
	store, mock := newMockStore(t)

	id1 := uuid.New()
	rows := pgxmock.NewRows([]string{
		"id", "event_id", "topic", "event_type", "failure_type", "attempt_count",
		"error_details", "raw_envelope", "discarded", "moved_to_dlq_at", "created_at",
	}).AddRow(int64(1), id1, "conversation.messages", "MessageReceived", "validation_error", 3,
		"bad payload", []byte(`{}`), false, time.Now(), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM dlq_records").
		WithArgs("conversation.messages", 50, 0).
		WillReturnRows(rows)

	records, err := store.List(context.Background(), "conversation.messages", 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id1, records[0].EventID)
	assert.Equal(t, "validation_error", records[0].FailureType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
