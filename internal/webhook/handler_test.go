package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zedaapi/eventspine/internal/locks"
)

type fakeBus struct {
	published []publishedMsg
}

type publishedMsg struct {
	topic string
	key   string
	data  []byte
}

func (f *fakeBus) PublishEnvelope(_ context.Context, topic, key string, data []byte) error {
	f.published = append(f.published, publishedMsg{topic: topic, key: key, data: data})
	return nil
}

type fakeDedupe struct {
	seen map[string]bool
}

func (f *fakeDedupe) Acquire(_ context.Context, key string, _ int) (locks.Lock, bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return nil, false, nil
	}
	f.seen[key] = true
	return nil, true, nil
}

func newTestHandler(bus *fakeBus, dedupe *fakeDedupe) *Handler {
	return &Handler{
		VerifyToken:  "secret-token",
		MaxBodyBytes: 1 << 20,
		MaxAttempts:  3,
		Bus:          bus,
		Dedupe:       dedupe,
		Log:          slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}
}

func TestVerifyHandshakeCorrectToken(t *testing.T) {
	h := newTestHandler(&fakeBus{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=abc123", nil)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", rec.Body.String())
}

func TestVerifyHandshakeWrongToken(t *testing.T) {
	h := newTestHandler(&fakeBus{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=abc123", nil)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIngestPublishesTextMessage(t *testing.T) {
	bus := &fakeBus{}
	h := newTestHandler(bus, &fakeDedupe{})

	body := `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "entry1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "15550001111", "phone_number_id": "123"},
			"messages": [{"from": "15551234567", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": "hi"}}]
		}}]}
	}`

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Ingest(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, bus.published, 1)
	assert.Equal(t, "conversation.messages", bus.published[0].topic)
	assert.Equal(t, "15551234567", bus.published[0].key)
}

func TestIngestSkipsDuplicateDelivery(t *testing.T) {
	bus := &fakeBus{}
	h := newTestHandler(bus, &fakeDedupe{})

	body := `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "entry1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "15550001111", "phone_number_id": "123"},
			"messages": [{"from": "15551234567", "id": "wamid.dup", "timestamp": "1700000000", "type": "text", "text": {"body": "hi"}}]
		}}]}
	}`

	req1 := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	h.Ingest(httptest.NewRecorder(), req1)

	req2 := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec2 := httptest.NewRecorder()
	h.Ingest(rec2, req2)

	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Len(t, bus.published, 1, "duplicate delivery must not republish")
}

func TestIngestCountsStatusesWithoutPublishing(t *testing.T) {
	bus := &fakeBus{}
	h := newTestHandler(bus, &fakeDedupe{})

	body := `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "entry1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "15550001111", "phone_number_id": "123"},
			"statuses": [{"id": "wamid.1", "status": "delivered", "timestamp": "1700000000", "recipient_id": "15551234567"}]
		}}]}
	}`

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Ingest(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, bus.published, "statuses[] must never be published as envelopes")
}

func TestIngestRejectsWrongObjectType(t *testing.T) {
	h := newTestHandler(&fakeBus{}, &fakeDedupe{})

	body := `{"object": "page", "entry": []}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Ingest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestRejectsMalformedJSON(t *testing.T) {
	h := newTestHandler(&fakeBus{}, &fakeDedupe{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()

	h.Ingest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestPublishesFailureForUnsupportedMessageTypeButPublishesRest(t *testing.T) {
	bus := &fakeBus{}
	h := newTestHandler(bus, &fakeDedupe{})

	body := `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "entry1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "15550001111", "phone_number_id": "123"},
			"messages": [
				{"from": "15551234567", "id": "wamid.unknown", "timestamp": "1700000000", "type": "unknown"},
				{"from": "15551234567", "id": "wamid.ok", "timestamp": "1700000000", "type": "text", "text": {"body": "hi"}}
			]
		}}]}
	}`

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Ingest(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, bus.published, 2)

	assert.Equal(t, "conversation.failures", bus.published[0].topic)
	assert.Equal(t, "15551234567", bus.published[0].key)
	var failure map[string]any
	require.NoError(t, json.Unmarshal(bus.published[0].data, &failure))
	data := failure["data"].(map[string]any)
	assert.Equal(t, "wamid.unknown", data["message_id"])
	assert.Equal(t, "ValidationError", data["failure_type"])
	assert.NotEmpty(t, data["failed_at"])

	assert.Equal(t, "conversation.messages", bus.published[1].topic)
}
