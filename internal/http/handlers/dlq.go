package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zedaapi/eventspine/internal/bus"
	"github.com/zedaapi/eventspine/internal/dlqstore"
	"github.com/zedaapi/eventspine/internal/envelope"
)

// DLQHandler serves operator endpoints over the dead-letter audit store: a
// read side for inspecting what landed on a topic's .dlq sibling, and a
// republish action that moves a record back onto its primary topic with a
// reset attempt count.
type DLQHandler struct {
	store     *dlqstore.Store
	publisher *bus.Client
	log       *slog.Logger
}

func NewDLQHandler(store *dlqstore.Store, publisher *bus.Client, log *slog.Logger) *DLQHandler {
	return &DLQHandler{
		store:     store,
		publisher: publisher,
		log:       log.With(slog.String("component", "dlq_handler")),
	}
}

// Register mounts the DLQ endpoints under r.
func (h *DLQHandler) Register(r chi.Router) {
	r.Route("/dlq", func(dr chi.Router) {
		dr.Get("/stats", h.getStats)
		dr.Get("/{topic}", h.listEvents)
		dr.Get("/{topic}/{eventId}", h.getEvent)
		dr.Post("/{topic}/{eventId}/retry", h.retryEvent)
		dr.Post("/{topic}/{eventId}/discard", h.discardEvent)
	})
}

type dlqStatsResponse struct {
	TotalRecords int            `json:"total_records"`
	ByTopic      map[string]int `json:"by_topic"`
	ByFailure    map[string]int `json:"by_failure_type"`
}

type dlqRecordResponse struct {
	EventID      string          `json:"event_id"`
	Topic        string          `json:"topic"`
	EventType    string          `json:"event_type"`
	FailureType  string          `json:"failure_type"`
	AttemptCount int             `json:"attempt_count"`
	ErrorDetails string          `json:"error_details"`
	Discarded    bool            `json:"discarded"`
	MovedToDLQAt time.Time       `json:"moved_to_dlq_at"`
	CreatedAt    time.Time       `json:"created_at"`
	RawEnvelope  json.RawMessage `json:"raw_envelope,omitempty"`
}

type dlqActionResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"event_id"`
	Message string `json:"message"`
}

func (h *DLQHandler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		h.log.Error("failed to get dlq stats", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to get dlq stats")
		return
	}
	respondJSON(w, http.StatusOK, dlqStatsResponse{
		TotalRecords: stats.TotalRecords,
		ByTopic:      stats.ByTopic,
		ByFailure:    stats.ByFailure,
	})
}

func (h *DLQHandler) listEvents(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.resolveDLQTopic(w, r)
	if !ok {
		return
	}

	limit := parseIntParam(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	offset := parseIntParam(r, "offset", 0)

	records, err := h.store.List(r.Context(), topic, limit, offset)
	if err != nil {
		h.log.Error("failed to list dlq records",
			slog.String("topic", topic), slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to list dlq records")
		return
	}

	resp := make([]dlqRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toDLQRecordResponse(rec, false))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *DLQHandler) getEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.parseEventID(w, r)
	if !ok {
		return
	}

	record, err := h.store.Get(r.Context(), eventID)
	if err != nil {
		h.respondStoreErr(w, eventID, "get", err)
		return
	}
	respondJSON(w, http.StatusOK, toDLQRecordResponse(*record, true))
}

func (h *DLQHandler) retryEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.parseEventID(w, r)
	if !ok {
		return
	}

	record, err := h.store.Get(r.Context(), eventID)
	if err != nil {
		h.respondStoreErr(w, eventID, "retry", err)
		return
	}

	env, err := envelope.Decode(record.RawEnvelope)
	if err != nil {
		h.log.Error("dlq record has undecodable envelope",
			slog.String("event_id", eventID.String()), slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "stored envelope could not be decoded")
		return
	}

	primaryTopic := primaryTopicFor(record.Topic)
	env.AttemptCount = 1
	data, err := envelope.Encode(env)
	if err != nil {
		h.log.Error("failed to re-encode envelope for retry",
			slog.String("event_id", eventID.String()), slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to re-encode envelope")
		return
	}

	if err := h.publisher.PublishEnvelope(r.Context(), primaryTopic, messageIdentity(env), data); err != nil {
		h.log.Error("failed to republish dlq record",
			slog.String("event_id", eventID.String()), slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to republish event")
		return
	}

	if err := h.store.Discard(r.Context(), eventID); err != nil {
		h.log.Warn("failed to mark retried record as discarded",
			slog.String("event_id", eventID.String()), slog.String("error", err.Error()))
	}

	h.log.Info("dlq record retried",
		slog.String("event_id", eventID.String()), slog.String("topic", primaryTopic))

	respondJSON(w, http.StatusOK, dlqActionResponse{
		Success: true,
		EventID: eventID.String(),
		Message: "event republished to " + primaryTopic,
	})
}

func (h *DLQHandler) discardEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.parseEventID(w, r)
	if !ok {
		return
	}

	if err := h.store.Discard(r.Context(), eventID); err != nil {
		h.respondStoreErr(w, eventID, "discard", err)
		return
	}

	h.log.Info("dlq record discarded", slog.String("event_id", eventID.String()))
	respondJSON(w, http.StatusOK, dlqActionResponse{
		Success: true,
		EventID: eventID.String(),
		Message: "event discarded",
	})
}

// --- helpers ---

func (h *DLQHandler) resolveDLQTopic(w http.ResponseWriter, r *http.Request) (string, bool) {
	topic := chi.URLParam(r, "topic")
	if _, ok := bus.DLQTopic(primaryTopicFor(topic)); !ok && !isDLQTopicName(topic) {
		respondError(w, http.StatusBadRequest, "unknown dlq topic")
		return "", false
	}
	return topic, true
}

func (h *DLQHandler) parseEventID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	eventID, err := uuid.Parse(chi.URLParam(r, "eventId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return uuid.UUID{}, false
	}
	return eventID, true
}

func (h *DLQHandler) respondStoreErr(w http.ResponseWriter, eventID uuid.UUID, action string, err error) {
	if errors.Is(err, dlqstore.ErrNotFound) {
		respondError(w, http.StatusNotFound, "dlq record not found")
		return
	}
	h.log.Error("dlq "+action+" failed",
		slog.String("event_id", eventID.String()), slog.String("error", err.Error()))
	respondError(w, http.StatusInternalServerError, "dlq "+action+" failed")
}

func isDLQTopicName(topic string) bool {
	for _, t := range bus.Registry {
		if t.Name == topic {
			return true
		}
	}
	return false
}

// primaryTopicFor strips the ".dlq" suffix so a retried record republishes
// to the primary topic rather than back onto the dead-letter stream.
func primaryTopicFor(dlqTopic string) string {
	const suffix = ".dlq"
	if len(dlqTopic) > len(suffix) && dlqTopic[len(dlqTopic)-len(suffix):] == suffix {
		return dlqTopic[:len(dlqTopic)-len(suffix)]
	}
	return dlqTopic
}

func messageIdentity(env envelope.Envelope) string {
	switch data := env.Data.(type) {
	case envelope.MessageReceived:
		return data.FromPhone
	case envelope.InteractionReceived:
		return data.FromPhone
	case envelope.ResponseReady:
		return data.ToPhone
	default:
		return ""
	}
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	valStr := r.URL.Query().Get(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func toDLQRecordResponse(rec dlqstore.Record, includeRaw bool) dlqRecordResponse {
	resp := dlqRecordResponse{
		EventID:      rec.EventID.String(),
		Topic:        rec.Topic,
		EventType:    rec.EventType,
		FailureType:  rec.FailureType,
		AttemptCount: rec.AttemptCount,
		ErrorDetails: rec.ErrorDetails,
		Discarded:    rec.Discarded,
		MovedToDLQAt: rec.MovedToDLQAt,
		CreatedAt:    rec.CreatedAt,
	}
	if includeRaw {
		resp.RawEnvelope = rec.RawEnvelope
	}
	return resp
}
