// Package envelope defines the event envelope that travels on every bus
// topic and the closed set of typed payloads it can carry.
package envelope

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the envelope's data payload.
type EventType string

const (
	EventMessageReceived     EventType = "MessageReceived"
	EventInteractionReceived EventType = "InteractionReceived"
	EventResponseReady       EventType = "ResponseReady"
	EventMessageFailed       EventType = "MessageFailed"
)

// SchemaVersion is the current version stamped on newly created envelopes.
const SchemaVersion = "1.0"

// Envelope is the record shape carried by every conversation topic.
// event_id is immutable across retries: the same id appears on the
// original, retry, and DLQ publications of one logical event.
type Envelope struct {
	EventID      uuid.UUID         `json:"event_id"`
	Timestamp    time.Time         `json:"timestamp"`
	EventType    EventType         `json:"event_type"`
	Version      string            `json:"version"`
	Data         any               `json:"data"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	AttemptCount int               `json:"attempt_count"`
	MaxAttempts  int               `json:"max_attempts"`
}

// New builds an envelope around data with a fresh id and timestamp,
// attempt_count defaulted to 1 per the envelope invariants.
func New(eventType EventType, data any, maxAttempts int) Envelope {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Envelope{
		EventID:      uuid.New(),
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		Version:      SchemaVersion,
		Data:         data,
		AttemptCount: 1,
		MaxAttempts:  maxAttempts,
	}
}

// WithMetadataHop returns a copy of env with a provenance entry recorded:
// processed_by and processing_timestamp, plus any free-form hop info.
func (e Envelope) WithMetadataHop(processedBy string, extra map[string]string) Envelope {
	meta := make(map[string]string, len(e.Metadata)+len(extra)+2)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	for k, v := range extra {
		meta[k] = v
	}
	meta["processed_by"] = processedBy
	meta["processing_timestamp"] = time.Now().UTC().Format(time.RFC3339)
	e.Metadata = meta
	return e
}

// NextAttempt returns a copy of env with attempt_count incremented by one,
// for republishing to a retry topic. The event_id is preserved.
func (e Envelope) NextAttempt() Envelope {
	e.AttemptCount++
	return e
}

// ExceedsMaxAttempts reports whether env has reached its attempt ceiling.
func (e Envelope) ExceedsMaxAttempts() bool {
	return e.AttemptCount >= e.MaxAttempts
}
