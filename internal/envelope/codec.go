package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SerializationError is returned by Decode when a record's event_type is
// unrecognized or its data cannot be unmarshaled into the matching
// payload. The raw bytes are retained for diagnostics.
type SerializationError struct {
	Reason string
	Raw    []byte
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("envelope: %s", e.Reason)
}

// wireEnvelope is the canonical on-wire shape: fields in declaration order,
// data left as raw JSON until event_type selects how to decode it.
type wireEnvelope struct {
	EventID      string            `json:"event_id"`
	Timestamp    time.Time         `json:"timestamp"`
	EventType    EventType         `json:"event_type"`
	Version      string            `json:"version"`
	Data         json.RawMessage   `json:"data"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	AttemptCount int               `json:"attempt_count"`
	MaxAttempts  int               `json:"max_attempts"`
}

// Encode serializes env as canonical JSON: UTF-8, fields in declaration
// order, no trailing whitespace. Infallible for well-typed inputs.
func Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope data: %w", err)
	}
	wire := wireEnvelope{
		EventID:      env.EventID.String(),
		Timestamp:    env.Timestamp,
		EventType:    env.EventType,
		Version:      env.Version,
		Data:         data,
		Metadata:     env.Metadata,
		AttemptCount: env.AttemptCount,
		MaxAttempts:  env.MaxAttempts,
	}
	return json.Marshal(wire)
}

// Decode parses raw bytes into an Envelope, dispatching data into the
// payload type matching event_type. An unrecognized event_type, or a
// malformed envelope, yields a *SerializationError with raw retained.
func Decode(raw []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Envelope{}, &SerializationError{Reason: fmt.Sprintf("decode envelope: %v", err), Raw: raw}
	}

	eventID, err := uuid.Parse(wire.EventID)
	if err != nil {
		return Envelope{}, &SerializationError{Reason: fmt.Sprintf("parse event_id: %v", err), Raw: raw}
	}

	data, err := decodeData(wire.EventType, wire.Data)
	if err != nil {
		return Envelope{}, &SerializationError{Reason: err.Error(), Raw: raw}
	}

	return Envelope{
		EventID:      eventID,
		Timestamp:    wire.Timestamp,
		EventType:    wire.EventType,
		Version:      wire.Version,
		Data:         data,
		Metadata:     wire.Metadata,
		AttemptCount: wire.AttemptCount,
		MaxAttempts:  wire.MaxAttempts,
	}, nil
}

func decodeData(eventType EventType, raw json.RawMessage) (any, error) {
	switch eventType {
	case EventMessageReceived:
		var p MessageReceived
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal MessageReceived: %w", err)
		}
		return p, nil
	case EventInteractionReceived:
		var p InteractionReceived
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal InteractionReceived: %w", err)
		}
		return p, nil
	case EventResponseReady:
		var p ResponseReady
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal ResponseReady: %w", err)
		}
		return p, nil
	case EventMessageFailed:
		var p MessageFailed
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal MessageFailed: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported event_type %q", eventType)
	}
}
