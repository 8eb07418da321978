package bus

import (
	"strings"
	"time"
)

// Topic describes one entry in the topic registry: a logical conversation
// or system topic realized as a JetStream stream, keyed by subject.
type Topic struct {
	Name      string        // logical topic name, e.g. "conversation.messages"
	Role      string        // human description
	MaxAge    time.Duration // retention
	MaxBytes  int64
	Keyed     bool // true if publishers must supply a partition key (phone number)
}

// Registry lists every topic from the topic registry, in the order they
// should be provisioned.
var Registry = []Topic{
	{Name: "conversation.messages", Role: "primary inbound", MaxAge: 7 * 24 * time.Hour, MaxBytes: 10 << 30, Keyed: true},
	{Name: "conversation.interactions", Role: "interactive replies", MaxAge: 7 * 24 * time.Hour, MaxBytes: 5 << 30, Keyed: true},
	{Name: "conversation.responses", Role: "outbound queue", MaxAge: 7 * 24 * time.Hour, MaxBytes: 5 << 30, Keyed: true},
	{Name: "conversation.failures", Role: "terminal failures", MaxAge: 30 * 24 * time.Hour, MaxBytes: 5 << 30, Keyed: false},
	{Name: "conversation.messages.retry", Role: "retry buffer", MaxAge: 24 * time.Hour, MaxBytes: 2 << 30, Keyed: true},
	{Name: "conversation.interactions.retry", Role: "retry buffer", MaxAge: 24 * time.Hour, MaxBytes: 1 << 30, Keyed: true},
	{Name: "conversation.responses.retry", Role: "retry buffer", MaxAge: 24 * time.Hour, MaxBytes: 2 << 30, Keyed: true},
	{Name: "conversation.messages.dlq", Role: "dead letter", MaxAge: 90 * 24 * time.Hour, MaxBytes: 5 << 30, Keyed: false},
	{Name: "conversation.interactions.dlq", Role: "dead letter", MaxAge: 90 * 24 * time.Hour, MaxBytes: 5 << 30, Keyed: false},
	{Name: "conversation.responses.dlq", Role: "dead letter", MaxAge: 90 * 24 * time.Hour, MaxBytes: 5 << 30, Keyed: false},
	{Name: "system.metrics", Role: "operational", MaxAge: 7 * 24 * time.Hour, MaxBytes: 1 << 30, Keyed: false},
	{Name: "system.health", Role: "operational", MaxAge: 24 * time.Hour, MaxBytes: 256 << 20, Keyed: false},
}

// StreamName derives a JetStream-legal stream name from a topic name:
// JetStream stream names may not contain dots, so "conversation.messages"
// becomes "CONVERSATION_MESSAGES".
func StreamName(topic string) string {
	return strings.ToUpper(strings.ReplaceAll(topic, ".", "_"))
}

// SubjectWildcard is the subject pattern a topic's stream is bound to.
func SubjectWildcard(topic string) string {
	return topic + ".>"
}

// Subject returns the concrete subject a given envelope is published on.
// Keyed topics are partitioned by the supplied key (the user's phone
// number); unkeyed topics publish under a fixed "_" subtopic so every
// record for that topic still lands under the stream's wildcard.
func Subject(topic, key string) string {
	if key == "" {
		key = "_"
	}
	return topic + "." + key
}

// RetryTopic returns the retry topic for a primary conversation topic, and
// ok=false if the topic has no retry topic (failures/dlq/system topics).
// conversation.responses has its own retry topic so the outbound
// dispatcher's transient failures transit responses -> .retry -> .dlq the
// same way inbound processing failures do.
func RetryTopic(topic string) (string, bool) {
	switch topic {
	case "conversation.messages":
		return "conversation.messages.retry", true
	case "conversation.interactions":
		return "conversation.interactions.retry", true
	case "conversation.responses":
		return "conversation.responses.retry", true
	}
	return "", false
}

// DLQTopic returns the dead-letter topic for a primary conversation topic
// (including its own retry topic), and ok=false if none exists.
func DLQTopic(topic string) (string, bool) {
	switch topic {
	case "conversation.messages", "conversation.messages.retry":
		return "conversation.messages.dlq", true
	case "conversation.interactions", "conversation.interactions.retry":
		return "conversation.interactions.dlq", true
	case "conversation.responses", "conversation.responses.retry":
		return "conversation.responses.dlq", true
	}
	return "", false
}
