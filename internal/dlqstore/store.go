// Package dlqstore persists an audit copy of every envelope that lands on
// a dead-letter topic. It is a read-side projection for operator
// inspection; the dlq topic itself remains the bus-level source of truth.
package dlqstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zedaapi/eventspine/internal/envelope"
)

var ErrNotFound = errors.New("dlqstore: record not found")

// Record is one audited dead-letter entry.
type Record struct {
	ID           int64
	EventID      uuid.UUID
	Topic        string
	EventType    string
	FailureType  string
	AttemptCount int
	ErrorDetails string
	RawEnvelope  json.RawMessage
	Discarded    bool
	MovedToDLQAt time.Time
	CreatedAt    time.Time
}

// dbtx is the subset of *pgxpool.Pool the store needs, narrow enough that
// tests can substitute a pgxmock pool without a live database.
type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a pgx-backed DLQ audit repository.
type Store struct {
	pool dbtx
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// newWithConn is used by tests to inject a mock pool.
func newWithConn(pool dbtx) *Store {
	return &Store{pool: pool}
}

// NewTestStore builds a Store over any pool satisfying dbtx (in practice a
// pgxmock pool), for use by other packages' tests that need a Store
// without a live database.
func NewTestStore(pool dbtx) *Store {
	return &Store{pool: pool}
}

// Record inserts (or, on a re-delivered duplicate, updates) the audit copy
// of an envelope that reached topic's dead-letter sibling. Idempotent on
// event_id so at-least-once redelivery of the same DLQ message does not
// create duplicate audit rows.
func (s *Store) Record(ctx context.Context, topic string, env envelope.Envelope, failureType, errorDetails string) error {
	raw, err := envelope.Encode(env)
	if err != nil {
		return fmt.Errorf("encode envelope for audit: %w", err)
	}

	query := `
		INSERT INTO dlq_records (
			event_id, topic, event_type, failure_type, attempt_count,
			error_details, raw_envelope, moved_to_dlq_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (event_id) DO UPDATE SET
			attempt_count = EXCLUDED.attempt_count,
			error_details = EXCLUDED.error_details,
			raw_envelope = EXCLUDED.raw_envelope,
			moved_to_dlq_at = NOW()`

	_, err = s.pool.Exec(ctx, query,
		env.EventID, topic, string(env.EventType), failureType, env.AttemptCount,
		errorDetails, raw,
	)
	if err != nil {
		return fmt.Errorf("insert dlq record: %w", err)
	}
	return nil
}

// Stats summarizes DLQ depth by topic and failure type.
type Stats struct {
	TotalRecords int
	ByTopic      map[string]int
	ByFailure    map[string]int
}

// GetStats returns aggregate counts across all audited records.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByTopic: map[string]int{}, ByFailure: map[string]int{}}

	query := `
		SELECT dimension, key, cnt FROM (
			SELECT 'topic' AS dimension, topic AS key, COUNT(*) AS cnt
			FROM dlq_records WHERE NOT discarded GROUP BY topic
			UNION ALL
			SELECT 'failure_type', failure_type, COUNT(*)
			FROM dlq_records WHERE NOT discarded GROUP BY failure_type
		) sub`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query dlq stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dimension, key string
		var cnt int
		if err := rows.Scan(&dimension, &key, &cnt); err != nil {
			return nil, err
		}
		switch dimension {
		case "topic":
			stats.ByTopic[key] = cnt
			stats.TotalRecords += cnt
		case "failure_type":
			stats.ByFailure[key] = cnt
		}
	}
	return stats, rows.Err()
}

// List returns a page of non-discarded records for one topic, newest first.
func (s *Store) List(ctx context.Context, topic string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, event_id, topic, event_type, failure_type, attempt_count,
		       error_details, raw_envelope, discarded, moved_to_dlq_at, created_at
		FROM dlq_records
		WHERE topic = $1 AND NOT discarded
		ORDER BY moved_to_dlq_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, topic, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list dlq records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.EventID, &r.Topic, &r.EventType, &r.FailureType,
			&r.AttemptCount, &r.ErrorDetails, &r.RawEnvelope, &r.Discarded,
			&r.MovedToDLQAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Get fetches one audited record by event_id.
func (s *Store) Get(ctx context.Context, eventID uuid.UUID) (*Record, error) {
	query := `
		SELECT id, event_id, topic, event_type, failure_type, attempt_count,
		       error_details, raw_envelope, discarded, moved_to_dlq_at, created_at
		FROM dlq_records WHERE event_id = $1`

	var r Record
	err := s.pool.QueryRow(ctx, query, eventID).Scan(&r.ID, &r.EventID, &r.Topic, &r.EventType,
		&r.FailureType, &r.AttemptCount, &r.ErrorDetails, &r.RawEnvelope, &r.Discarded,
		&r.MovedToDLQAt, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// Discard marks a record as operator-discarded; it stops counting toward
// Stats and List but is retained for history.
func (s *Store) Discard(ctx context.Context, eventID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE dlq_records SET discarded = TRUE WHERE event_id = $1`, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOlderThan purges discarded records past the audit retention
// window. Returns the number of rows removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dlq_records WHERE discarded AND moved_to_dlq_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
