package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/0001_dlq_records.sql
var dlqRecordsDDL string

// EnsureSchema creates the tables this service owns if they don't already
// exist. Safe to call on every bootstrap run.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, dlqRecordsDDL); err != nil {
		return fmt.Errorf("ensure dlq_records schema: %w", err)
	}
	return nil
}
