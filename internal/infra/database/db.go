package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// A single poll loop writes to the dedup table; a small pool is plenty.
const (
	defaultMaxOpenConns    = 4
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

const dedupSchema = `
CREATE TABLE IF NOT EXISTS otp_dedup_entries (
	id            BIGSERIAL PRIMARY KEY,
	dedup_key     TEXT        NOT NULL,
	otp           TEXT        NOT NULL,
	mobile_number TEXT        NOT NULL,
	observed_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS otp_dedup_entries_key_idx ON otp_dedup_entries (dedup_key);
CREATE INDEX IF NOT EXISTS otp_dedup_entries_observed_at_idx ON otp_dedup_entries (observed_at);
`

// NewPostgresConnection opens the database and pings it to ensure connectivity.
func NewPostgresConnection(ctx context.Context, dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// EnsureDedupSchema creates the dedup table and its indexes if they are missing.
func EnsureDedupSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, dedupSchema); err != nil {
		return fmt.Errorf("failed to create dedup schema: %w", err)
	}
	return nil
}
