package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"otp_forwarder_bot/internal/domain/otp"
)

// PostgresDedupRepository stores the dedup log in the otp_dedup_entries table.
// The serial id gives insertion order, so eviction removes the lowest ids first.
type PostgresDedupRepository struct {
	db         *sql.DB
	maxEntries int
	now        func() time.Time
}

func NewPostgresDedupRepository(db *sql.DB, maxEntries int) *PostgresDedupRepository {
	return &PostgresDedupRepository{db: db, maxEntries: maxEntries, now: time.Now}
}

func (r *PostgresDedupRepository) IsDuplicate(ctx context.Context, code, phone string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM otp_dedup_entries WHERE dedup_key = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, otp.DedupKey(code, phone)).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking dedup key: %w", err)
	}
	return exists, nil
}

func (r *PostgresDedupRepository) Record(ctx context.Context, code, phone string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	e := otp.NewDedupEntry(code, phone, at)
	insert := `INSERT INTO otp_dedup_entries (dedup_key, otp, mobile_number, observed_at)
               VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, insert, e.Key, e.OTP, e.MobileNumber, e.Timestamp); err != nil {
		return fmt.Errorf("error inserting dedup entry: %w", err)
	}

	if r.maxEntries > 0 {
		// Everything at or below the (max+1)-th newest id is evicted.
		evict := `DELETE FROM otp_dedup_entries
                  WHERE id <= (SELECT id FROM otp_dedup_entries ORDER BY id DESC OFFSET $1 LIMIT 1)`
		if _, err := tx.ExecContext(ctx, evict, r.maxEntries); err != nil {
			return fmt.Errorf("error evicting old dedup entries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dedup entry: %w", err)
	}
	return nil
}

func (r *PostgresDedupRepository) ClearOldDuplicates(ctx context.Context, maxAge time.Duration) (int, error) {
	query := `DELETE FROM otp_dedup_entries WHERE observed_at < $1`
	res, err := r.db.ExecContext(ctx, query, r.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("error clearing old dedup entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading affected rows: %w", err)
	}
	return int(n), nil
}

func (r *PostgresDedupRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM otp_dedup_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting dedup entries: %w", err)
	}
	return n, nil
}
