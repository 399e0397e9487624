package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// HighWaterMark returns the last successfully-ingested timestamp for a
// fetch level, or the zero time if the level has never been fetched
// (spec §4.8's last_high_water_mark).
func HighWaterMark(ctx context.Context, db *DB, level string) (time.Time, error) {
	row := db.QueryRow(ctx, `SELECT marked_at FROM fetch_high_water_mark WHERE level = $1`, level)
	var t time.Time
	if err := row.Scan(&t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("store: high_water_mark: %w", err)
	}
	return t, nil
}

// AdvanceHighWaterMark records markedAt as the new high-water mark for
// level. Called only after a fetch range's notifications have all been
// committed, so a crash mid-ingestion re-runs the same range on the next
// cycle (spec §4.8's idempotency argument).
func AdvanceHighWaterMark(ctx context.Context, db *DB, level string, markedAt time.Time) error {
	tx, err := db.BeginSerializable(ctx)
	if err != nil {
		return fmt.Errorf("store: advance_high_water_mark: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO fetch_high_water_mark (level, marked_at) VALUES ($1, $2)
		ON CONFLICT (level) DO UPDATE SET marked_at = EXCLUDED.marked_at
	`, level, markedAt); err != nil {
		return fmt.Errorf("store: advance_high_water_mark: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: advance_high_water_mark: commit: %w", err)
	}
	return nil
}
