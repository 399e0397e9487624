package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// notifyChannel derives a valid, collision-resistant Postgres channel
// name for a (direction, account) pair. Account identifiers are payto
// URIs and may contain characters Postgres identifiers reject, so the
// channel name is built from a content hash rather than the raw string.
func notifyChannel(direction Direction, account string) string {
	h := sha256.Sum256([]byte(account))
	return fmt.Sprintf("nexus_%s_%s", direction, hex.EncodeToString(h[:])[:16])
}

// notify wakes any long-pollers subscribed to (direction, account).
// Called inside the same transaction as the row insert that triggered
// it, so LISTEN/NOTIFY delivery implies the row is already visible to
// subsequent SELECTs (spec §4.6).
func notify(ctx context.Context, tx pgx.Tx, direction Direction, account string) error {
	channel := notifyChannel(direction, account)
	_, err := tx.Exec(ctx, "SELECT pg_notify($1, '')", channel)
	return err
}

// Subscribe opens a dedicated connection LISTENing on (direction,
// account) and returns a channel that receives a value on every
// notification, plus a cancel func that closes the LISTEN connection,
// which ends the notifier goroutine and releases the connection. The
// returned channel is never closed, not even on cancel. This backs C10's
// subscribe/close control API (spec §4.10).
func Subscribe(ctx context.Context, db *DB, direction Direction, account string) (<-chan struct{}, func(), error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("store: subscribe: acquire conn: %w", err)
	}

	channel := notifyChannel(direction, account)
	if _, err := conn.Exec(ctx, "LISTEN \""+channel+"\""); err != nil {
		conn.Release()
		return nil, nil, fmt.Errorf("store: subscribe: listen: %w", err)
	}

	notifications := make(chan struct{}, 1)
	go func() {
		defer conn.Release()
		for {
			if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
				return
			}
			select {
			case notifications <- struct{}{}:
			default:
			}
		}
	}()

	cancel := func() {
		conn.Conn().Close(context.Background())
	}
	return notifications, cancel, nil
}
