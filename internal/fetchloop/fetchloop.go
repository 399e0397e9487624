// Package fetchloop implements C8: a single-threaded cooperative loop
// that downloads new bank documents for each configured fetch level,
// extracts their notifications, and ingests them idempotently.
package fetchloop

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"libeufin-nexus/internal/ebics"
	"libeufin-nexus/internal/iso20022"
	"libeufin-nexus/internal/iso20022/dialect"
	"libeufin-nexus/internal/store"
)

// EbicsClient is the subset of ebicsclient.Client the fetch loop calls.
type EbicsClient interface {
	Fetch(ctx context.Context, level ebics.FetchLevel, from, to time.Time) (ebics.OrderType, []byte, error)
}

// Config holds the fetch loop's per-account parameters.
type Config struct {
	Currency     string
	Frequency    time.Duration
	Levels       []ebics.FetchLevel
	Dialect      dialect.Dialect
	AccountPayto string
}

// Loop is the C8 worker: a single fetch-and-ingest cycle, driven
// repeatedly by internal/scheduler (spec §4.10).
type Loop struct {
	db     *store.DB
	client EbicsClient
	cfg    Config

	mu       sync.Mutex
	lastTick time.Time
	lastErr  error
}

// New constructs a fetch Loop.
func New(db *store.DB, client EbicsClient, cfg Config) *Loop {
	return &Loop{db: db, client: client, cfg: cfg}
}

// Frequency returns the configured tick interval, read by the scheduler.
func (l *Loop) Frequency() time.Duration { return l.cfg.Frequency }

// RunOnce executes a single fetch cycle across every configured level
// (spec §4.8). Exported so `nexus ebics-fetch` can drive exactly one
// cycle directly.
func (l *Loop) RunOnce(ctx context.Context) {
	now := time.Now().UTC()
	var loopErr error

	for _, level := range l.cfg.Levels {
		select {
		case <-ctx.Done():
			l.recordTick(ctx.Err())
			return
		default:
		}
		if err := l.fetchLevel(ctx, level, now); err != nil {
			slog.Error("fetchloop: level failed", "level", level, "error", err)
			loopErr = err
		}
	}
	l.recordTick(loopErr)
}

func (l *Loop) fetchLevel(ctx context.Context, level ebics.FetchLevel, now time.Time) error {
	from, err := store.HighWaterMark(ctx, l.db, string(level))
	if err != nil {
		return err
	}

	_, docBytes, err := l.client.Fetch(ctx, level, from, now)
	if err != nil {
		return err
	}
	if docBytes == nil {
		// No new data for this level; still advance the mark so the loop
		// doesn't re-request an empty range forever (spec §4.8).
		return store.AdvanceHighWaterMark(ctx, l.db, string(level), now)
	}

	notifications, err := iso20022.Extract(docBytes, l.cfg.Currency, l.cfg.Dialect)
	if err != nil {
		// XmlError::Shape -- stop here without advancing the mark so an
		// operator fix can be retried on the next cycle (spec §7).
		return err
	}

	for _, n := range notifications {
		if err := store.Ingest(ctx, l.db, l.cfg.AccountPayto, n); err != nil {
			return err
		}
	}

	return store.AdvanceHighWaterMark(ctx, l.db, string(level), now)
}

func (l *Loop) recordTick(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastTick = time.Now()
	l.lastErr = err
}

// Health reports the loop's last tick time and last error. cmd/nexus
// reads it after a one-shot cycle; internal/scheduler does not read it.
func (l *Loop) Health() (lastTick time.Time, lastErr error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastTick, l.lastErr
}
