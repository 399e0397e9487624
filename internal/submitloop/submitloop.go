// Package submitloop implements C7: a single-threaded cooperative loop
// that picks up unsubmitted initiated payments, builds and uploads a
// pain.001 document for each, and records the outcome.
package submitloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"libeufin-nexus/internal/ebics"
	"libeufin-nexus/internal/iso20022"
	"libeufin-nexus/internal/store"
)

// BatchSize bounds how many unsubmitted rows a single tick picks up, the
// cfg.submit.BATCH constant spec §4.7's pseudocode refers to.
const BatchSize = 50

// EbicsClient is the subset of ebicsclient.Client the submit loop calls.
type EbicsClient interface {
	UploadCCT(ctx context.Context, pain001 []byte) (orderID string, err error)
}

// Config holds the submit loop's per-account parameters.
type Config struct {
	Currency     string
	Frequency    time.Duration
	DebtorIBAN   string
	DebtorName   string
	DebtorBIC    string
	AccountPayto string // not read by the submit loop; its store calls take no account
}

// Loop is the C7 worker: a single fetch-and-process cycle, driven
// repeatedly by internal/scheduler, which owns the ticker, shutdown
// signal and panic recovery for every supervised task (spec §4.10).
type Loop struct {
	db     *store.DB
	client EbicsClient
	cfg    Config

	mu       sync.Mutex
	lastTick time.Time
	lastErr  error
}

// New constructs a submit Loop.
func New(db *store.DB, client EbicsClient, cfg Config) *Loop {
	return &Loop{db: db, client: client, cfg: cfg}
}

// Frequency returns the configured tick interval, read by the scheduler.
func (l *Loop) Frequency() time.Duration { return l.cfg.Frequency }

// RunOnce executes a single submit cycle: take_unsubmitted, then for
// each row build pain.001, upload, and mark the outcome (spec §4.7).
// Exported so `nexus ebics-submit` can drive exactly one cycle directly.
func (l *Loop) RunOnce(ctx context.Context) {
	rows, err := store.TakeUnsubmitted(ctx, l.db, l.cfg.Currency, BatchSize)
	l.recordTick(err)
	if err != nil {
		slog.Error("submitloop: take_unsubmitted failed", "error", err)
		return
	}

	for _, row := range rows {
		select {
		case <-ctx.Done():
			return
		default:
		}
		l.submitOne(ctx, row)
	}
}

func (l *Loop) submitOne(ctx context.Context, row store.InitiatedPayment) {
	credit, err := iso20022.ParsePayTo(row.CreditPaytoURI)
	if err != nil {
		l.fail(ctx, row.ID, store.PermanentFailure, err)
		return
	}

	pain, err := iso20022.BuildPain001(iso20022.Pain001Input{
		MessageID:    row.RequestUID,
		EndToEndID:   row.EndToEndID,
		CreationTime: time.Now(),
		DebtorIBAN:   l.cfg.DebtorIBAN,
		DebtorName:   l.cfg.DebtorName,
		DebtorBIC:    l.cfg.DebtorBIC,
		Amount:       row.Amount,
		CreditPayto:  credit,
		Subject:      row.Subject,
	})
	if err != nil {
		l.fail(ctx, row.ID, store.PermanentFailure, err)
		return
	}

	if _, err := l.client.UploadCCT(ctx, pain); err != nil {
		var ebicsErr *ebics.Error
		if errors.As(err, &ebicsErr) && ebicsErr.Recoverable() {
			l.fail(ctx, row.ID, store.TransientFailure, err)
		} else {
			l.fail(ctx, row.ID, store.PermanentFailure, err)
		}
		return
	}

	if err := store.MarkSubmission(ctx, l.db, row.ID, store.Success, ""); err != nil {
		slog.Error("submitloop: mark_submission(success) failed", "initiated_id", row.ID, "error", err)
	}
}

func (l *Loop) fail(ctx context.Context, id int64, state store.SubmissionState, cause error) {
	slog.Warn("submitloop: payment submission failed", "initiated_id", id, "state", state, "error", cause)
	if err := store.MarkSubmission(ctx, l.db, id, state, cause.Error()); err != nil {
		slog.Error("submitloop: mark_submission failed", "initiated_id", id, "error", err)
	}
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
