package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned by operations addressing a row by id when no
// such row exists.
var ErrNotFound = errors.New("store: not found")

// ErrTerminalState is returned by MarkSubmission when the row has
// already reached success or permanent_failure, the two states
// mark_submission never transitions out of (spec §4.6).
var ErrTerminalState = errors.New("store: initiated payment already in a terminal state")

// DeriveEndToEndID deterministically derives a pain.001 EndToEndId from
// an initiated payment's own monotonic id, so the bank's camt echo of it
// can be matched back to this row without a second lookup table (spec
// §3's "end_to_end_id is derived from id deterministically").
func DeriveEndToEndID(id int64) string {
	return fmt.Sprintf("NEXUS%020d", id)
}

// InsertInitiated inserts a new initiated payment, keyed unique on
// RequestUID. A replay with the same RequestUID is not an error: it
// returns the original row's id and end-to-end id unchanged (spec
// §4.6, §8 S1's "re-POST same body returns the same row_id").
func InsertInitiated(ctx context.Context, db *DB, p InitiatedPayment) (InsertInitiatedResult, error) {
	tx, err := db.BeginSerializable(ctx)
	if err != nil {
		return InsertInitiatedResult{}, fmt.Errorf("store: insert_initiated: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	id, existed, err := insertInitiatedTx(ctx, tx, p)
	if err != nil {
		return InsertInitiatedResult{}, err
	}

	result := InsertInitiatedResult{ID: id, EndToEndID: DeriveEndToEndID(id)}
	if existed {
		result.Outcome = InsertInitiatedDuplicate
	} else {
		result.Outcome = InsertInitiatedCreated
	}

	if err := tx.Commit(ctx); err != nil {
		return InsertInitiatedResult{}, fmt.Errorf("store: insert_initiated: commit: %w", err)
	}
	return result, nil
}

// insertInitiatedTx is the transactional core InsertInitiated and
// BounceIncoming both use (the latter needs a refund row created in the
// same transaction as the bounce flag flip, per spec §4.6's atomicity
// requirement on bounce_incoming).
func insertInitiatedTx(ctx context.Context, tx pgx.Tx, p InitiatedPayment) (id int64, existed bool, err error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO initiated_payments
			(amount_currency, amount_value, amount_fraction, credit_payto_uri, subject, request_uid, end_to_end_id)
		VALUES ($1, $2, $3, $4, $5, $6, '')
		ON CONFLICT (request_uid) DO NOTHING
		RETURNING id
	`, p.Amount.Currency, p.Amount.Value, p.Amount.Fraction, p.CreditPaytoURI, p.Subject, p.RequestUID)

	if err := row.Scan(&id); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, false, fmt.Errorf("store: insert_initiated: %w", err)
		}
		existingRow := tx.QueryRow(ctx, `SELECT id FROM initiated_payments WHERE request_uid = $1`, p.RequestUID)
		if err := existingRow.Scan(&id); err != nil {
			return 0, false, fmt.Errorf("store: insert_initiated: lookup existing: %w", err)
		}
		return id, true, nil
	}

	endToEndID := DeriveEndToEndID(id)
	if _, err := tx.Exec(ctx, `UPDATE initiated_payments SET end_to_end_id = $1 WHERE id = $2`, endToEndID, id); err != nil {
		return 0, false, fmt.Errorf("store: insert_initiated: set end_to_end_id: %w", err)
	}
	return id, false, nil
}

// GetInitiatedByRequestUID looks up an initiated payment by its
// idempotency key, used by the HTTP façade to detect a conflicting
// replay (same request_uid, different body) and answer it with 409
// rather than silently accepting the first body seen (spec §4.9, §8 S1).
func GetInitiatedByRequestUID(ctx context.Context, db *DB, requestUID string) (InitiatedPayment, error) {
	row := db.QueryRow(ctx, `
		SELECT id, amount_currency, amount_value, amount_fraction, credit_payto_uri, subject,
		       request_uid, end_to_end_id, created_at, submitted
		FROM initiated_payments WHERE request_uid = $1
	`, requestUID)
	var p InitiatedPayment
	if err := row.Scan(&p.ID, &p.Amount.Currency, &p.Amount.Value, &p.Amount.Fraction,
		&p.CreditPaytoURI, &p.Subject, &p.RequestUID, &p.EndToEndID, &p.CreatedAt, &p.Submitted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InitiatedPayment{}, ErrNotFound
		}
		return InitiatedPayment{}, fmt.Errorf("store: get_initiated_by_request_uid: %w", err)
	}
	return p, nil
}

// TakeUnsubmitted returns every initiated payment in an actionable state
// (unsubmitted or transient_failure), oldest-id-first, for the submit
// loop's batch pickup (spec §4.7).
func TakeUnsubmitted(ctx context.Context, db *DB, currency string, limit int) ([]InitiatedPayment, error) {
	rows, err := db.Query(ctx, `
		SELECT id, amount_currency, amount_value, amount_fraction, credit_payto_uri, subject,
		       request_uid, end_to_end_id, created_at, submitted
		FROM initiated_payments
		WHERE amount_currency = $1 AND submitted IN ('unsubmitted', 'transient_failure')
		ORDER BY id
		LIMIT $2
	`, currency, limit)
	if err != nil {
		return nil, fmt.Errorf("store: take_unsubmitted: %w", err)
	}
	defer rows.Close()

	var out []InitiatedPayment
	for rows.Next() {
		var p InitiatedPayment
		if err := rows.Scan(&p.ID, &p.Amount.Currency, &p.Amount.Value, &p.Amount.Fraction,
			&p.CreditPaytoURI, &p.Subject, &p.RequestUID, &p.EndToEndID, &p.CreatedAt, &p.Submitted); err != nil {
			return nil, fmt.Errorf("store: take_unsubmitted: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSubmission applies a one-directional state transition to an
// initiated payment (spec §4.6): unsubmitted/transient_failure can move
// to any state; success and permanent_failure are terminal.
func MarkSubmission(ctx context.Context, db *DB, id int64, state SubmissionState, failureMessage string) error {
	tx, err := db.BeginSerializable(ctx)
	if err != nil {
		return fmt.Errorf("store: mark_submission: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var current SubmissionState
	row := tx.QueryRow(ctx, `SELECT submitted FROM initiated_payments WHERE id = $1 FOR UPDATE`, id)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("store: mark_submission: lookup: %w", err)
	}
	if current.Terminal() {
		return ErrTerminalState
	}

	var msg any
	if failureMessage != "" {
		msg = failureMessage
	}
	_, err = tx.Exec(ctx, `
		UPDATE initiated_payments
		SET submitted = $1,
		    failure_message = $2,
		    submitted_at = CASE WHEN $1 IN ('success', 'permanent_failure') THEN NOW() ELSE submitted_at END
		WHERE id = $3
	`, state, msg, id)
	if err != nil {
		return fmt.Errorf("store: mark_submission: update: %w", err)
	}

	return tx.Commit(ctx)
}
