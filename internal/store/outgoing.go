package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"libeufin-nexus/internal/iso20022"
)

// InsertOutgoing inserts a debit entry, idempotent by MessageID, and
// attempts reconciliation against an initiated payment by derived
// end-to-end id (spec §4.6). A newly inserted row whose subject parses
// as a talerable-outgoing WTID/exchange-URL pair is additionally
// recorded in talerable_outgoing within the same transaction.
func InsertOutgoing(ctx context.Context, db *DB, account string, p OutgoingPayment) (InsertOutgoingResult, error) {
	tx, err := db.BeginSerializable(ctx)
	if err != nil {
		return InsertOutgoingResult{}, fmt.Errorf("store: insert_outgoing: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var endToEndIDArg any
	if p.EndToEndID != "" {
		endToEndIDArg = p.EndToEndID
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO outgoing_payments
			(message_id, amount_currency, amount_value, amount_fraction, subject, executed_at, credit_payto, end_to_end_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING row_id
	`, p.MessageID, p.Amount.Currency, p.Amount.Value, p.Amount.Fraction, p.Subject, p.ExecutedAt, p.CreditPayto, endToEndIDArg)

	var rowID int64
	if err := row.Scan(&rowID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InsertOutgoingResult{Outcome: InsertOutgoingDuplicate}, nil
		}
		return InsertOutgoingResult{}, fmt.Errorf("store: insert_outgoing: %w", err)
	}

	result := InsertOutgoingResult{RowID: rowID, Outcome: InsertOutgoingInitiatedNotFound}
	if p.EndToEndID != "" {
		var initiatedID int64
		matchRow := tx.QueryRow(ctx, `
			SELECT id FROM initiated_payments WHERE end_to_end_id = $1 FOR UPDATE
		`, p.EndToEndID)
		switch err := matchRow.Scan(&initiatedID); {
		case err == nil:
			if _, err := tx.Exec(ctx, `UPDATE outgoing_payments SET reconciled_initiated_id = $1 WHERE row_id = $2`, initiatedID, rowID); err != nil {
				return InsertOutgoingResult{}, fmt.Errorf("store: insert_outgoing: reconcile: %w", err)
			}
			result.Outcome = InsertOutgoingReconciled
			result.InitiatedID = initiatedID
		case errors.Is(err, pgx.ErrNoRows):
			// No matching initiated payment; the outgoing row still stands,
			// since the bank-side state is source of truth (spec §4.6).
		default:
			return InsertOutgoingResult{}, fmt.Errorf("store: insert_outgoing: reconcile lookup: %w", err)
		}
	}

	if wtid, exchangeBaseURL, ok := iso20022.ParseTalerableOutgoingSubject(p.Subject); ok {
		if _, err := tx.Exec(ctx, `
			INSERT INTO talerable_outgoing (row_id, wtid, exchange_base_url) VALUES ($1, $2, $3)
		`, rowID, wtid, exchangeBaseURL); err != nil {
			return InsertOutgoingResult{}, fmt.Errorf("store: insert_outgoing: talerable: %w", err)
		}
	}

	if err := notify(ctx, tx, DirectionOutgoing, account); err != nil {
		return InsertOutgoingResult{}, fmt.Errorf("store: insert_outgoing: notify: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return InsertOutgoingResult{}, fmt.Errorf("store: insert_outgoing: commit: %w", err)
	}
	return result, nil
}

// ApplyReversal marks a previously-recorded outgoing payment as
// reversed, identified by the bank's message_id (spec §4.5's Reversal
// notification). Idempotent: reversing an already-reversed row is a
// no-op success, not an error.
func ApplyReversal(ctx context.Context, db *DB, account, messageID, reason string) error {
	tx, err := db.BeginSerializable(ctx)
	if err != nil {
		return fmt.Errorf("store: apply_reversal: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var reversed bool
	row := tx.QueryRow(ctx, `SELECT reversed FROM outgoing_payments WHERE message_id = $1 FOR UPDATE`, messageID)
	if err := row.Scan(&reversed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("store: apply_reversal: lookup: %w", err)
	}
	if reversed {
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE outgoing_payments SET reversed = true, reversal_reason = $1 WHERE message_id = $2
	`, reason, messageID); err != nil {
		return fmt.Errorf("store: apply_reversal: update: %w", err)
	}

	if err := notify(ctx, tx, DirectionOutgoing, account); err != nil {
		return fmt.Errorf("store: apply_reversal: notify: %w", err)
	}

	return tx.Commit(ctx)
}
