package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"libeufin-nexus/internal/iso20022"
)

// InsertIncoming inserts a credit entry, idempotent by BankID. When kind
// is exchange and the subject parses as a Taler reserve public key, the
// reserve_pub column is populated in the same statement -- the
// "talerable-incoming view" is this column, not a separate table, so no
// second insert is needed for atomicity (spec §4.6).
//
// account identifies the notify channel to wake long-pollers on; it is
// the configured credit_account payto URI, matching the single-account
// scope of this gateway (spec §1 Non-goals: no multi-tenant routing).
func InsertIncoming(ctx context.Context, db *DB, account string, p IncomingPayment) (InsertIncomingResult, error) {
	tx, err := db.BeginSerializable(ctx)
	if err != nil {
		return InsertIncomingResult{}, fmt.Errorf("store: insert_incoming: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	reservePub := ""
	if p.Kind == KindExchange && iso20022.IsReservePub(p.Subject) {
		reservePub = p.Subject
	}

	var reservePubArg any
	if reservePub != "" {
		reservePubArg = reservePub
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO incoming_payments
			(bank_id, amount_currency, amount_value, amount_fraction, subject, executed_at, debit_payto, kind, reserve_pub)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (bank_id) DO NOTHING
		RETURNING row_id
	`, p.BankID, p.Amount.Currency, p.Amount.Value, p.Amount.Fraction, p.Subject, p.ExecutedAt, p.DebitPayto, string(p.Kind), reservePubArg)

	var rowID int64
	if err := row.Scan(&rowID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InsertIncomingResult{Outcome: InsertIncomingDuplicate}, nil
		}
		return InsertIncomingResult{}, fmt.Errorf("store: insert_incoming: %w", err)
	}

	if err := notify(ctx, tx, DirectionIncoming, account); err != nil {
		return InsertIncomingResult{}, fmt.Errorf("store: insert_incoming: notify: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return InsertIncomingResult{}, fmt.Errorf("store: insert_incoming: commit: %w", err)
	}
	return InsertIncomingResult{Outcome: InsertIncomingCreated, RowID: rowID}, nil
}

// GetIncomingByBankID looks up an incoming payment by its dedup key,
// used by the HTTP façade to detect a conflicting admin/add-incoming
// replay (same reserve_pub-derived bank_id, different amount/debtor).
func GetIncomingByBankID(ctx context.Context, db *DB, bankID string) (IncomingPayment, error) {
	row := db.QueryRow(ctx, `
		SELECT row_id, bank_id, amount_currency, amount_value, amount_fraction, subject,
		       executed_at, debit_payto, kind, COALESCE(reserve_pub, ''), bounced
		FROM incoming_payments WHERE bank_id = $1
	`, bankID)
	var p IncomingPayment
	if err := row.Scan(&p.RowID, &p.BankID, &p.Amount.Currency, &p.Amount.Value, &p.Amount.Fraction,
		&p.Subject, &p.ExecutedAt, &p.DebitPayto, &p.Kind, &p.ReservePub, &p.Bounced); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IncomingPayment{}, ErrNotFound
		}
		return IncomingPayment{}, fmt.Errorf("store: get_incoming_by_bank_id: %w", err)
	}
	return p, nil
}

// BounceIncoming atomically flags an incoming payment as bounced and
// creates a refund initiated payment back to its original debtor (spec
// §4.6, P10). requestUID is the refund's idempotency key: a replay with
// the same (rowID, requestUID) returns the same refund id rather than
// creating a second refund.
func BounceIncoming(ctx context.Context, db *DB, rowID int64, requestUID, subject string) (refundID int64, err error) {
	tx, err := db.BeginSerializable(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: bounce_incoming: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var amount iso20022.Amount
	var debitPayto string
	var bounced bool
	row := tx.QueryRow(ctx, `
		SELECT amount_currency, amount_value, amount_fraction, debit_payto, bounced
		FROM incoming_payments WHERE row_id = $1 FOR UPDATE
	`, rowID)
	if err := row.Scan(&amount.Currency, &amount.Value, &amount.Fraction, &debitPayto, &bounced); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("store: bounce_incoming: lookup: %w", err)
	}

	if !bounced {
		if _, err := tx.Exec(ctx, `UPDATE incoming_payments SET bounced = true WHERE row_id = $1`, rowID); err != nil {
			return 0, fmt.Errorf("store: bounce_incoming: flag: %w", err)
		}
	}

	id, _, err := insertInitiatedTx(ctx, tx, InitiatedPayment{
		Amount:         amount,
		CreditPaytoURI: debitPayto,
		Subject:        subject,
		RequestUID:     requestUID,
	})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("store: bounce_incoming: commit: %w", err)
	}
	return id, nil
}
