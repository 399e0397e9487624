package store

import (
	"context"
	"fmt"
	"time"
)

// HistoryIncoming implements history_incoming (spec §4.6, §4.9): rows
// with row_id > start when delta is positive (ascending), row_id <
// start when delta is negative (descending), limited to abs(delta)
// rows. If the immediate query is empty and longPollMs > 0, it blocks
// until a notification on the incoming channel arrives or the deadline
// expires, then re-queries once.
func HistoryIncoming(ctx context.Context, db *DB, account string, start int64, delta int, longPollMs int, talerableOnly bool) ([]IncomingPayment, error) {
	rows, err := queryIncomingHistory(ctx, db, start, delta, talerableOnly)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 || longPollMs <= 0 {
		return rows, nil
	}
	if err := waitForNotification(ctx, db, DirectionIncoming, account, longPollMs); err != nil {
		return rows, err
	}
	return queryIncomingHistory(ctx, db, start, delta, talerableOnly)
}

// HistoryOutgoing is HistoryIncoming's symmetric counterpart over
// outgoing_payments.
func HistoryOutgoing(ctx context.Context, db *DB, account string, start int64, delta int, longPollMs int, talerableOnly bool) ([]OutgoingPayment, error) {
	rows, err := queryOutgoingHistory(ctx, db, start, delta, talerableOnly)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 || longPollMs <= 0 {
		return rows, nil
	}
	if err := waitForNotification(ctx, db, DirectionOutgoing, account, longPollMs); err != nil {
		return rows, err
	}
	return queryOutgoingHistory(ctx, db, start, delta, talerableOnly)
}

// waitForNotification blocks until a notification on (direction,
// account) arrives, longPollMs elapses, or ctx is cancelled -- whichever
// is first (spec §5, P9). Its own subscribe failure degrades to an
// immediate return rather than propagating, since the caller will
// simply re-query and get back whatever is already committed.
func waitForNotification(ctx context.Context, db *DB, direction Direction, account string, longPollMs int) error {
	ch, cancel, err := Subscribe(ctx, db, direction, account)
	if err != nil {
		return nil
	}
	defer cancel()

	timer := time.NewTimer(time.Duration(longPollMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func queryIncomingHistory(ctx context.Context, db *DB, start int64, delta int, talerableOnly bool) ([]IncomingPayment, error) {
	where := "row_id > $1"
	order := "ASC"
	limit := delta
	if delta < 0 {
		where = "row_id < $1"
		order = "DESC"
		limit = -delta
	}
	if talerableOnly {
		where += " AND reserve_pub IS NOT NULL"
	}

	sql := fmt.Sprintf(`
		SELECT row_id, bank_id, amount_currency, amount_value, amount_fraction, subject,
		       executed_at, debit_payto, kind, COALESCE(reserve_pub, ''), bounced
		FROM incoming_payments
		WHERE %s
		ORDER BY row_id %s
		LIMIT $2
	`, where, order)

	rows, err := db.Query(ctx, sql, start, limit)
	if err != nil {
		return nil, fmt.Errorf("store: history_incoming: %w", err)
	}
	defer rows.Close()

	var out []IncomingPayment
	for rows.Next() {
		var p IncomingPayment
		if err := rows.Scan(&p.RowID, &p.BankID, &p.Amount.Currency, &p.Amount.Value, &p.Amount.Fraction,
			&p.Subject, &p.ExecutedAt, &p.DebitPayto, &p.Kind, &p.ReservePub, &p.Bounced); err != nil {
			return nil, fmt.Errorf("store: history_incoming: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func queryOutgoingHistory(ctx context.Context, db *DB, start int64, delta int, talerableOnly bool) ([]OutgoingPayment, error) {
	from := "outgoing_payments o"
	where := "o.row_id > $1"
	order := "ASC"
	limit := delta
	if delta < 0 {
		where = "o.row_id < $1"
		order = "DESC"
		limit = -delta
	}
	if talerableOnly {
		from = "outgoing_payments o JOIN talerable_outgoing t ON t.row_id = o.row_id"
	}

	sql := fmt.Sprintf(`
		SELECT o.row_id, o.message_id, COALESCE(o.end_to_end_id, ''), o.amount_currency, o.amount_value,
		       o.amount_fraction, COALESCE(o.subject, ''), o.executed_at, COALESCE(o.credit_payto, ''),
		       COALESCE(o.reconciled_initiated_id, 0), o.reversed, COALESCE(o.reversal_reason, '')
		FROM %s
		WHERE %s
		ORDER BY o.row_id %s
		LIMIT $2
	`, from, where, order)

	rows, err := db.Query(ctx, sql, start, limit)
	if err != nil {
		return nil, fmt.Errorf("store: history_outgoing: %w", err)
	}
	defer rows.Close()

	var out []OutgoingPayment
	for rows.Next() {
		var p OutgoingPayment
		if err := rows.Scan(&p.RowID, &p.MessageID, &p.EndToEndID, &p.Amount.Currency, &p.Amount.Value,
			&p.Amount.Fraction, &p.Subject, &p.ExecutedAt, &p.CreditPayto,
			&p.ReconciledInitiatedID, &p.Reversed, &p.ReversalReason); err != nil {
			return nil, fmt.Errorf("store: history_outgoing: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
