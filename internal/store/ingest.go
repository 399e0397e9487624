package store

import (
	"context"
	"fmt"

	"libeufin-nexus/internal/iso20022"
)

// Ingest dispatches a single extracted notification to the matching
// insert/reconcile operation, matching the fetch loop's `store.ingest(n)`
// call (spec §4.8). Every branch is idempotent, so re-ingesting the same
// notification after a crash is always safe.
func Ingest(ctx context.Context, db *DB, account string, n iso20022.TxNotification) error {
	switch n.Kind {
	case iso20022.KindIncoming:
		// Every account this gateway watches belongs to a single Taler
		// exchange (spec §1 Non-goals: no multi-tenant routing), so any
		// bank-reported credit is a candidate reserve top-up; kind=exchange
		// lets InsertIncoming populate reserve_pub when the subject matches.
		_, err := InsertIncoming(ctx, db, account, IncomingPayment{
			BankID:     n.Incoming.BankID,
			Amount:     n.Incoming.Amount,
			Subject:    n.Incoming.Subject,
			ExecutedAt: n.Incoming.ExecutedAt,
			DebitPayto: n.Incoming.DebitPayto,
			Kind:       KindExchange,
		})
		if err != nil {
			return fmt.Errorf("store: ingest incoming: %w", err)
		}
		return nil
	case iso20022.KindOutgoing:
		_, err := InsertOutgoing(ctx, db, account, OutgoingPayment{
			MessageID:   n.Outgoing.MessageID,
			EndToEndID:  n.Outgoing.EndToEndID,
			Amount:      n.Outgoing.Amount,
			Subject:     n.Outgoing.Subject,
			ExecutedAt:  n.Outgoing.ExecutedAt,
			CreditPayto: n.Outgoing.CreditPayto,
		})
		if err != nil {
			return fmt.Errorf("store: ingest outgoing: %w", err)
		}
		return nil
	case iso20022.KindReversal:
		if err := ApplyReversal(ctx, db, account, n.Reversal.MessageID, n.Reversal.Reason); err != nil {
			return fmt.Errorf("store: ingest reversal: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("store: ingest: unknown notification kind %v", n.Kind)
	}
}
