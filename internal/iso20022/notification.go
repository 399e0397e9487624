package iso20022

import "time"

// TxNotification is the sum type C5 emits: exactly one of Incoming,
// Outgoing, or Reversal is populated, discriminated by Kind.
type TxNotification struct {
	Kind NotificationKind

	Incoming *Incoming
	Outgoing *Outgoing
	Reversal *Reversal
}

// NotificationKind discriminates TxNotification's payload.
type NotificationKind int

const (
	KindIncoming NotificationKind = iota
	KindOutgoing
	KindReversal
)

// Incoming is a credit entry on the configured account: money arriving
// from a debtor.
type Incoming struct {
	BankID      string
	Amount      Amount
	Subject     string
	ExecutedAt  time.Time
	DebitPayto  string // payto:// URI of the sender, when the dialect provides one
}

// Outgoing is a debit entry on the configured account: the bank's own
// echo of a credit transfer this gateway (or another channel) initiated.
// MessageID is the bank-visible reference used for dedup; EndToEndID is
// the pain.001 EndToEndId echo used for reconciliation against an
// initiated payment's derived end-to-end id (spec §3/§4.6).
type Outgoing struct {
	MessageID   string
	EndToEndID  string
	Amount      Amount
	Subject     string
	ExecutedAt  time.Time
	CreditPayto string
}

// Reversal undoes a previously reported Outgoing, identified by the
// same message id.
type Reversal struct {
	MessageID  string
	Reason     string
	ExecutedAt time.Time
}
