package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libeufin-nexus/internal/iso20022"
)

const testAccount = "payto://iban/CH7389144832588726658"

func sampleIncoming(bankID string) IncomingPayment {
	return IncomingPayment{
		BankID:     bankID,
		Amount:     iso20022.Amount{Currency: "CHF", Value: 10, Fraction: 0},
		Subject:    "G1XTY6HGWGMVRM7E6XQ4JHJK561ETFDFTJZ7JVGV543XZCB27YBG",
		ExecutedAt: time.Date(2023, 12, 19, 0, 0, 0, 0, time.UTC),
		DebitPayto: "payto://iban/CH1111111111?receiver-name=Mr+Test",
		Kind:       KindExchange,
	}
}

func TestInsertIncoming_PopulatesReservePubForTalerableSubject(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	result, err := InsertIncoming(ctx, db, testAccount, sampleIncoming("bank-1"))
	require.NoError(t, err)
	assert.Equal(t, InsertIncomingCreated, result.Outcome)

	p, err := GetIncomingByBankID(ctx, db, "bank-1")
	require.NoError(t, err)
	assert.Equal(t, "G1XTY6HGWGMVRM7E6XQ4JHJK561ETFDFTJZ7JVGV543XZCB27YBG", p.ReservePub)
}

func TestInsertIncoming_NonTalerableSubjectLeavesReservePubEmpty(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	p := sampleIncoming("bank-2")
	p.Subject = "plain payment note"
	_, err := InsertIncoming(ctx, db, testAccount, p)
	require.NoError(t, err)

	stored, err := GetIncomingByBankID(ctx, db, "bank-2")
	require.NoError(t, err)
	assert.Equal(t, "", stored.ReservePub)
}

func TestInsertIncoming_IdempotentByBankID(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	first, err := InsertIncoming(ctx, db, testAccount, sampleIncoming("bank-3"))
	require.NoError(t, err)

	second, err := InsertIncoming(ctx, db, testAccount, sampleIncoming("bank-3"))
	require.NoError(t, err)
	assert.Equal(t, InsertIncomingDuplicate, second.Outcome)
	assert.Equal(t, int64(0), second.RowID)
	assert.NotEqual(t, int64(0), first.RowID)
}

func TestGetIncomingByBankID_NotFound(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	_, err := GetIncomingByBankID(ctx, db, "no-such-bank-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBounceIncoming_FlagsAndCreatesRefundAtomically(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	inserted, err := InsertIncoming(ctx, db, testAccount, sampleIncoming("bank-4"))
	require.NoError(t, err)

	refundID, err := BounceIncoming(ctx, db, inserted.RowID, "refund-req-1", "refund of bank-4")
	require.NoError(t, err)
	assert.NotZero(t, refundID)

	bounced, err := GetIncomingByBankID(ctx, db, "bank-4")
	require.NoError(t, err)
	assert.True(t, bounced.Bounced)

	refund, err := GetInitiatedByRequestUID(ctx, db, "refund-req-1")
	require.NoError(t, err)
	assert.Equal(t, refundID, refund.ID)
	assert.Equal(t, "payto://iban/CH1111111111?receiver-name=Mr+Test", refund.CreditPaytoURI)
}

func TestBounceIncoming_ReplaySameRequestUIDReturnsSameRefund(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	inserted, err := InsertIncoming(ctx, db, testAccount, sampleIncoming("bank-5"))
	require.NoError(t, err)

	first, err := BounceIncoming(ctx, db, inserted.RowID, "refund-req-2", "refund")
	require.NoError(t, err)
	second, err := BounceIncoming(ctx, db, inserted.RowID, "refund-req-2", "refund")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBounceIncoming_UnknownRowNotFound(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	_, err := BounceIncoming(ctx, db, 999999, "refund-req-3", "refund")
	assert.ErrorIs(t, err, ErrNotFound)
}
