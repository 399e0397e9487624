package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libeufin-nexus/internal/iso20022"
)

func TestIngest_IncomingRoutesToInsertIncoming(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	err := Ingest(ctx, db, testAccount, iso20022.TxNotification{
		Kind: iso20022.KindIncoming,
		Incoming: &iso20022.Incoming{
			BankID:     "ingest-1",
			Amount:     iso20022.Amount{Currency: "CHF", Value: 10},
			ExecutedAt: time.Now(),
		},
	})
	require.NoError(t, err)

	p, err := GetIncomingByBankID(ctx, db, "ingest-1")
	require.NoError(t, err)
	assert.Equal(t, KindExchange, p.Kind)
}

func TestIngest_OutgoingRoutesToInsertOutgoing(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	err := Ingest(ctx, db, testAccount, iso20022.TxNotification{
		Kind: iso20022.KindOutgoing,
		Outgoing: &iso20022.Outgoing{
			MessageID:  "ingest-2",
			Amount:     iso20022.Amount{Currency: "CHF", Value: 3},
			ExecutedAt: time.Now(),
		},
	})
	require.NoError(t, err)

	rows, err := HistoryOutgoing(ctx, db, testAccount, 0, 10, 0, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ingest-2", rows[0].MessageID)
}

func TestIngest_ReversalRoutesToApplyReversal(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, Ingest(ctx, db, testAccount, iso20022.TxNotification{
		Kind: iso20022.KindOutgoing,
		Outgoing: &iso20022.Outgoing{
			MessageID:  "ingest-3",
			Amount:     iso20022.Amount{Currency: "CHF", Value: 3},
			ExecutedAt: time.Now(),
		},
	}))

	err := Ingest(ctx, db, testAccount, iso20022.TxNotification{
		Kind: iso20022.KindReversal,
		Reversal: &iso20022.Reversal{
			MessageID:  "ingest-3",
			Reason:     "AC04 account closed",
			ExecutedAt: time.Now(),
		},
	})
	require.NoError(t, err)

	rows, err := HistoryOutgoing(ctx, db, testAccount, 0, 10, 0, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Reversed)
}
