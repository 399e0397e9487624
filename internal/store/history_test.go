package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryIncoming_AscendingAndDescendingCursors(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	for _, bankID := range []string{"h-1", "h-2", "h-3"} {
		_, err := InsertIncoming(ctx, db, testAccount, sampleIncoming(bankID))
		require.NoError(t, err)
	}

	ascending, err := HistoryIncoming(ctx, db, testAccount, 0, 10, 0, false)
	require.NoError(t, err)
	require.Len(t, ascending, 3)
	assert.True(t, ascending[0].RowID < ascending[1].RowID)

	descending, err := HistoryIncoming(ctx, db, testAccount, ascending[2].RowID+1, -2, 0, false)
	require.NoError(t, err)
	require.Len(t, descending, 2)
	assert.True(t, descending[0].RowID > descending[1].RowID)
}

func TestHistoryIncoming_LongPollWakesOnNewRow(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	done := make(chan []IncomingPayment, 1)
	go func() {
		rows, err := HistoryIncoming(ctx, db, testAccount, 0, 10, 2000, false)
		require.NoError(t, err)
		done <- rows
	}()

	time.Sleep(200 * time.Millisecond)
	_, err := InsertIncoming(ctx, db, testAccount, sampleIncoming("h-longpoll"))
	require.NoError(t, err)

	select {
	case rows := <-done:
		require.Len(t, rows, 1)
		assert.Equal(t, "h-longpoll", rows[0].BankID)
	case <-time.After(3 * time.Second):
		t.Fatal("long poll did not return after notification")
	}
}

func TestHistoryIncoming_LongPollTimesOutEmpty(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	start := time.Now()
	rows, err := HistoryIncoming(ctx, db, testAccount, 0, 10, 200, false)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}
