package submitloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libeufin-nexus/internal/ebics"
	"libeufin-nexus/internal/iso20022"
	"libeufin-nexus/internal/store"
	"libeufin-nexus/internal/store/testutil"
)

type fakeEbicsClient struct {
	err       error
	uploaded  [][]byte
}

func (f *fakeEbicsClient) UploadCCT(ctx context.Context, pain001 []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploaded = append(f.uploaded, pain001)
	return "order-1", nil
}

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(func() { tdb.Close(t) })
	return store.NewFromPool(tdb.Pool)
}

func testConfig() Config {
	return Config{
		Currency:   "CHF",
		Frequency:  time.Minute,
		DebtorIBAN: "CH7389144832588726658",
		DebtorName: "Nexus Exchange",
		DebtorBIC:  "POFICHBEXXX",
	}
}

func TestRunOnce_MarksSuccessOnUpload(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	inserted, err := store.InsertInitiated(ctx, db, store.InitiatedPayment{
		Amount:         iso20022.Amount{Currency: "CHF", Value: 3},
		CreditPaytoURI: "payto://iban/CH1234567890",
		RequestUID:     "req-1",
	})
	require.NoError(t, err)

	client := &fakeEbicsClient{}
	loop := New(db, client, testConfig())
	loop.RunOnce(ctx)

	require.Len(t, client.uploaded, 1)
	taken, err := store.TakeUnsubmitted(ctx, db, "CHF", 10)
	require.NoError(t, err)
	assert.Empty(t, taken, "successfully submitted row must leave the unsubmitted set")

	_, lastErr := loop.Health()
	assert.NoError(t, lastErr)
	_ = inserted
}

func TestRunOnce_TransientEbicsErrorKeepsRowRetryable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := store.InsertInitiated(ctx, db, store.InitiatedPayment{
		Amount:         iso20022.Amount{Currency: "CHF", Value: 3},
		CreditPaytoURI: "payto://iban/CH1234567890",
		RequestUID:     "req-2",
	})
	require.NoError(t, err)

	client := &fakeEbicsClient{err: &ebics.Error{Kind: ebics.KindTransport, Message: "dial timeout"}}
	loop := New(db, client, testConfig())
	loop.RunOnce(ctx)

	taken, err := store.TakeUnsubmitted(ctx, db, "CHF", 10)
	require.NoError(t, err)
	require.Len(t, taken, 1)
	assert.Equal(t, store.TransientFailure, taken[0].Submitted)
}

func TestRunOnce_FatalBankErrorIsPermanent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := store.InsertInitiated(ctx, db, store.InitiatedPayment{
		Amount:         iso20022.Amount{Currency: "CHF", Value: 3},
		CreditPaytoURI: "payto://iban/CH1234567890",
		RequestUID:     "req-3",
	})
	require.NoError(t, err)

	client := &fakeEbicsClient{err: &ebics.Error{Kind: ebics.KindBank, Code: "091002", IsFatal: true, Message: "invalid user"}}
	loop := New(db, client, testConfig())
	loop.RunOnce(ctx)

	taken, err := store.TakeUnsubmitted(ctx, db, "CHF", 10)
	require.NoError(t, err)
	assert.Empty(t, taken, "permanent failure is terminal, never retried")
}

func TestRunOnce_InvalidPaytoIsPermanentFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := store.InsertInitiated(ctx, db, store.InitiatedPayment{
		Amount:         iso20022.Amount{Currency: "CHF", Value: 3},
		CreditPaytoURI: "not-a-payto-uri",
		RequestUID:     "req-4",
	})
	require.NoError(t, err)

	client := &fakeEbicsClient{}
	loop := New(db, client, testConfig())
	loop.RunOnce(ctx)

	assert.Empty(t, client.uploaded, "malformed payto must never reach UploadCCT")
	taken, err := store.TakeUnsubmitted(ctx, db, "CHF", 10)
	require.NoError(t, err)
	assert.Empty(t, taken)
}
