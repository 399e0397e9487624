package ebics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransaction_UploadHappyPath(t *testing.T) {
	id, _ := NewTransactionID()
	tx := NewUploadTransaction(id, []byte("k"), 3)
	assert.Equal(t, TxInit, tx.State)

	tx.Advance(0, false, nil)
	assert.Equal(t, TxTransfer, tx.State)

	tx.Advance(1, false, nil)
	assert.Equal(t, TxTransfer, tx.State)

	tx.Advance(2, true, nil)
	assert.Equal(t, TxReceipt, tx.State)

	tx.Advance(0, false, nil)
	assert.Equal(t, TxDone, tx.State)
	assert.True(t, tx.Done())
}

func TestTransaction_SingleSegmentSkipsTransfer(t *testing.T) {
	id, _ := NewTransactionID()
	tx := NewUploadTransaction(id, []byte("k"), 1)

	tx.Advance(0, true, nil)
	assert.Equal(t, TxReceipt, tx.State)
}

func TestTransaction_ErrorMarksFailed(t *testing.T) {
	id, _ := NewTransactionID()
	tx := NewUploadTransaction(id, []byte("k"), 2)

	tx.Advance(0, false, nil)
	assert.Equal(t, TxTransfer, tx.State)

	tx.Advance(1, true, assert.AnError)
	assert.Equal(t, TxFailed, tx.State)
	assert.True(t, tx.Failed())
}
