package ebics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBankError_ClassifiesRecoverableVsFatal(t *testing.T) {
	recoverable := NewBankError("091116", "no download data available")
	assert.True(t, recoverable.Recoverable())

	fatal := NewBankError("061001", "authentication failed")
	assert.False(t, fatal.Recoverable())
}

func TestNewBankError_UnknownCodeTreatedAsFatal(t *testing.T) {
	unknown := NewBankError("999999", "unrecognised")
	assert.False(t, unknown.Recoverable())
}

func TestError_TransportAlwaysRecoverable(t *testing.T) {
	e := NewTransportError(errors.New("connection reset"))
	assert.True(t, e.Recoverable())
}

func TestError_ProtocolNeverRecoverable(t *testing.T) {
	e := NewProtocolError("malformed XML", errors.New("eof"))
	assert.False(t, e.Recoverable())
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	e := NewTransportError(cause)
	assert.ErrorIs(t, e, cause)
}
