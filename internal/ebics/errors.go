// Package ebics implements the EBICS message layer: composing and
// parsing each order type this gateway speaks (INI/HIA/HPB/HTD/HAC,
// CCT uploads, C52/C53/C54/Z01/Z53/Z54 downloads), segmentation,
// transaction-key wrapping and order-data compression.
package ebics

import "fmt"

// Kind classifies an EbicsError the way §4.3/§7 require, so the submit
// and fetch loops can decide whether to retry.
type Kind int

const (
	// KindTransport covers network-level failures talking to the bank.
	KindTransport Kind = iota
	// KindProtocol covers a malformed or unparseable bank response.
	KindProtocol
	// KindBank covers a well-formed EBICS technical/business return code.
	KindBank
)

// Error is the EbicsError the spec's error-handling design names.
// Transport and non-fatal Bank errors are Recoverable; Protocol and
// fatal Bank errors are Fatal.
type Error struct {
	Kind    Kind
	Code    string // EBICS return code, e.g. "091002", only set for KindBank
	IsFatal bool
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ebics: %s (code %s): %s", kindName(e.Kind), e.Code, e.Message)
	}
	return fmt.Sprintf("ebics: %s: %s", kindName(e.Kind), e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Recoverable reports whether the submit/fetch loop should retry this
// error (transient_failure) rather than giving up (permanent_failure).
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindBank:
		return !e.IsFatal
	default: // KindProtocol
		return false
	}
}

func kindName(k Kind) string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindBank:
		return "bank"
	default:
		return "unknown"
	}
}

// recoverableBankCodes groups EBICS business return codes that mean
// "try again later" -- bank busy, no data available yet, a transient
// processing error -- as opposed to fatal codes (authentication,
// key-management, amount-check failures) that never succeed on retry.
var recoverableBankCodes = map[string]bool{
	"091006": true, // EBICS_PROCESS_ABORT (transient)
	"091116": true, // EBICS_NO_DOWNLOAD_DATA_AVAILABLE
	"061002": true, // EBICS_DOWNLOAD_POSTPROCESS_DONE (bank busy equivalent)
	"090003": true, // EBICS_TX_MESSAGE_REPLAY -- safe to retry
}

var fatalBankCodes = map[string]bool{
	"061001": true, // EBICS_AUTHENTICATION_FAILED
	"091002": true, // EBICS_INVALID_USER_OR_PARTNER
	"091113": true, // EBICS_KEY_MANAGEMENT_ERROR
	"091010": true, // EBICS_AMOUNT_CHECK_FAILED
	"091005": true, // EBICS_USER_UNKNOWN
}

// NewBankError classifies a bank-returned EBICS code into Fatal or
// Recoverable per §4.3's grouping. Codes absent from both tables are
// treated conservatively as fatal, since an unrecognised return code
// likely signals a protocol version mismatch rather than a transient
// condition.
func NewBankError(code, message string) *Error {
	if recoverableBankCodes[code] {
		return &Error{Kind: KindBank, Code: code, IsFatal: false, Message: message}
	}
	return &Error{Kind: KindBank, Code: code, IsFatal: true, Message: message}
}

// NewTransportError wraps a network-level failure.
func NewTransportError(cause error) *Error {
	return &Error{Kind: KindTransport, Message: cause.Error(), Cause: cause}
}

// NewProtocolError wraps a malformed bank response.
func NewProtocolError(message string, cause error) *Error {
	return &Error{Kind: KindProtocol, Message: message, Cause: cause}
}
