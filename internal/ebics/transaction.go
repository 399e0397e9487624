package ebics

// TxState is a transaction's position in the EBICS upload/download state
// machine described in spec §4.3.
type TxState int

const (
	TxInit TxState = iota
	TxTransfer
	TxReceipt
	TxDone
	TxFailed
)

func (s TxState) String() string {
	switch s {
	case TxInit:
		return "INIT"
	case TxTransfer:
		return "TRANSFER"
	case TxReceipt:
		return "RECEIPT"
	case TxDone:
		return "DONE"
	case TxFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Direction distinguishes upload (client -> bank) from download
// (bank -> client) transactions. Advance applies the same transitions
// to both directions: an upload also passes through TxReceipt before
// TxDone.
type Direction int

const (
	Upload Direction = iota
	Download
)

// Transaction tracks one EBICS dialog: its 128-bit transaction id, the
// symmetric transaction key established at INIT, and its current state.
// The transaction id is generated by the initiating side and echoed by
// the peer on every subsequent segment.
type Transaction struct {
	ID        [16]byte
	Direction Direction
	State     TxState
	// TransactionKey is the AES-128 key wrapped/unwrapped once at INIT
	// (generated for uploads, extracted from the bank's INIT response
	// for downloads) and reused by every subsequent segment.
	TransactionKey []byte
	SegmentCount   int
	segmentsSeen   map[int]bool
}

// NewUploadTransaction starts a fresh upload transaction with a freshly
// generated id and the given AES transaction key.
func NewUploadTransaction(id [16]byte, key []byte, segmentCount int) *Transaction {
	return &Transaction{
		ID:             id,
		Direction:      Upload,
		State:          TxInit,
		TransactionKey: key,
		SegmentCount:   segmentCount,
		segmentsSeen:   make(map[int]bool),
	}
}

// NewDownloadTransaction starts a fresh download transaction from the
// bank's INIT response.
func NewDownloadTransaction(id [16]byte, key []byte, segmentCount int) *Transaction {
	return &Transaction{
		ID:             id,
		Direction:      Download,
		State:          TxInit,
		TransactionKey: key,
		SegmentCount:   segmentCount,
		segmentsSeen:   make(map[int]bool),
	}
}

// Advance transitions the transaction on a successful reply to the
// current step, or into TxFailed on err != nil. It is the single choke
// point enforcing the state diagram in spec §4.3.
func (t *Transaction) Advance(segmentIndex int, lastSegment bool, err error) {
	if err != nil {
		t.State = TxFailed
		return
	}

	switch t.State {
	case TxInit:
		if t.SegmentCount <= 1 || lastSegment {
			t.State = TxReceipt
		} else {
			t.State = TxTransfer
		}
		t.segmentsSeen[segmentIndex] = true

	case TxTransfer:
		t.segmentsSeen[segmentIndex] = true
		if lastSegment {
			t.State = TxReceipt
		}

	case TxReceipt:
		t.State = TxDone

	default:
		// Advancing from TxDone or TxFailed is a caller bug; leave the
		// state untouched rather than silently resurrecting a finished
		// transaction.
	}
}

// Done reports whether the transaction reached its terminal success state.
func (t *Transaction) Done() bool { return t.State == TxDone }

// Failed reports whether the transaction aborted.
func (t *Transaction) Failed() bool { return t.State == TxFailed }
