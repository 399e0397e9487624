package ebics

import (
	"bytes"
	"crypto/rsa"
	"encoding/base64"
	"strconv"

	"libeufin-nexus/internal/cryptoutil"
	"libeufin-nexus/internal/xmlutil"
)

// ebicsNamespace is the EBICS 2.5/3.0 request/response document namespace
// this gateway targets (H004 schema; EBICS 3.0 BTF uses H005/H006 but
// reuses the same envelope shape for the parts this client composes).
const ebicsNamespace = "urn:org:ebics:H004"

// StaticHeader carries the fields every EBICS request's header/static
// section needs.
type StaticHeader struct {
	HostID      string
	PartnerID   string
	UserID      string
	SystemID    string
	OrderType   string
	Nonce       string // hex-encoded random nonce
	Timestamp   string // RFC3339
	TxnID       string // hex-encoded 128-bit transaction id, TRANSFER/RECEIPT only
	SegmentNum  int
	LastSegment bool

	WrappedKeyBase64 string // E002 RSA-wrapped AES key, upload INIT only
}

// BuildRequest composes an EBICS request document for the given order,
// signs it with A006 over the C14N of the document with AuthSignature
// elided, and returns the finished, signed document bytes.
//
// orderDataBase64 is the already-compressed/encrypted/base64-encoded
// order data payload for this segment (empty for pure key-management
// requests like HPB download-only steps that carry no body).
func BuildRequest(h StaticHeader, orderDataBase64 string, signPriv *rsa.PrivateKey) ([]byte, error) {
	b := xmlutil.NewBuilder(ebicsNamespace, "ebicsRequest")
	b.Root().SetAttr("Version", "H004").SetAttr("Revision", "1")

	header := b.Root().El("header")
	header.SetAttr("authenticate", "true")
	static := header.El("static")
	static.El("HostID").SetText(h.HostID)
	static.El("PartnerID").SetText(h.PartnerID)
	static.El("UserID").SetText(h.UserID)
	if h.SystemID != "" {
		static.El("SystemID").SetText(h.SystemID)
	}
	if h.OrderType != "" {
		static.El("OrderDetails/OrderType").SetText(h.OrderType)
	}
	if h.TxnID != "" {
		static.El("TransactionID").SetText(h.TxnID)
	}
	static.El("Nonce").SetText(h.Nonce)
	static.El("Timestamp").SetText(h.Timestamp)

	mutable := header.El("mutable")
	if h.TxnID != "" {
		mutable.El("TransactionPhase").SetText("Transfer")
		mutable.El("SegmentNumber").SetAttr("lastSegment", boolStr(h.LastSegment)).SetText(strconv.Itoa(h.SegmentNum))
	}

	if orderDataBase64 != "" {
		if h.WrappedKeyBase64 != "" {
			b.Root().El("body/DataTransfer/DataEncryptionInfo/TransactionKey").SetText(h.WrappedKeyBase64)
			b.Root().El("body/DataTransfer/DataEncryptionInfo").SetAttr("authenticate", "true")
		}
		b.Root().El("body/DataTransfer/OrderData").SetText(orderDataBase64)
	} else {
		b.Root().El("body")
	}

	// AuthSignature is appended last, computed over the C14N of
	// everything else with AuthSignature itself elided.
	parsed, err := xmlutil.Parse(bytes.NewReader(b.Serialize()))
	if err != nil {
		return nil, NewProtocolError("failed to re-parse composed request", err)
	}
	canon := xmlutil.Canonicalize(parsed, "AuthSignature")
	digest := cryptoutil.EbicsOrderDigest(canon)
	sig, err := cryptoutil.SignA006(digest[:], signPriv)
	if err != nil {
		return nil, err
	}

	authSig := b.Root().El("AuthSignature")
	authSig.El("SignatureVersion").SetText("A006")
	authSig.El("SignatureValue").SetText(base64.StdEncoding.EncodeToString(sig))

	return b.Serialize(), nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

