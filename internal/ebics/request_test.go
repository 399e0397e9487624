package ebics

import (
	"bytes"
	"crypto/rsa"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libeufin-nexus/internal/cryptoutil"
	"libeufin-nexus/internal/xmlutil"
)

func TestBuildRequest_ProducesVerifiableSignature(t *testing.T) {
	signKey, err := cryptoutil.GenRSA(cryptoutil.MinKeyBits)
	require.NoError(t, err)

	h := StaticHeader{
		HostID:    "HOST01",
		PartnerID: "PARTNER1",
		UserID:    "USER1",
		OrderType: "CCT",
		Nonce:     "deadbeefdeadbeefdeadbeefdeadbeef",
		Timestamp: "2026-07-29T00:00:00Z",
	}

	doc, err := BuildRequest(h, "b64orderdata", signKey)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "ebicsRequest")
	assert.Contains(t, string(doc), "HOST01")
	assert.Contains(t, string(doc), "<AuthSignature>")
}

func TestParseResponse_SuccessReturnCode(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<ebicsResponse xmlns="urn:org:ebics:H004">
  <header>
    <static><TransactionID>ABCDEF</TransactionID><NumSegments>1</NumSegments></static>
    <mutable><TransactionPhase>Initialisation</TransactionPhase><ReturnCode>000000</ReturnCode><ReportText>[EBICS_OK]</ReportText></mutable>
  </header>
  <body><DataTransfer><OrderData>b64payload</OrderData></DataTransfer></body>
</ebicsResponse>`)

	resp, err := ParseResponse(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "000000", resp.ReturnCode)
	assert.Equal(t, "ABCDEF", resp.TransactionID)
	assert.Equal(t, "b64payload", resp.OrderDataBase64)
	assert.Equal(t, 1, resp.NumSegments)
}

func TestParseResponse_ErrorReturnCode(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<ebicsResponse xmlns="urn:org:ebics:H004">
  <header>
    <static></static>
    <mutable><ReturnCode>061001</ReturnCode><ReportText>[EBICS_AUTHENTICATION_FAILED]</ReportText></mutable>
  </header>
  <body></body>
</ebicsResponse>`)

	resp, err := ParseResponse(doc, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	var ebicsErr *Error
	require.ErrorAs(t, err, &ebicsErr)
	assert.False(t, ebicsErr.Recoverable())
}

// signedResponseDoc builds a minimal ebicsResponse document and signs it
// with A006 the same way BuildRequest signs a request, so tests can
// exercise ParseResponse's AuthSignature verification path.
func signedResponseDoc(t *testing.T, signKey *rsa.PrivateKey) []byte {
	t.Helper()
	b := xmlutil.NewBuilder(ebicsNamespace, "ebicsResponse")
	header := b.Root().El("header")
	header.El("static/TransactionID").SetText("ABCDEF")
	header.El("static/NumSegments").SetText("1")
	mutable := header.El("mutable")
	mutable.El("TransactionPhase").SetText("Initialisation")
	mutable.El("ReturnCode").SetText("000000")
	mutable.El("ReportText").SetText("[EBICS_OK]")
	b.Root().El("body/DataTransfer/OrderData").SetText("b64payload")

	parsed, err := xmlutil.Parse(bytes.NewReader(b.Serialize()))
	require.NoError(t, err)
	canon := xmlutil.Canonicalize(parsed, "AuthSignature")
	digest := cryptoutil.EbicsOrderDigest(canon)
	sig, err := cryptoutil.SignA006(digest[:], signKey)
	require.NoError(t, err)

	authSig := b.Root().El("AuthSignature")
	authSig.El("SignatureVersion").SetText("A006")
	authSig.El("SignatureValue").SetText(base64.StdEncoding.EncodeToString(sig))

	return b.Serialize()
}

func TestParseResponse_VerifiesAuthSignatureAgainstBankKey(t *testing.T) {
	bankKey, err := cryptoutil.GenRSA(cryptoutil.MinKeyBits)
	require.NoError(t, err)
	doc := signedResponseDoc(t, bankKey)

	resp, err := ParseResponse(doc, &bankKey.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, "000000", resp.ReturnCode)
}

func TestParseResponse_RejectsWrongBankKey(t *testing.T) {
	bankKey, err := cryptoutil.GenRSA(cryptoutil.MinKeyBits)
	require.NoError(t, err)
	otherKey, err := cryptoutil.GenRSA(cryptoutil.MinKeyBits)
	require.NoError(t, err)
	doc := signedResponseDoc(t, bankKey)

	_, err = ParseResponse(doc, &otherKey.PublicKey)
	require.Error(t, err)
	var ebicsErr *Error
	require.ErrorAs(t, err, &ebicsErr)
	assert.Equal(t, KindProtocol, ebicsErr.Kind)
}

func TestParseResponse_RejectsMissingAuthSignatureWhenBankKeyGiven(t *testing.T) {
	bankKey, err := cryptoutil.GenRSA(cryptoutil.MinKeyBits)
	require.NoError(t, err)

	doc := []byte(`<?xml version="1.0"?>
<ebicsResponse xmlns="urn:org:ebics:H004">
  <header>
    <static><TransactionID>ABCDEF</TransactionID><NumSegments>1</NumSegments></static>
    <mutable><TransactionPhase>Initialisation</TransactionPhase><ReturnCode>000000</ReturnCode></mutable>
  </header>
  <body><DataTransfer><OrderData>b64payload</OrderData></DataTransfer></body>
</ebicsResponse>`)

	_, err = ParseResponse(doc, &bankKey.PublicKey)
	require.Error(t, err)
}
