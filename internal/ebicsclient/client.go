package ebicsclient

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"libeufin-nexus/internal/cryptoutil"
	"libeufin-nexus/internal/ebics"
)

// DefaultTotalTimeout and DefaultAttemptTimeout implement spec §5's bank
// HTTP call deadlines (30s total, 10s per attempt).
const (
	DefaultTotalTimeout   = 30 * time.Second
	DefaultAttemptTimeout = 10 * time.Second
)

// Config is the subset of nexus-ebics this client needs at call time.
type Config struct {
	HostBaseURL           string
	HostID                string
	UserID                string
	PartnerID             string
	SystemID              string
	ClientPrivateKeysFile string
	BankPublicKeysFile    string
	BankDialect           string
}

// Client is a stateful EBICS session: one instance per configured
// subscriber, reused across setup/fetch/upload_cct calls.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New constructs a Client with the given HTTP transport. Passing a nil
// httpClient uses a new http.Client whose Timeout is DefaultTotalTimeout.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTotalTimeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Setup writes client keys if absent, performs INI and HIA if not yet
// submitted, performs HPB, and records the bank keys as accepted=false
// pending operator confirmation. Returns the client's own EBICS
// fingerprint (for the operator to compare against the key letter) and
// the bank's fingerprint (for the operator to confirm out of band).
func (c *Client) Setup(ctx context.Context) (clientFingerprint, bankFingerprint [32]byte, err error) {
	keys, err := LoadClientKeys(c.cfg.ClientPrivateKeysFile)
	if err != nil {
		return clientFingerprint, bankFingerprint, err
	}
	if keys == nil {
		keys, err = generateClientKeys()
		if err != nil {
			return clientFingerprint, bankFingerprint, err
		}
		if err := SaveClientKeys(c.cfg.ClientPrivateKeysFile, keys); err != nil {
			return clientFingerprint, bankFingerprint, err
		}
	}

	if !keys.SubmittedINI {
		if err := c.sendKeyManagement(ctx, ebics.OrderINI, keys.Signature); err != nil {
			return clientFingerprint, bankFingerprint, err
		}
		keys.SubmittedINI = true
		if err := SaveClientKeys(c.cfg.ClientPrivateKeysFile, keys); err != nil {
			return clientFingerprint, bankFingerprint, err
		}
	}

	if !keys.SubmittedHIA {
		if err := c.sendKeyManagement(ctx, ebics.OrderHIA, keys.Signature); err != nil {
			return clientFingerprint, bankFingerprint, err
		}
		keys.SubmittedHIA = true
		if err := SaveClientKeys(c.cfg.ClientPrivateKeysFile, keys); err != nil {
			return clientFingerprint, bankFingerprint, err
		}
	}

	bankAuth, bankEnc, err := c.fetchBankKeys(ctx, keys.Signature, keys.Encryption)
	if err != nil {
		return clientFingerprint, bankFingerprint, err
	}

	bankKeys := &BankKeys{Authentication: bankAuth, Encryption: bankEnc, Accepted: false}
	if err := SaveBankKeys(c.cfg.BankPublicKeysFile, bankKeys); err != nil {
		return clientFingerprint, bankFingerprint, err
	}

	clientFingerprint = cryptoutil.EbicsPubkeyDigest(&keys.Signature.PublicKey)
	bankFingerprint = cryptoutil.EbicsPubkeyDigest(bankEnc)

	slog.Info("ebics setup complete, awaiting operator bank-key confirmation",
		"host_id", c.cfg.HostID,
		"client_fingerprint", hex.EncodeToString(clientFingerprint[:]),
		"bank_fingerprint", hex.EncodeToString(bankFingerprint[:]),
	)

	return clientFingerprint, bankFingerprint, nil
}

func generateClientKeys() (*ClientKeys, error) {
	sig, err := cryptoutil.GenRSA(2048)
	if err != nil {
		return nil, err
	}
	auth, err := cryptoutil.GenRSA(2048)
	if err != nil {
		return nil, err
	}
	enc, err := cryptoutil.GenRSA(2048)
	if err != nil {
		return nil, err
	}
	return &ClientKeys{Signature: sig, Authentication: auth, Encryption: enc}, nil
}

// requireAcceptedBankKeys loads the bank key file and errors unless the
// operator has flipped accepted=true, per spec §3: "all non-setup
// operations require accepted=true".
func (c *Client) requireAcceptedBankKeys() (*BankKeys, error) {
	bankKeys, err := LoadBankKeys(c.cfg.BankPublicKeysFile)
	if err != nil {
		return nil, err
	}
	if bankKeys == nil {
		return nil, fmt.Errorf("ebicsclient: no bank keys on file, run ebics-setup first")
	}
	if !bankKeys.Accepted {
		return nil, fmt.Errorf("ebicsclient: bank keys not yet accepted by operator, refusing to transact")
	}
	return bankKeys, nil
}

// Fetch downloads one document for the given level and returns its
// order type and bytes (nil bytes when the bank has no data). from and
// to are not sent to the bank: the request carries no date range, so
// the bank answers with whatever it holds for the order type.
// Re-downloading is idempotent, since C5/C6 dedup downstream.
func (c *Client) Fetch(ctx context.Context, level ebics.FetchLevel, from, to time.Time) (orderType ebics.OrderType, documentBytes []byte, err error) {
	clientKeys, err := LoadClientKeys(c.cfg.ClientPrivateKeysFile)
	if err != nil {
		return "", nil, err
	}
	if clientKeys == nil {
		return "", nil, fmt.Errorf("ebicsclient: no client keys on file, run ebics-setup first")
	}
	bankKeys, err := c.requireAcceptedBankKeys()
	if err != nil {
		return "", nil, err
	}

	orderType = ebics.OrderTypeForLevel(level, c.cfg.BankDialect)

	resp, err := c.downloadOrder(ctx, orderType, clientKeys.Authentication, clientKeys.Encryption, bankKeys)
	if err != nil {
		return orderType, nil, err
	}
	return orderType, resp, nil
}

// UploadCCT uploads a pain.001 document as a CCT order and returns the
// bank-assigned order id. Durable writes (the (request_uid, order_id)
// audit mapping) are the caller's responsibility, performed only after
// this call returns successfully -- this method itself performs no
// persistence, so a failure here leaves no partial state.
func (c *Client) UploadCCT(ctx context.Context, pain001 []byte) (orderID string, err error) {
	clientKeys, err := LoadClientKeys(c.cfg.ClientPrivateKeysFile)
	if err != nil {
		return "", err
	}
	if clientKeys == nil {
		return "", fmt.Errorf("ebicsclient: no client keys on file, run ebics-setup first")
	}
	bankKeys, err := c.requireAcceptedBankKeys()
	if err != nil {
		return "", err
	}

	return c.uploadOrder(ctx, ebics.OrderCCT, pain001, clientKeys, bankKeys)
}

// post sends body to the bank's EBICS endpoint with the per-attempt
// timeout and returns the raw response bytes.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.HostBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, ebics.NewTransportError(err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=UTF-8")
	req.Header.Set("User-Agent", "libeufin-nexus/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ebics.NewTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ebics.NewTransportError(err)
	}
	return respBody, nil
}

// sendKeyManagement posts an INI or HIA key-management request, signed
// with signPriv, and checks for a successful return code.
func (c *Client) sendKeyManagement(ctx context.Context, orderType ebics.OrderType, signPriv *rsa.PrivateKey) error {
	nonce, err := ebics.NewTransactionID()
	if err != nil {
		return err
	}
	h := ebics.StaticHeader{
		HostID:    c.cfg.HostID,
		PartnerID: c.cfg.PartnerID,
		UserID:    c.cfg.UserID,
		SystemID:  c.cfg.SystemID,
		OrderType: string(orderType),
		Nonce:     hex.EncodeToString(nonce[:]),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	doc, err := ebics.BuildRequest(h, "", signPriv)
	if err != nil {
		return err
	}

	respBody, err := c.post(ctx, doc)
	if err != nil {
		return err
	}

	// No accepted bank authentication key exists yet at INI/HIA time.
	_, err = ebics.ParseResponse(respBody, nil)
	return err
}

// fetchBankKeys performs HPB and returns the bank's authentication and
// encryption public keys. The HPB response's order data is E002-wrapped
// to the subscriber's own encryption key, same as any other download.
func (c *Client) fetchBankKeys(ctx context.Context, signPriv, encPriv *rsa.PrivateKey) (auth, enc *rsa.PublicKey, err error) {
	nonce, err := ebics.NewTransactionID()
	if err != nil {
		return nil, nil, err
	}
	h := ebics.StaticHeader{
		HostID:    c.cfg.HostID,
		PartnerID: c.cfg.PartnerID,
		UserID:    c.cfg.UserID,
		SystemID:  c.cfg.SystemID,
		OrderType: string(ebics.OrderHPB),
		Nonce:     hex.EncodeToString(nonce[:]),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	doc, err := ebics.BuildRequest(h, "", signPriv)
	if err != nil {
		return nil, nil, err
	}

	respBody, err := c.post(ctx, doc)
	if err != nil {
		return nil, nil, err
	}

	// HPB fetches the bank's own keys for the first time; there is no
	// accepted key on file yet to verify this response against. The
	// caller surfaces the fingerprint for out-of-band confirmation.
	resp, err := ebics.ParseResponse(respBody, nil)
	if err != nil {
		return nil, nil, err
	}
	if resp.OrderDataBase64 == "" {
		return nil, nil, fmt.Errorf("ebicsclient: HPB response carried no order data")
	}

	wrappedKey, err := base64.StdEncoding.DecodeString(resp.TransactionKeyB64)
	if err != nil {
		return nil, nil, ebics.NewProtocolError("malformed HPB transaction key", err)
	}

	orderDataXML, err := ebics.ReassembleDownload([]string{resp.OrderDataBase64}, wrappedKey, encPriv)
	if err != nil {
		return nil, nil, err
	}

	return parseHPBKeys(orderDataXML)
}

// downloadOrder runs the INIT and TRANSFER phases of a download
// transaction for orderType and returns the reassembled order data
// bytes. It sends no RECEIPT request to acknowledge the download.
func (c *Client) downloadOrder(ctx context.Context, orderType ebics.OrderType, authPriv, encPriv *rsa.PrivateKey, bankKeys *BankKeys) ([]byte, error) {
	nonce, err := ebics.NewTransactionID()
	if err != nil {
		return nil, err
	}
	h := ebics.StaticHeader{
		HostID:    c.cfg.HostID,
		PartnerID: c.cfg.PartnerID,
		UserID:    c.cfg.UserID,
		SystemID:  c.cfg.SystemID,
		OrderType: string(orderType),
		Nonce:     hex.EncodeToString(nonce[:]),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	doc, err := ebics.BuildRequest(h, "", authPriv)
	if err != nil {
		return nil, err
	}

	respBody, err := c.post(ctx, doc)
	if err != nil {
		return nil, err
	}

	resp, err := ebics.ParseResponse(respBody, bankKeys.Authentication)
	if err != nil {
		if resp != nil && resp.ReturnCode == "091116" {
			// EBICS_NO_DOWNLOAD_DATA_AVAILABLE: a legitimate empty result,
			// not a failure the fetch loop should retry forever on.
			return nil, nil
		}
		return nil, err
	}

	if resp.OrderDataBase64 == "" {
		return nil, nil
	}

	wrappedKey, err := base64.StdEncoding.DecodeString(resp.TransactionKeyB64)
	if err != nil {
		return nil, ebics.NewProtocolError("malformed transaction key", err)
	}

	// Single-segment case: order data arrives inline with INIT.
	segments := []string{resp.OrderDataBase64}

	// Multi-segment download: accumulate TRANSFER segments.
	for seg := 2; seg <= resp.NumSegments; seg++ {
		transferReq := ebics.StaticHeader{
			HostID:      c.cfg.HostID,
			PartnerID:   c.cfg.PartnerID,
			UserID:      c.cfg.UserID,
			SystemID:    c.cfg.SystemID,
			TxnID:       resp.TransactionID,
			SegmentNum:  seg,
			LastSegment: seg == resp.NumSegments,
			Nonce:       hex.EncodeToString(nonce[:]),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		tdoc, err := ebics.BuildRequest(transferReq, "", authPriv)
		if err != nil {
			return nil, err
		}
		tRespBody, err := c.post(ctx, tdoc)
		if err != nil {
			return nil, err
		}
		tResp, err := ebics.ParseResponse(tRespBody, bankKeys.Authentication)
		if err != nil {
			return nil, err
		}
		segments = append(segments, tResp.OrderDataBase64)
	}

	return ebics.ReassembleDownload(segments, wrappedKey, encPriv)
}

// uploadOrder runs a full upload transaction (INIT -> TRANSFER* -> DONE)
// for orderType carrying orderData, returning the bank-assigned order id.
func (c *Client) uploadOrder(ctx context.Context, orderType ebics.OrderType, orderData []byte, clientKeys *ClientKeys, bankKeys *BankKeys) (string, error) {
	wrappedKey, segments, err := ebics.PrepareUpload(orderData, bankKeys.Encryption, ebics.MaxSegmentBytes)
	if err != nil {
		return "", err
	}

	nonce, err := ebics.NewTransactionID()
	if err != nil {
		return "", err
	}
	h := ebics.StaticHeader{
		HostID:           c.cfg.HostID,
		PartnerID:        c.cfg.PartnerID,
		UserID:           c.cfg.UserID,
		SystemID:         c.cfg.SystemID,
		OrderType:        string(orderType),
		Nonce:            hex.EncodeToString(nonce[:]),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		WrappedKeyBase64: base64.StdEncoding.EncodeToString(wrappedKey),
	}

	doc, err := ebics.BuildRequest(h, segments[0], clientKeys.Signature)
	if err != nil {
		return "", err
	}

	respBody, err := c.post(ctx, doc)
	if err != nil {
		return "", err
	}
	resp, err := ebics.ParseResponse(respBody, bankKeys.Authentication)
	if err != nil {
		return "", err
	}

	for seg := 2; seg <= len(segments); seg++ {
		transferReq := ebics.StaticHeader{
			HostID:      c.cfg.HostID,
			PartnerID:   c.cfg.PartnerID,
			UserID:      c.cfg.UserID,
			SystemID:    c.cfg.SystemID,
			TxnID:       resp.TransactionID,
			SegmentNum:  seg,
			LastSegment: seg == len(segments),
			Nonce:       hex.EncodeToString(nonce[:]),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		tdoc, err := ebics.BuildRequest(transferReq, segments[seg-1], clientKeys.Signature)
		if err != nil {
			return "", err
		}
		tRespBody, err := c.post(ctx, tdoc)
		if err != nil {
			return "", err
		}
		if _, err := ebics.ParseResponse(tRespBody, bankKeys.Authentication); err != nil {
			return "", err
		}
	}

	return resp.TransactionID, nil
}
