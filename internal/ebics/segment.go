package ebics

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"libeufin-nexus/internal/cryptoutil"
)

// MaxSegmentBytes is the segment size PrepareUpload uses when its caller
// passes no positive limit. The EBICS client always passes this value;
// it does not read a segment limit from the bank's INIT response.
const MaxSegmentBytes = 1 << 20

// NewTransactionID generates a fresh 128-bit EBICS transaction id.
func NewTransactionID() ([16]byte, error) {
	var id [16]byte
	if _, err := rand.Read(id[:]); err != nil {
		return id, fmt.Errorf("ebics: failed to generate transaction id: %w", err)
	}
	return id, nil
}

// deflateCompress compresses orderData with DEFLATE in the zlib framing
// (zlib header and Adler-32 trailer) EBICS order data uses.
func deflateCompress(orderData []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("ebics: deflate writer setup failed: %w", err)
	}
	if _, err := w.Write(orderData); err != nil {
		return nil, fmt.Errorf("ebics: deflate compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("ebics: deflate close failed: %w", err)
	}
	return buf.Bytes(), nil
}

// deflateDecompress reverses deflateCompress.
func deflateDecompress(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, NewProtocolError("failed to inflate order data", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, NewProtocolError("failed to inflate order data", err)
	}
	return out, nil
}

// PrepareUpload compresses, encrypts and base64-segments orderData for
// an EBICS upload: deflate -> E002 wrap -> base64 -> split into
// maxSegmentBytes chunks. Returns the wrapped AES key and the ordered
// list of base64 segments to send in each TRANSFER step.
func PrepareUpload(orderData []byte, bankEncPub *rsa.PublicKey, maxSegmentBytes int) (wrappedKey []byte, segments []string, err error) {
	if maxSegmentBytes <= 0 {
		maxSegmentBytes = MaxSegmentBytes
	}

	compressed, err := deflateCompress(orderData)
	if err != nil {
		return nil, nil, err
	}

	ciphertext, wrappedKey, err := cryptoutil.E002Wrap(compressed, bankEncPub)
	if err != nil {
		return nil, nil, fmt.Errorf("ebics: E002 wrap failed: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(ciphertext)
	segments = splitIntoSegments(encoded, maxSegmentBytes)
	return wrappedKey, segments, nil
}

// splitIntoSegments splits a base64 string into chunks no larger than
// maxLen, preserving order.
func splitIntoSegments(encoded string, maxLen int) []string {
	if len(encoded) == 0 {
		return []string{""}
	}
	var segments []string
	for i := 0; i < len(encoded); i += maxLen {
		end := i + maxLen
		if end > len(encoded) {
			end = len(encoded)
		}
		segments = append(segments, encoded[i:end])
	}
	return segments
}

// ReassembleDownload reverses PrepareUpload's framing for a downloaded
// order: joins base64 segments, decodes, E002-unwraps with the client's
// encryption key, and inflates back to the original order data bytes.
func ReassembleDownload(segments []string, wrappedKey []byte, clientEncPriv *rsa.PrivateKey) ([]byte, error) {
	encoded := ""
	for _, s := range segments {
		encoded += s
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, NewProtocolError("malformed base64 order data", err)
	}

	compressed, err := cryptoutil.E002Unwrap(ciphertext, wrappedKey, clientEncPriv)
	if err != nil {
		return nil, NewProtocolError("E002 unwrap failed", err)
	}

	return deflateDecompress(compressed)
}
