package ebics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libeufin-nexus/internal/cryptoutil"
)

func TestPrepareUpload_ReassembleDownload_RoundTrip(t *testing.T) {
	key, err := cryptoutil.GenRSA(cryptoutil.MinKeyBits)
	require.NoError(t, err)

	orderData := []byte("<Document>pain.001 payload, repeated several times to exercise segmentation. " +
		"Lorem ipsum dolor sit amet consectetur adipiscing elit.</Document>")

	wrappedKey, segments, err := PrepareUpload(orderData, &key.PublicKey, 32)
	require.NoError(t, err)
	assert.Greater(t, len(segments), 1, "small maxSegmentBytes should force multiple segments")

	got, err := ReassembleDownload(segments, wrappedKey, key)
	require.NoError(t, err)
	assert.Equal(t, orderData, got)
}

func TestPrepareUpload_SingleSegmentForSmallPayload(t *testing.T) {
	key, err := cryptoutil.GenRSA(cryptoutil.MinKeyBits)
	require.NoError(t, err)

	wrappedKey, segments, err := PrepareUpload([]byte("tiny"), &key.PublicKey, MaxSegmentBytes)
	require.NoError(t, err)
	assert.Len(t, segments, 1)

	got, err := ReassembleDownload(segments, wrappedKey, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("tiny"), got)
}

func TestNewTransactionID_Unique(t *testing.T) {
	a, err := NewTransactionID()
	require.NoError(t, err)
	b, err := NewTransactionID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
