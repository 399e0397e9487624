package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenRSA_MarshalRoundTrip(t *testing.T) {
	key, err := GenRSA(MinKeyBits)
	require.NoError(t, err)

	privDER, err := MarshalRSAPrivate(key)
	require.NoError(t, err)
	loaded, err := LoadRSAPrivate(privDER)
	require.NoError(t, err)
	assert.Equal(t, key.N, loaded.N)

	pubDER, err := MarshalRSAPublic(&key.PublicKey)
	require.NoError(t, err)
	loadedPub, err := LoadRSAPublic(pubDER)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.N, loadedPub.N)
}

func TestLoadRSAPrivate_RejectsGarbage(t *testing.T) {
	_, err := LoadRSAPrivate([]byte("not a key"))
	require.ErrorIs(t, err, ErrEncoding)
}

func TestEbicsPubkeyDigest_Deterministic(t *testing.T) {
	key, err := GenRSA(MinKeyBits)
	require.NoError(t, err)

	d1 := EbicsPubkeyDigest(&key.PublicKey)
	d2 := EbicsPubkeyDigest(&key.PublicKey)
	assert.Equal(t, d1, d2)

	other, err := GenRSA(MinKeyBits)
	require.NoError(t, err)
	d3 := EbicsPubkeyDigest(&other.PublicKey)
	assert.NotEqual(t, d1, d3)
}
