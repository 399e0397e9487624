package ebicsclient

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libeufin-nexus/internal/cryptoutil"
)

func TestLoadClientKeys_MissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	keys, err := LoadClientKeys(filepath.Join(dir, "nope.json"))
	require.NoError(t, err)
	assert.Nil(t, keys)
}

func TestClientKeys_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.json")

	sig, err := cryptoutil.GenRSA(2048)
	require.NoError(t, err)
	auth, err := cryptoutil.GenRSA(2048)
	require.NoError(t, err)
	enc, err := cryptoutil.GenRSA(2048)
	require.NoError(t, err)

	original := &ClientKeys{
		Signature:      sig,
		Authentication: auth,
		Encryption:     enc,
		SubmittedINI:   true,
		SubmittedHIA:   false,
	}
	require.NoError(t, SaveClientKeys(path, original))

	loaded, err := LoadClientKeys(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.SubmittedINI)
	assert.False(t, loaded.SubmittedHIA)
	assert.Equal(t, original.Signature.N, loaded.Signature.N)
	assert.Equal(t, original.Encryption.N, loaded.Encryption.N)
}

func TestBankKeys_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bank.json")

	auth, err := cryptoutil.GenRSA(2048)
	require.NoError(t, err)
	enc, err := cryptoutil.GenRSA(2048)
	require.NoError(t, err)

	original := &BankKeys{Authentication: &auth.PublicKey, Encryption: &enc.PublicKey, Accepted: false}
	require.NoError(t, SaveBankKeys(path, original))

	loaded, err := LoadBankKeys(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.False(t, loaded.Accepted)
	assert.Equal(t, original.Encryption.N, loaded.Encryption.N)
}

func TestSaveClientKeys_FileModeIsPrivate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.json")

	sig, err := cryptoutil.GenRSA(2048)
	require.NoError(t, err)

	require.NoError(t, SaveClientKeys(path, &ClientKeys{Signature: sig, Authentication: sig, Encryption: sig}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
