package cryptoutil

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPwHash_VerifyRoundTrip(t *testing.T) {
	stored, err := PwHash("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, PwVerify("correct horse battery staple", stored, false))
	assert.False(t, PwVerify("wrong password", stored, false))
}

func TestPwHash_DifferentSaltsPerCall(t *testing.T) {
	a, err := PwHash("same password")
	require.NoError(t, err)
	b, err := PwHash("same password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPwVerify_LegacyFormAcceptedOnlyWhenOptedIn(t *testing.T) {
	sum := sha256.Sum256([]byte("legacy-pw"))
	legacy := "sha256$" + base64.StdEncoding.EncodeToString(sum[:])

	assert.True(t, PwVerify("legacy-pw", legacy, true))
	assert.False(t, PwVerify("legacy-pw", legacy, false))
	assert.False(t, PwVerify("wrong", legacy, true))
}

func TestPwVerify_RejectsMalformedStoredValue(t *testing.T) {
	assert.False(t, PwVerify("pw", "not-a-recognized-scheme", true))
}
