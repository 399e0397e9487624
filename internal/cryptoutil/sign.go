package cryptoutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// pssSaltLength is the fixed salt length EBICS A006 signatures require.
const pssSaltLength = 32

var pssOptions = &rsa.PSSOptions{
	SaltLength: pssSaltLength,
	Hash:       crypto.SHA256,
}

// SignA006 signs data with RSA-PSS, SHA-256, MGF1-SHA256, salt length 32.
// It fails deterministically if priv is smaller than MinKeyBits, since a
// too-small key cannot accommodate the fixed salt length plus digest.
func SignA006(data []byte, priv *rsa.PrivateKey) ([]byte, error) {
	if priv.N.BitLen() < MinKeyBits {
		return nil, ErrKeyTooSmall
	}
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: A006 sign failed: %w", err)
	}
	return sig, nil
}

// VerifyA006 verifies an RSA-PSS/SHA-256 signature produced by SignA006.
func VerifyA006(sig, data []byte, pub *rsa.PublicKey) bool {
	digest := sha256.Sum256(data)
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, pssOptions) == nil
}

// EbicsOrderDigest computes the SHA-256 digest of orderBytes with every
// byte equal to 0x0A, 0x0D or 0x1A removed first. This is the input fed
// to SignA006 for upload order data, per EBICS's order-digest rule.
func EbicsOrderDigest(orderBytes []byte) [32]byte {
	stripped := make([]byte, 0, len(orderBytes))
	for _, b := range orderBytes {
		if b == 0x0A || b == 0x0D || b == 0x1A {
			continue
		}
		stripped = append(stripped, b)
	}
	return sha256.Sum256(stripped)
}
