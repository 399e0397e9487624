package cryptoutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"strings"
)

// MinKeyBits is the minimum RSA modulus size this package will sign
// with. EBICS subscriber keys are generated at 2048 bits or larger.
const MinKeyBits = 2048

// GenRSA generates a fresh RSA key pair of the given bit size.
func GenRSA(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGen, err)
	}
	return key, nil
}

// LoadRSAPrivate strictly parses a PKCS#8 DER-encoded RSA private key.
func LoadRSAPrivate(pkcs8DER []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(pkcs8DER)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrEncoding)
	}
	return rsaKey, nil
}

// LoadRSAPublic strictly parses an X.509 SubjectPublicKeyInfo DER-encoded
// RSA public key.
func LoadRSAPublic(x509SPKIDER []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(x509SPKIDER)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrEncoding)
	}
	return rsaKey, nil
}

// MarshalRSAPrivate serializes a private key as PKCS#8 DER, the form
// LoadRSAPrivate expects back.
func MarshalRSAPrivate(key *rsa.PrivateKey) ([]byte, error) {
	return x509.MarshalPKCS8PrivateKey(key)
}

// MarshalRSAPublic serializes a public key as X.509 SPKI DER, the form
// LoadRSAPublic expects back.
func MarshalRSAPublic(pub *rsa.PublicKey) ([]byte, error) {
	return x509.MarshalPKIXPublicKey(pub)
}

// trimLeadingZeroNibbles strips leading zero hex nibbles from a big-endian
// byte string's hex encoding, per EBICS 2.5 §4.4.1.2.3. An all-zero input
// collapses to a single "0" digit.
func trimLeadingZeroNibbles(hexStr string) string {
	trimmed := strings.TrimLeft(hexStr, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// EbicsPubkeyDigest computes the EBICS subscriber public-key fingerprint:
// SHA-256 over the lowercase hex of the exponent, a literal space, and
// the lowercase hex of the modulus, with leading zero nibbles stripped
// from both. This is the 32-byte fingerprint used in the key letter the
// operator confirms out of band and in HPB bank-key acceptance.
func EbicsPubkeyDigest(pub *rsa.PublicKey) [32]byte {
	expHex := trimLeadingZeroNibbles(fmt.Sprintf("%x", pub.E))
	modHex := trimLeadingZeroNibbles(fmt.Sprintf("%x", pub.N))
	return sha256.Sum256([]byte(expHex + " " + modHex))
}
