// Package cryptoutil implements the exact cryptographic primitives EBICS
// 2.5/3.0 mandates: RSA-PSS signing, RSA PKCS#1v1.5 key transport,
// AES-128-CBC with a zero IV and X9.23 padding, the EBICS public-key
// fingerprint, and the passphrase hashing scheme used for config-stored
// HTTP bearer credentials.
//
// EBICS fixes these primitives exactly; deviating from them breaks
// interoperability with the bank, so this package is intentionally built
// on crypto/rsa, crypto/aes and crypto/sha256 rather than a third-party
// crypto library: the standard library already implements RSA-PSS with
// an explicit salt length and MGF1-SHA256, and AES-CBC, so there is
// nothing a third-party package would add except an API it doesn't need.
package cryptoutil

import "errors"

// ErrKeyGen is returned when key generation fails (RNG exhaustion).
var ErrKeyGen = errors.New("cryptoutil: key generation failed")

// ErrEncoding is returned when a DER-encoded key fails to parse.
var ErrEncoding = errors.New("cryptoutil: key encoding error")

// ErrKeyTooSmall is returned when signing with a key below the minimum
// modulus size EBICS requires for RSA-PSS.
var ErrKeyTooSmall = errors.New("cryptoutil: RSA key too small for A006 signing")

// ErrDecrypt is returned on E002 unwrap failures (bad padding or a key
// mismatch); the message is deliberately generic to avoid turning this
// into a padding oracle.
var ErrDecrypt = errors.New("cryptoutil: E002 decryption failed")
