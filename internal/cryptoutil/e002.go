package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
)

// aesKeyBits is the EBICS E002 transport key size: AES-128.
const aesKeyBits = 128

var zeroIV = make([]byte, aes.BlockSize)

// x923Pad pads plaintext to a multiple of aes.BlockSize using ANSI X9.23:
// zero bytes followed by a single trailing length byte (1-16) giving the
// pad length, including itself.
func x923Pad(plaintext []byte) []byte {
	padLen := aes.BlockSize - (len(plaintext) % aes.BlockSize)
	padded := make([]byte, len(plaintext)+padLen)
	copy(padded, plaintext)
	padded[len(padded)-1] = byte(padLen)
	return padded
}

// x923Unpad validates and strips ANSI X9.23 padding.
func x923Unpad(padded []byte) ([]byte, error) {
	if len(padded) == 0 || len(padded)%aes.BlockSize != 0 {
		return nil, ErrDecrypt
	}
	padLen := int(padded[len(padded)-1])
	if padLen < 1 || padLen > aes.BlockSize || padLen > len(padded) {
		return nil, ErrDecrypt
	}
	for _, b := range padded[len(padded)-padLen : len(padded)-1] {
		if b != 0 {
			return nil, ErrDecrypt
		}
	}
	return padded[:len(padded)-padLen], nil
}

// E002Wrap encrypts plaintext with a freshly generated AES-128 key in CBC
// mode with a zero IV and X9.23 padding, then wraps that key with
// PKCS#1v1.5 under the bank's encryption public key. Returns the
// ciphertext and the wrapped key, both of which travel in the EBICS
// order-data envelope.
func E002Wrap(plaintext []byte, bankEncPub *rsa.PublicKey) (ciphertext, wrappedKey []byte, err error) {
	key := make([]byte, aesKeyBits/8)
	if _, err := rand.Read(key); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyGen, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptoutil: E002 cipher setup failed: %w", err)
	}

	padded := x923Pad(plaintext)
	ciphertext = make([]byte, len(padded))
	cbc := cipher.NewCBCEncrypter(block, zeroIV)
	cbc.CryptBlocks(ciphertext, padded)

	wrappedKey, err = rsa.EncryptPKCS1v15(rand.Reader, bankEncPub, key)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptoutil: E002 key wrap failed: %w", err)
	}

	return ciphertext, wrappedKey, nil
}

// E002Unwrap reverses E002Wrap: it unwraps the AES key with the client's
// encryption private key, then decrypts and un-pads the ciphertext. Any
// padding or unwrap failure is reported as the generic ErrDecrypt so the
// caller cannot distinguish a bad key from a bad pad (no padding oracle).
func E002Unwrap(ciphertext, wrappedKey []byte, clientEncPriv *rsa.PrivateKey) ([]byte, error) {
	key, err := rsa.DecryptPKCS1v15(rand.Reader, clientEncPriv, wrappedKey)
	if err != nil || len(key) != aesKeyBits/8 {
		return nil, ErrDecrypt
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecrypt
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecrypt
	}

	padded := make([]byte, len(ciphertext))
	cbc := cipher.NewCBCDecrypter(block, zeroIV)
	cbc.CryptBlocks(padded, ciphertext)

	return x923Unpad(padded)
}
