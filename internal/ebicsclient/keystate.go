// Package ebicsclient implements the EBICS client (C4): a stateful
// session object that posts to the bank URL, runs the INIT and TRANSFER
// phases of each EBICS dialog (no RECEIPT request is sent), verifies
// the bank's authentication signature, and persists the subscriber
// key-state to the files named in nexus-ebics config.
package ebicsclient

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"libeufin-nexus/internal/cryptoutil"
)

// ClientKeys holds the three RSA key pairs a subscriber owns, persisted
// as an ownership-restricted file (mode 600) at client_private_keys_file.
type ClientKeys struct {
	Signature     *rsa.PrivateKey
	Authentication *rsa.PrivateKey
	Encryption    *rsa.PrivateKey
	SubmittedINI  bool
	SubmittedHIA  bool
}

// clientKeysFile is the JSON-on-disk representation; private keys are
// stored as PKCS#8 DER, base64-encoded.
type clientKeysFile struct {
	SignatureDER      string `json:"signature_der"`
	AuthenticationDER string `json:"authentication_der"`
	EncryptionDER     string `json:"encryption_der"`
	SubmittedINI      bool   `json:"submitted_ini"`
	SubmittedHIA      bool   `json:"submitted_hia"`
}

// BankKeys holds the two RSA public keys fetched from the bank via HPB,
// persisted at bank_public_keys_file. Accepted starts false and is
// flipped only by an explicit operator action after fingerprint
// verification (spec §3: "Bank key set").
type BankKeys struct {
	Authentication *rsa.PublicKey
	Encryption     *rsa.PublicKey
	Accepted       bool
}

type bankKeysFile struct {
	AuthenticationDER string `json:"authentication_der"`
	EncryptionDER     string `json:"encryption_der"`
	Accepted          bool   `json:"accepted"`
}

// LoadClientKeys reads and parses the client key file. A missing file
// is not an error: callers use (nil, nil) to mean "generate fresh keys".
func LoadClientKeys(path string) (*ClientKeys, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ebicsclient: failed to read client keys: %w", err)
	}

	var f clientKeysFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoutil.ErrEncoding, err)
	}

	sig, err := decodeKey(f.SignatureDER)
	if err != nil {
		return nil, err
	}
	auth, err := decodeKey(f.AuthenticationDER)
	if err != nil {
		return nil, err
	}
	enc, err := decodeKey(f.EncryptionDER)
	if err != nil {
		return nil, err
	}

	return &ClientKeys{
		Signature:      sig,
		Authentication: auth,
		Encryption:     enc,
		SubmittedINI:   f.SubmittedINI,
		SubmittedHIA:   f.SubmittedHIA,
	}, nil
}

func decodeKey(b64 string) (*rsa.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoutil.ErrEncoding, err)
	}
	return cryptoutil.LoadRSAPrivate(der)
}

// SaveClientKeys writes the key file atomically (write to a temp file in
// the same directory, then rename) with mode 600, so a crash mid-write
// never leaves a torn or world-readable key file on disk.
func SaveClientKeys(path string, keys *ClientKeys) error {
	sigDER, err := cryptoutil.MarshalRSAPrivate(keys.Signature)
	if err != nil {
		return err
	}
	authDER, err := cryptoutil.MarshalRSAPrivate(keys.Authentication)
	if err != nil {
		return err
	}
	encDER, err := cryptoutil.MarshalRSAPrivate(keys.Encryption)
	if err != nil {
		return err
	}

	f := clientKeysFile{
		SignatureDER:      base64.StdEncoding.EncodeToString(sigDER),
		AuthenticationDER: base64.StdEncoding.EncodeToString(authDER),
		EncryptionDER:     base64.StdEncoding.EncodeToString(encDER),
		SubmittedINI:      keys.SubmittedINI,
		SubmittedHIA:      keys.SubmittedHIA,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("ebicsclient: failed to marshal client keys: %w", err)
	}

	return writeFileAtomic(path, data)
}

// LoadBankKeys reads and parses the bank key file, or returns (nil, nil)
// if it does not yet exist.
func LoadBankKeys(path string) (*BankKeys, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ebicsclient: failed to read bank keys: %w", err)
	}

	var f bankKeysFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoutil.ErrEncoding, err)
	}

	authDER, err := base64.StdEncoding.DecodeString(f.AuthenticationDER)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoutil.ErrEncoding, err)
	}
	auth, err := cryptoutil.LoadRSAPublic(authDER)
	if err != nil {
		return nil, err
	}

	encDER, err := base64.StdEncoding.DecodeString(f.EncryptionDER)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoutil.ErrEncoding, err)
	}
	enc, err := cryptoutil.LoadRSAPublic(encDER)
	if err != nil {
		return nil, err
	}

	return &BankKeys{Authentication: auth, Encryption: enc, Accepted: f.Accepted}, nil
}

// SaveBankKeys writes the bank key file atomically with mode 600.
func SaveBankKeys(path string, keys *BankKeys) error {
	authDER, err := cryptoutil.MarshalRSAPublic(keys.Authentication)
	if err != nil {
		return err
	}
	encDER, err := cryptoutil.MarshalRSAPublic(keys.Encryption)
	if err != nil {
		return err
	}

	f := bankKeysFile{
		AuthenticationDER: base64.StdEncoding.EncodeToString(authDER),
		EncryptionDER:     base64.StdEncoding.EncodeToString(encDER),
		Accepted:          keys.Accepted,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("ebicsclient: failed to marshal bank keys: %w", err)
	}

	return writeFileAtomic(path, data)
}

// writeFileAtomic writes data to a temp file in path's directory with
// mode 600, then renames it over path, per spec §5's "O_CREAT|O_EXCL
// then atomically renamed" key-file requirement.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("ebicsclient: failed to write temp key file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("ebicsclient: failed to write temp key file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ebicsclient: failed to write temp key file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("ebicsclient: failed to rename temp key file: %w", err)
	}
	return nil
}
