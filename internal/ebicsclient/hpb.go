package ebicsclient

import (
	"bytes"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"

	"libeufin-nexus/internal/ebics"
	"libeufin-nexus/internal/xmlutil"
)

// parseHPBKeys extracts the bank's authentication and encryption public
// keys from a decrypted HPBResponseOrderData document. Both keys are
// carried as RSAKeyValue/Modulus+Exponent pairs, base64-encoded, under
// AuthenticationPubKeyInfo and EncryptionPubKeyInfo respectively.
func parseHPBKeys(orderDataXML []byte) (auth, enc *rsa.PublicKey, err error) {
	root, err := xmlutil.Parse(bytes.NewReader(orderDataXML))
	if err != nil {
		return nil, nil, ebics.NewProtocolError("failed to parse HPB order data", err)
	}
	w := xmlutil.NewWalker(root)

	authInfo, err := w.Require("AuthenticationPubKeyInfo")
	if err != nil {
		return nil, nil, ebics.NewProtocolError("HPB order data missing AuthenticationPubKeyInfo", err)
	}
	auth, err = parseRSAKeyValue(authInfo)
	if err != nil {
		return nil, nil, err
	}

	encInfo, err := w.Require("EncryptionPubKeyInfo")
	if err != nil {
		return nil, nil, ebics.NewProtocolError("HPB order data missing EncryptionPubKeyInfo", err)
	}
	enc, err = parseRSAKeyValue(encInfo)
	if err != nil {
		return nil, nil, err
	}

	return auth, enc, nil
}

func parseRSAKeyValue(info *xmlutil.Walker) (*rsa.PublicKey, error) {
	keyValue, err := info.Require("RSAKeyValue")
	if err != nil {
		return nil, ebics.NewProtocolError("PubKeyInfo missing RSAKeyValue", err)
	}

	modulusNode, err := keyValue.Require("Modulus")
	if err != nil {
		return nil, ebics.NewProtocolError("RSAKeyValue missing Modulus", err)
	}
	modulusB64, err := modulusNode.RequireText()
	if err != nil {
		return nil, ebics.NewProtocolError("RSAKeyValue Modulus empty", err)
	}

	exponentNode, err := keyValue.Require("Exponent")
	if err != nil {
		return nil, ebics.NewProtocolError("RSAKeyValue missing Exponent", err)
	}
	exponentB64, err := exponentNode.RequireText()
	if err != nil {
		return nil, ebics.NewProtocolError("RSAKeyValue Exponent empty", err)
	}

	modulusBytes, err := base64.StdEncoding.DecodeString(modulusB64)
	if err != nil {
		return nil, ebics.NewProtocolError("malformed RSAKeyValue Modulus", err)
	}
	exponentBytes, err := base64.StdEncoding.DecodeString(exponentB64)
	if err != nil {
		return nil, ebics.NewProtocolError("malformed RSAKeyValue Exponent", err)
	}

	n := new(big.Int).SetBytes(modulusBytes)
	e := new(big.Int).SetBytes(exponentBytes)
	if !e.IsInt64() {
		return nil, fmt.Errorf("ebicsclient: RSAKeyValue Exponent too large")
	}

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}
