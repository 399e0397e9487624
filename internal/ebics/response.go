package ebics

import (
	"bytes"
	"crypto/rsa"
	"encoding/base64"
	"strconv"

	"libeufin-nexus/internal/cryptoutil"
	"libeufin-nexus/internal/xmlutil"
)

// Response is the parsed subset of an ebicsResponse document this
// client needs: the technical and business return codes, the
// transaction id (download INIT), and any inline order data segment.
type Response struct {
	ReturnCode        string
	ReportText        string
	TransactionID     string
	OrderDataBase64   string
	TransactionKeyB64 string // DataEncryptionInfo/TransactionKey, INIT download only
	NumSegments       int
	SegmentNumber     int
}

// ParseResponse parses an ebicsResponse document, verifies its
// AuthSignature against bankAuthKey, and classifies a non-"000000"
// return code as an *ebics.Error via NewBankError.
//
// bankAuthKey may be nil during the INI/HIA/HPB bootstrap dialog, when
// no accepted bank authentication key exists yet to verify against --
// that dialog's integrity instead rests on the operator's out-of-band
// fingerprint confirmation (spec §3). Every other response is parsed
// with the accepted bank key and fails closed if the signature does
// not verify (spec §4.3: "Verified by C3 on every response").
func ParseResponse(body []byte, bankAuthKey *rsa.PublicKey) (*Response, error) {
	root, err := xmlutil.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, NewProtocolError("failed to parse ebicsResponse", err)
	}

	if bankAuthKey != nil {
		if err := verifyAuthSignature(root, bankAuthKey); err != nil {
			return nil, err
		}
	}

	w := xmlutil.NewWalker(root)
	header, err := w.Require("header")
	if err != nil {
		return nil, NewProtocolError("ebicsResponse missing header", err)
	}
	mutable, err := header.Require("mutable")
	if err != nil {
		return nil, NewProtocolError("ebicsResponse header missing mutable", err)
	}
	returnCodeNode, err := mutable.Require("ReturnCode")
	if err != nil {
		return nil, NewProtocolError("ebicsResponse missing ReturnCode", err)
	}
	returnCode, err := returnCodeNode.RequireText()
	if err != nil {
		return nil, NewProtocolError("ebicsResponse ReturnCode empty", err)
	}

	resp := &Response{ReturnCode: returnCode}
	if reportNode, ok, _ := mutable.Optional("ReportText"); ok {
		resp.ReportText = reportNode.Text()
	}

	static, err := header.Require("static")
	if err == nil {
		if txn, ok, _ := static.Optional("TransactionID"); ok {
			resp.TransactionID = txn.Text()
		}
		if segs, ok, _ := static.Optional("NumSegments"); ok {
			resp.NumSegments, _ = strconv.Atoi(segs.Text())
		}
	}
	if segNum, ok, _ := mutable.Optional("SegmentNumber"); ok {
		resp.SegmentNumber, _ = strconv.Atoi(segNum.Text())
	}

	if body2, ok, _ := w.Optional("body"); ok {
		if xfer, ok2, _ := body2.Optional("DataTransfer"); ok2 {
			if od, ok3, _ := xfer.Optional("OrderData"); ok3 {
				resp.OrderDataBase64 = od.Text()
			}
			if encInfo, ok3, _ := xfer.Optional("DataEncryptionInfo"); ok3 {
				if key, ok4, _ := encInfo.Optional("TransactionKey"); ok4 {
					resp.TransactionKeyB64 = key.Text()
				}
			}
		}
	}

	if returnCode != "000000" {
		return resp, NewBankError(returnCode, resp.ReportText)
	}
	return resp, nil
}

// verifyAuthSignature extracts AuthSignature/SignatureValue from root,
// canonicalizes root with AuthSignature elided the same way BuildRequest
// does for the outgoing request, and verifies the A006 signature against
// bankAuthKey.
func verifyAuthSignature(root *xmlutil.Node, bankAuthKey *rsa.PublicKey) error {
	w := xmlutil.NewWalker(root)
	authSig, err := w.Require("AuthSignature")
	if err != nil {
		return NewProtocolError("ebicsResponse missing AuthSignature", err)
	}
	sigNode, err := authSig.Require("SignatureValue")
	if err != nil {
		return NewProtocolError("ebicsResponse AuthSignature missing SignatureValue", err)
	}
	sigText, err := sigNode.RequireText()
	if err != nil {
		return NewProtocolError("ebicsResponse SignatureValue empty", err)
	}
	sig, err := base64.StdEncoding.DecodeString(sigText)
	if err != nil {
		return NewProtocolError("ebicsResponse SignatureValue not valid base64", err)
	}

	canon := xmlutil.Canonicalize(root, "AuthSignature")
	digest := cryptoutil.EbicsOrderDigest(canon)
	if !cryptoutil.VerifyA006(sig, digest[:], bankAuthKey) {
		return NewProtocolError("ebicsResponse AuthSignature verification failed", nil)
	}
	return nil
}
