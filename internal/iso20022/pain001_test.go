package iso20022

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libeufin-nexus/internal/xmlutil"
)

func TestBuildPain001_RendersExpectedFields(t *testing.T) {
	doc, err := BuildPain001(Pain001Input{
		MessageID:    "MSG-1",
		EndToEndID:   "E2E-1",
		CreationTime: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		DebtorIBAN:   "CH7389144832588726658",
		DebtorName:   "Nexus Exchange",
		DebtorBIC:    "POFICHBEXXX",
		Amount:       Amount{Currency: "CHF", Value: 3, Fraction: 0},
		CreditPayto:  PayTo{IBAN: "CH1234567890", ReceiverName: "Alice"},
		Subject:      "G1XTY6HGWGMVRM7E6XQ4JHJK561ETFDFTJZ7JVGV543XZCB27YBG https://exchange.example.com/",
	})
	require.NoError(t, err)

	root, err := xmlutil.Parse(bytes.NewReader(doc))
	require.NoError(t, err)
	w := xmlutil.NewWalker(root)

	cctInitn, err := w.Require("CstmrCdtTrfInitn")
	require.NoError(t, err)

	grpHdr, err := cctInitn.Require("GrpHdr")
	require.NoError(t, err)
	msgID, err := grpHdr.Require("MsgId")
	require.NoError(t, err)
	text, err := msgID.RequireText()
	require.NoError(t, err)
	assert.Equal(t, "MSG-1", text)

	pmtInf, err := cctInitn.Require("PmtInf")
	require.NoError(t, err)
	txInf, err := pmtInf.Require("CdtTrfTxInf")
	require.NoError(t, err)

	endToEnd, err := txInf.Require("PmtId")
	require.NoError(t, err)
	e2eNode, err := endToEnd.Require("EndToEndId")
	require.NoError(t, err)
	e2eText, err := e2eNode.RequireText()
	require.NoError(t, err)
	assert.Equal(t, "E2E-1", e2eText)

	amt, err := txInf.Require("Amt")
	require.NoError(t, err)
	instdAmt, err := amt.Require("InstdAmt")
	require.NoError(t, err)
	ccy, ok := instdAmt.OptionalAttr("Ccy")
	require.True(t, ok)
	assert.Equal(t, "CHF", ccy)
}

func TestBuildPain001_RequiresCurrency(t *testing.T) {
	_, err := BuildPain001(Pain001Input{Amount: Amount{}})
	assert.Error(t, err)
}

func TestDecimalString(t *testing.T) {
	assert.Equal(t, "3.00", decimalString(Amount{Value: 3}))
	assert.Equal(t, "2.53", decimalString(Amount{Value: 2, Fraction: 53_000_000}))
}
