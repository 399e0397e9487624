package iso20022

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libeufin-nexus/internal/xmlutil"
)

// fakeDialect is a minimal dialect.Dialect implementation for extractor
// tests, avoiding a dependency on any real bank's registered package.
type fakeDialect struct{}

func (fakeDialect) Name() string { return "fake" }

func (fakeDialect) SynthesizeBankID(msgID string, nbOfTxs, index int) string {
	return "synth:" + msgID
}

func (fakeDialect) ExtractSubject(rmtInf *xmlutil.Walker) string {
	if rmtInf == nil {
		return ""
	}
	u, ok, _ := rmtInf.Optional("Ustrd")
	if !ok {
		return ""
	}
	return u.Text()
}

const camt054Fixture = `<?xml version="1.0"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.054.001.04">
  <BkToCstmrDbtCdtNtfctn>
    <GrpHdr><MsgId>MSG-1</MsgId></GrpHdr>
    <Ntfctn>
      <Ntry>
        <Amt Ccy="CHF">10.00</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <Sts><Cd>BOOK</Cd></Sts>
        <BookgDt><Dt>2023-12-19</Dt></BookgDt>
        <NtryDtls><TxDtls>
          <Refs><AcctSvcrRef>REF-1</AcctSvcrRef></Refs>
          <RmtInf><Ustrd>G1XTY6HGWGMVRM7E6XQ4JHJK561ETFDFTJZ7JVGV543XZCB27YBG</Ustrd></RmtInf>
          <RltdPties>
            <Dbtr><Nm>Mr Test</Nm></Dbtr>
            <DbtrAcct><Id><IBAN>CH7389144832588726658</IBAN></Id></DbtrAcct>
          </RltdPties>
        </TxDtls></NtryDtls>
      </Ntry>
      <Ntry>
        <Amt Ccy="CHF">3.00</Amt>
        <CdtDbtInd>DBIT</CdtDbtInd>
        <Sts><Cd>BOOK</Cd></Sts>
        <BookgDt><Dt>2024-01-15</Dt></BookgDt>
        <NtryDtls><TxDtls>
          <Refs><EndToEndId>E2E-1</EndToEndId></Refs>
        </TxDtls></NtryDtls>
      </Ntry>
      <Ntry>
        <Amt Ccy="CHF">3.00</Amt>
        <CdtDbtInd>DBIT</CdtDbtInd>
        <RvslInd>true</RvslInd>
        <Sts><Cd>BOOK</Cd></Sts>
        <BookgDt><Dt>2024-01-16</Dt></BookgDt>
        <NtryDtls><TxDtls>
          <Refs><EndToEndId>E2E-1</EndToEndId></Refs>
          <AddtlNtryInf>AC04 account closed</AddtlNtryInf>
        </TxDtls></NtryDtls>
      </Ntry>
      <Ntry>
        <Amt Ccy="CHF">1.00</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <Sts><Cd>PDNG</Cd></Sts>
        <BookgDt><Dt>2024-01-17</Dt></BookgDt>
      </Ntry>
      <Ntry>
        <Amt Ccy="CHF">2.53</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <Sts><Cd>BOOK</Cd></Sts>
        <BookgDt><Dt>2023-12-19</Dt></BookgDt>
      </Ntry>
    </Ntfctn>
  </BkToCstmrDbtCdtNtfctn>
</Document>`

func TestExtract_MixedEntries(t *testing.T) {
	notifications, err := Extract([]byte(camt054Fixture), "CHF", fakeDialect{})
	require.NoError(t, err)
	require.Len(t, notifications, 4)

	incoming := notifications[0]
	assert.Equal(t, KindIncoming, incoming.Kind)
	require.NotNil(t, incoming.Incoming)
	assert.Equal(t, "REF-1", incoming.Incoming.BankID)
	assert.Equal(t, Amount{Currency: "CHF", Value: 10, Fraction: 0}, incoming.Incoming.Amount)
	assert.Equal(t, "G1XTY6HGWGMVRM7E6XQ4JHJK561ETFDFTJZ7JVGV543XZCB27YBG", incoming.Incoming.Subject)
	assert.Equal(t, time.Date(2023, 12, 19, 0, 0, 0, 0, time.UTC), incoming.Incoming.ExecutedAt)
	assert.Equal(t, "payto://iban/CH7389144832588726658?receiver-name=Mr+Test", incoming.Incoming.DebitPayto)

	outgoing := notifications[1]
	assert.Equal(t, KindOutgoing, outgoing.Kind)
	require.NotNil(t, outgoing.Outgoing)
	assert.Equal(t, "E2E-1", outgoing.Outgoing.EndToEndID)
	assert.Equal(t, Amount{Currency: "CHF", Value: 3, Fraction: 0}, outgoing.Outgoing.Amount)

	reversal := notifications[2]
	assert.Equal(t, KindReversal, reversal.Kind)
	require.NotNil(t, reversal.Reversal)
	assert.Equal(t, "E2E-1", reversal.Reversal.MessageID)
	assert.Equal(t, "AC04 account closed", reversal.Reversal.Reason)

	// The PDNG entry is skipped entirely; the next emitted notification
	// is the final CRDT entry with no AcctSvcrRef/EndToEndId, falling
	// back to the dialect's synthesized bank_id.
	synthesized := notifications[3]
	assert.Equal(t, KindIncoming, synthesized.Kind)
	assert.Equal(t, "synth:MSG-1", synthesized.Incoming.BankID)
	assert.Equal(t, Amount{Currency: "CHF", Value: 2, Fraction: 53_000_000}, synthesized.Incoming.Amount)
}

func TestExtract_Idempotent(t *testing.T) {
	first, err := Extract([]byte(camt054Fixture), "CHF", fakeDialect{})
	require.NoError(t, err)
	second, err := Extract([]byte(camt054Fixture), "CHF", fakeDialect{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtract_RejectsUnrecognisedWrapper(t *testing.T) {
	_, err := Extract([]byte(`<Document><Unknown/></Document>`), "CHF", fakeDialect{})
	assert.Error(t, err)
}

func TestExtract_RejectsBadCdtDbtInd(t *testing.T) {
	doc := `<Document>
  <BkToCstmrDbtCdtNtfctn>
    <GrpHdr><MsgId>MSG-2</MsgId></GrpHdr>
    <Ntfctn>
      <Ntry>
        <Amt Ccy="CHF">1.00</Amt>
        <CdtDbtInd>XXXX</CdtDbtInd>
        <Sts><Cd>BOOK</Cd></Sts>
        <BookgDt><Dt>2024-01-01</Dt></BookgDt>
      </Ntry>
    </Ntfctn>
  </BkToCstmrDbtCdtNtfctn>
</Document>`
	_, err := Extract([]byte(doc), "CHF", fakeDialect{})
	assert.Error(t, err)
}
