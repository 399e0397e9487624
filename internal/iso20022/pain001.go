package iso20022

import (
	"fmt"
	"strings"
	"time"

	"libeufin-nexus/internal/xmlutil"
)

// pain001Namespace is the CustomerCreditTransferInitiationV03 namespace
// the gateway emits; EBICS 3.0 banks accept this version across the
// examples the spec's CCT upload is grounded on (spec §4.6).
const pain001Namespace = "urn:iso:std:iso:20022:tech:xsd:pain.001.001.03"

// Pain001Input carries everything BuildPain001 needs to compose a single
// credit-transfer initiation document; the store supplies MessageID and
// EndToEndID (spec §4.6's derived id, see store.DeriveEndToEndID) so the
// wire document and the dedup/reconciliation keys never drift apart.
type Pain001Input struct {
	MessageID    string
	EndToEndID   string
	CreationTime time.Time
	DebtorIBAN   string
	DebtorName   string
	DebtorBIC    string
	Amount       Amount
	CreditPayto  PayTo
	Subject      string
}

// BuildPain001 renders a CustomerCreditTransferInitiationV03 document
// for a single credit transfer, using xmlutil.Builder the same way the
// EBICS request layer composes its documents (internal/ebics/request.go).
func BuildPain001(in Pain001Input) ([]byte, error) {
	if in.Amount.Currency == "" {
		return nil, fmt.Errorf("iso20022: pain.001 amount has no currency")
	}

	b := xmlutil.NewBuilder(pain001Namespace, "Document")
	root := b.Root().El("CstmrCdtTrfInitn")

	grpHdr := root.El("GrpHdr")
	grpHdr.El("MsgId").SetText(in.MessageID)
	grpHdr.El("CreDtTm").SetText(in.CreationTime.UTC().Format(time.RFC3339))
	grpHdr.El("NbOfTxs").SetText("1")
	grpHdr.El("CtrlSum").SetText(decimalString(in.Amount))
	grpHdr.El("InitgPty/Nm").SetText(in.DebtorName)

	pmtInf := root.El("PmtInf")
	pmtInf.El("PmtInfId").SetText(in.MessageID)
	pmtInf.El("PmtMtd").SetText("TRF")
	pmtInf.El("NbOfTxs").SetText("1")
	pmtInf.El("CtrlSum").SetText(decimalString(in.Amount))
	pmtInf.El("PmtTpInf/SvcLvl/Cd").SetText("SEPA")
	pmtInf.El("ReqdExctnDt").SetText(in.CreationTime.UTC().Format("2006-01-02"))
	pmtInf.El("Dbtr/Nm").SetText(in.DebtorName)
	pmtInf.El("DbtrAcct/Id/IBAN").SetText(in.DebtorIBAN)
	if in.DebtorBIC != "" {
		pmtInf.El("DbtrAgt/FinInstnId/BICFI").SetText(in.DebtorBIC)
	}

	txInf := pmtInf.El("CdtTrfTxInf")
	txInf.El("PmtId/EndToEndId").SetText(in.EndToEndID)
	txInf.El("Amt/InstdAmt").SetAttr("Ccy", in.Amount.Currency).SetText(decimalString(in.Amount))
	txInf.El("Cdtr/Nm").SetText(in.CreditPayto.ReceiverName)
	txInf.El("CdtrAcct/Id/IBAN").SetText(in.CreditPayto.IBAN)
	if in.Subject != "" {
		txInf.El("RmtInf/Ustrd").SetText(in.Subject)
	}

	return b.Serialize(), nil
}

// decimalString renders an Amount as a plain ISO 20022 decimal (no
// currency prefix, no thousands separator), e.g. "3.00".
func decimalString(a Amount) string {
	if a.Fraction == 0 {
		return fmt.Sprintf("%d.00", a.Value)
	}
	frac := fmt.Sprintf("%08d", a.Fraction)
	frac = strings.TrimRight(frac, "0")
	if len(frac) < 2 {
		frac = frac + strings.Repeat("0", 2-len(frac))
	}
	return fmt.Sprintf("%d.%s", a.Value, frac)
}
