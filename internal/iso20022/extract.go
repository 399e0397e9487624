package iso20022

import (
	"bytes"
	"fmt"
	"time"

	"libeufin-nexus/internal/iso20022/dialect"
	"libeufin-nexus/internal/xmlutil"
)

// Extract parses a camt.052/053/054 document (intraday report,
// end-of-day statement, or debit/credit notification -- all three share
// the same entry shape) and returns the normalised, typed notification
// sequence described in spec §4.5. The result is deterministic: the
// same bytes always produce the same sequence, so re-ingesting a
// document is safe as long as the caller deduplicates downstream (P4).
func Extract(doc []byte, currency string, dlct dialect.Dialect) ([]TxNotification, error) {
	root, err := xmlutil.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("iso20022: %w", err)
	}

	w := xmlutil.NewWalker(root)
	msgID, stmts, err := findStatements(w)
	if err != nil {
		return nil, err
	}

	var out []TxNotification
	for _, stmt := range stmts {
		entries := stmt.All("Ntry")
		for i, entry := range entries {
			notifications, err := extractEntry(entry, currency, dlct, msgID, len(entries), i)
			if err != nil {
				return nil, err
			}
			out = append(out, notifications...)
		}
	}
	return out, nil
}

// camtWrappers lists the three document-level wrappers camt.052/053/054
// use, each holding a GrpHdr and a repeating child of statements/reports/
// notifications that otherwise share an identical Ntry shape.
var camtWrappers = []struct {
	wrapper string
	child   string
}{
	{"BkToCstmrAcctRpt", "Rpt"},       // camt.052
	{"BkToCstmrStmt", "Stmt"},         // camt.053
	{"BkToCstmrDbtCdtNtfctn", "Ntfctn"}, // camt.054
}

func findStatements(doc *xmlutil.Walker) (msgID string, stmts []*xmlutil.Walker, err error) {
	for _, c := range camtWrappers {
		wrapper, ok, err := doc.Optional(c.wrapper)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			continue
		}
		grpHdr, err := wrapper.Require("GrpHdr")
		if err != nil {
			return "", nil, err
		}
		msgIDNode, err := grpHdr.Require("MsgId")
		if err != nil {
			return "", nil, err
		}
		msgID, err := msgIDNode.RequireText()
		if err != nil {
			return "", nil, err
		}
		return msgID, wrapper.All(c.child), nil
	}
	return "", nil, &xmlutil.ShapeError{
		Path:   doc.Node().QName(),
		Reason: "no recognised camt wrapper element (BkToCstmrAcctRpt/BkToCstmrStmt/BkToCstmrDbtCdtNtfctn)",
	}
}

// extractEntry normalises one Ntry, emitting zero (non-BOOK status),
// one (single-booking entry), or several (multi-leg entry) notifications.
func extractEntry(e *xmlutil.Walker, currency string, dlct dialect.Dialect, msgID string, nbOfTxs, index int) ([]TxNotification, error) {
	if status := entryStatus(e); status != "" && status != "BOOK" {
		return nil, nil
	}

	cdtDbtNode, err := e.Require("CdtDbtInd")
	if err != nil {
		return nil, err
	}
	cdtDbt, err := cdtDbtNode.RequireText()
	if err != nil {
		return nil, err
	}

	rvsl := false
	if n, ok, _ := e.Optional("RvslInd"); ok {
		t := n.Text()
		rvsl = t == "true" || t == "1"
	}

	executedAt, err := entryDate(e)
	if err != nil {
		return nil, err
	}

	var legs []*xmlutil.Walker
	if ntryDtls, ok, _ := e.Optional("NtryDtls"); ok {
		legs = ntryDtls.All("TxDtls")
	}
	if len(legs) == 0 {
		// Single-booking entry: treat the entry itself as its own leg.
		legs = []*xmlutil.Walker{nil}
	}

	var out []TxNotification
	for _, leg := range legs {
		source := e
		if leg != nil {
			source = leg
		}

		amt, err := legAmount(e, leg, currency)
		if err != nil {
			return nil, err
		}

		var rmtInf *xmlutil.Walker
		if r, ok, _ := source.Optional("RmtInf"); ok {
			rmtInf = r
		}
		subject := dlct.ExtractSubject(rmtInf)

		switch {
		case rvsl:
			msgRef, _ := outgoingRefs(e, leg)
			out = append(out, TxNotification{
				Kind: KindReversal,
				Reversal: &Reversal{
					MessageID:  msgRef,
					Reason:     reversalReason(e, leg),
					ExecutedAt: executedAt,
				},
			})
		case cdtDbt == "CRDT":
			bankID := bankReference(e, leg, dlct, msgID, nbOfTxs, index)
			out = append(out, TxNotification{
				Kind: KindIncoming,
				Incoming: &Incoming{
					BankID:     bankID,
					Amount:     amt,
					Subject:    subject,
					ExecutedAt: executedAt,
					DebitPayto: counterpartyPayto(source, "Dbtr", "DbtrAcct"),
				},
			})
		case cdtDbt == "DBIT":
			messageID, endToEndID := outgoingRefs(e, leg)
			out = append(out, TxNotification{
				Kind: KindOutgoing,
				Outgoing: &Outgoing{
					MessageID:   messageID,
					EndToEndID:  endToEndID,
					Amount:      amt,
					Subject:     subject,
					ExecutedAt:  executedAt,
					CreditPayto: counterpartyPayto(source, "Cdtr", "CdtrAcct"),
				},
			})
		default:
			return nil, &xmlutil.ShapeError{
				Path:   e.Node().QName() + "/CdtDbtInd",
				Reason: fmt.Sprintf("unrecognised value %q, want CRDT or DBIT", cdtDbt),
			}
		}
	}
	return out, nil
}

// entryStatus returns an entry's Sts value whether it is plain text
// (<Sts>BOOK</Sts>) or a coded child (<Sts><Cd>BOOK</Cd></Sts>), the two
// shapes found across camt schema versions.
func entryStatus(e *xmlutil.Walker) string {
	sts, ok, _ := e.Optional("Sts")
	if !ok {
		return ""
	}
	if cd, ok2, _ := sts.Optional("Cd"); ok2 {
		return cd.Text()
	}
	return sts.Text()
}

// entryDate prefers BookgDt/Dt, falling back to ValDt/Dt per spec §4.5.
func entryDate(e *xmlutil.Walker) (time.Time, error) {
	if bookg, ok, _ := e.Optional("BookgDt"); ok {
		if dt, ok2, _ := bookg.Optional("Dt"); ok2 {
			return parseISODate(dt.Text())
		}
	}
	if val, ok, _ := e.Optional("ValDt"); ok {
		if dt, ok2, _ := val.Optional("Dt"); ok2 {
			return parseISODate(dt.Text())
		}
	}
	return time.Time{}, &xmlutil.ShapeError{Path: e.Node().QName(), Reason: "missing BookgDt/Dt and ValDt/Dt"}
}

func parseISODate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("iso20022: malformed date %q: %w", s, err)
	}
	return t, nil
}

// legAmount uses the leg's own Amt when present (multi-leg entry),
// falling back to the entry-level Amt for a single-booking entry.
func legAmount(e, leg *xmlutil.Walker, currency string) (Amount, error) {
	source := e
	if leg != nil {
		if _, ok, _ := leg.Optional("Amt"); ok {
			source = leg
		}
	}
	amtNode, err := source.Require("Amt")
	if err != nil {
		return Amount{}, err
	}
	ccy, ok := amtNode.OptionalAttr("Ccy")
	if !ok || ccy == "" {
		ccy = currency
	}
	text, err := amtNode.RequireText()
	if err != nil {
		return Amount{}, err
	}
	return ParseISOAmount(ccy, text)
}

// textOf returns local's trimmed text content under w, or ("", false)
// if absent or empty.
func textOf(w *xmlutil.Walker, local string) (string, bool) {
	if w == nil {
		return "", false
	}
	n, ok, _ := w.Optional(local)
	if !ok {
		return "", false
	}
	t := n.Text()
	if t == "" {
		return "", false
	}
	return t, true
}

// lookupRef looks for local either as a direct child of w or as a child
// of w's Refs element, the two places bank dialects place reference
// fields.
func lookupRef(w *xmlutil.Walker, local string) (string, bool) {
	if w == nil {
		return "", false
	}
	if v, ok := textOf(w, local); ok {
		return v, true
	}
	if refs, ok, _ := w.Optional("Refs"); ok {
		if v, ok2 := textOf(refs, local); ok2 {
			return v, true
		}
	}
	return "", false
}

// findFirstRef tries each local name against leg then e, in order,
// returning the first match.
func findFirstRef(locals []string, leg, e *xmlutil.Walker) string {
	for _, w := range []*xmlutil.Walker{leg, e} {
		for _, local := range locals {
			if v, ok := lookupRef(w, local); ok {
				return v
			}
		}
	}
	return ""
}

// bankReference implements spec §4.5's bank_id priority: AcctSvcrRef,
// then Refs/Prtry/Ref, then EndToEndId, else the dialect's synthesized
// id.
func bankReference(e, leg *xmlutil.Walker, dlct dialect.Dialect, msgID string, nbOfTxs, index int) string {
	if v := findFirstRef([]string{"AcctSvcrRef"}, leg, e); v != "" {
		return v
	}
	for _, w := range []*xmlutil.Walker{leg, e} {
		if w == nil {
			continue
		}
		if refs, ok, _ := w.Optional("Refs"); ok {
			if prtry, ok2, _ := refs.Optional("Prtry"); ok2 {
				if v, ok3 := textOf(prtry, "Ref"); ok3 {
					return v
				}
			}
		}
	}
	if v := findFirstRef([]string{"EndToEndId"}, leg, e); v != "" {
		return v
	}
	return dlct.SynthesizeBankID(msgID, nbOfTxs, index)
}

// outgoingRefs returns (messageID, endToEndID): messageID is the first
// of MsgId/PmtInfId/InstrId (falling back to EndToEndId itself if none
// of those are present), endToEndID is the EndToEndId alone, used for
// reconciliation against an initiated payment's derived end-to-end id.
func outgoingRefs(e, leg *xmlutil.Walker) (messageID, endToEndID string) {
	messageID = findFirstRef([]string{"MsgId", "PmtInfId", "InstrId"}, leg, e)
	endToEndID = findFirstRef([]string{"EndToEndId"}, leg, e)
	if messageID == "" {
		messageID = endToEndID
	}
	return messageID, endToEndID
}

func reversalReason(e, leg *xmlutil.Walker) string {
	if v, ok := textOf(leg, "AddtlNtryInf"); ok {
		return v
	}
	if v, ok := textOf(e, "AddtlNtryInf"); ok {
		return v
	}
	return ""
}

// counterpartyPayto builds a payto://iban/... URI from source's
// RltdPties/<partyLocal> (for the name) and RltdPties/<acctLocal>/Id/IBAN
// (for the IBAN), returning "" if no IBAN is present.
func counterpartyPayto(source *xmlutil.Walker, partyLocal, acctLocal string) string {
	rltdPties, ok, _ := source.Optional("RltdPties")
	if !ok {
		return ""
	}
	var name string
	if party, ok2, _ := rltdPties.Optional(partyLocal); ok2 {
		if nm, ok3 := textOf(party, "Nm"); ok3 {
			name = nm
		}
	}
	var iban string
	if acct, ok2, _ := rltdPties.Optional(acctLocal); ok2 {
		if id, ok3, _ := acct.Optional("Id"); ok3 {
			if ibanNode, ok4, _ := id.Optional("IBAN"); ok4 {
				iban = ibanNode.Text()
			}
		}
	}
	if iban == "" {
		return ""
	}
	return PayTo{IBAN: iban, ReceiverName: name}.String()
}
