// Package generic holds the recognition-hook helpers shared by every
// bank dialect: the default synthesized-bank_id scheme (SPEC_FULL.md
// Open Question 1) and the default Ustrd-concatenation subject
// extraction every dialect falls back to.
package generic

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"libeufin-nexus/internal/iso20022/dialect"
	"libeufin-nexus/internal/xmlutil"
)

// Name is the bank_dialect config value this package registers itself
// under, for any bank not covered by a dedicated dialect package.
const Name = "generic"

type genericDialect struct{}

func (genericDialect) Name() string { return Name }

func (genericDialect) SynthesizeBankID(msgID string, nbOfTxs, index int) string {
	return SynthesizeBankID(msgID, nbOfTxs, index)
}

func (genericDialect) ExtractSubject(rmtInf *xmlutil.Walker) string {
	return ConcatUstrd(rmtInf)
}

func init() {
	dialect.Register(genericDialect{})
}

// SynthesizeBankID derives a stable, namespaced bank_id from the
// statement's message id plus the entry's position, for entries whose
// bank omits AcctSvcrRef (spec §4.5, SPEC_FULL.md Open Question 1):
//
//	"synth:" + hex(sha256(msgID || 0x00 || nbOfTxs || 0x00 || index))[:32]
//
// The synth: prefix guarantees this can never collide with a real
// bank-assigned reference.
func SynthesizeBankID(msgID string, nbOfTxs, index int) string {
	h := sha256.Sum256([]byte(msgID + "\x00" + strconv.Itoa(nbOfTxs) + "\x00" + strconv.Itoa(index)))
	return "synth:" + hex.EncodeToString(h[:])[:32]
}

// ConcatUstrd joins every RmtInf/Ustrd child in document order, per
// spec §4.5's default subject normalisation, stripping the PostFinance
// control markers ?REJECT?/?ERROR? wherever they occur (safe to apply
// unconditionally -- no other dialect is known to emit that syntax, so
// stripping it elsewhere is a no-op).
func ConcatUstrd(rmtInf *xmlutil.Walker) string {
	if rmtInf == nil {
		return ""
	}
	var parts []string
	for _, u := range rmtInf.All("Ustrd") {
		parts = append(parts, u.Text())
	}
	subject := strings.Join(parts, "")
	subject = strings.ReplaceAll(subject, "?REJECT?", "")
	subject = strings.ReplaceAll(subject, "?ERROR?", "")
	return strings.TrimSpace(subject)
}
