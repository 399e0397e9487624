// Package postfinance registers the PostFinance bank dialect: Z01/Z53/Z54
// order types (wired in internal/ebics.OrderTypeForLevel) and camt
// recognition hooks for entries that omit AcctSvcrRef and for the
// ?REJECT?/?ERROR? control markers PostFinance embeds in RmtInf/Ustrd.
package postfinance

import (
	"libeufin-nexus/internal/iso20022/dialect"
	"libeufin-nexus/internal/iso20022/dialect/generic"
	"libeufin-nexus/internal/xmlutil"
)

// Name is the nexus-ebics.bank_dialect config value this dialect
// registers under.
const Name = "postfinance"

type postfinanceDialect struct{}

func (postfinanceDialect) Name() string { return Name }

func (postfinanceDialect) SynthesizeBankID(msgID string, nbOfTxs, index int) string {
	return generic.SynthesizeBankID(msgID, nbOfTxs, index)
}

func (postfinanceDialect) ExtractSubject(rmtInf *xmlutil.Walker) string {
	return generic.ConcatUstrd(rmtInf)
}

func init() {
	dialect.Register(postfinanceDialect{})
}
