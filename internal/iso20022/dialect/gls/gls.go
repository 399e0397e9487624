// Package gls registers the GLS (German cooperative bank) dialect:
// standard C52/C53/C54 order types and camt recognition hooks that
// prefer RmtInf/Strd/CdtrRefInf/Ref for the payment subject when the
// bank supplies a structured creditor reference, falling back to the
// shared Ustrd-concatenation rule otherwise (spec §4.5).
package gls

import (
	"libeufin-nexus/internal/iso20022/dialect"
	"libeufin-nexus/internal/iso20022/dialect/generic"
	"libeufin-nexus/internal/xmlutil"
)

// Name is the nexus-ebics.bank_dialect config value this dialect
// registers under.
const Name = "gls"

type glsDialect struct{}

func (glsDialect) Name() string { return Name }

func (glsDialect) SynthesizeBankID(msgID string, nbOfTxs, index int) string {
	return generic.SynthesizeBankID(msgID, nbOfTxs, index)
}

func (glsDialect) ExtractSubject(rmtInf *xmlutil.Walker) string {
	if rmtInf == nil {
		return ""
	}
	if strd, ok, _ := rmtInf.Optional("Strd"); ok {
		if cdtrRefInf, ok2, _ := strd.Optional("CdtrRefInf"); ok2 {
			if ref, ok3, _ := cdtrRefInf.Optional("Ref"); ok3 {
				if text := ref.Text(); text != "" {
					return text
				}
			}
		}
	}
	return generic.ConcatUstrd(rmtInf)
}

func init() {
	dialect.Register(glsDialect{})
}
