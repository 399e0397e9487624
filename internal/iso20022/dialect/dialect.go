// Package dialect is the bank-dialect registry the extractor (C5)
// consults for the recognition hooks that differ between banks: how to
// synthesize a stable bank_id when the bank omits AcctSvcrRef, and how
// to pull the payment subject out of RmtInf. The normalisation core
// itself (status filtering, amount/date/direction handling) never
// varies by dialect -- see SPEC_FULL.md Supplement E.
package dialect

import (
	"fmt"
	"sync"

	"libeufin-nexus/internal/xmlutil"
)

// Dialect is the small set of recognition hooks a bank-specific camt
// variant must provide.
type Dialect interface {
	// Name is the bank_dialect config value this dialect registers under.
	Name() string
	// SynthesizeBankID deterministically derives a bank_id for an entry
	// that carries no AcctSvcrRef/Refs/EndToEndId, so re-ingesting the
	// same document is still idempotent (spec §4.5).
	SynthesizeBankID(msgID string, nbOfTxs, index int) string
	// ExtractSubject pulls the payment subject out of an entry's RmtInf
	// node (nil if the entry carries none).
	ExtractSubject(rmtInf *xmlutil.Walker) string
}

var (
	mu       sync.RWMutex
	registry = map[string]Dialect{}
)

// Register adds a dialect to the registry under its own Name(). Intended
// to be called from each dialect sub-package's init().
func Register(d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	registry[d.Name()] = d
}

// Get looks up a registered dialect by config name.
func Get(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := registry[name]
	return d, ok
}

// MustGet is Get, panicking on an unregistered name; intended for
// startup-time configuration validation, not request-path use.
func MustGet(name string) Dialect {
	d, ok := Get(name)
	if !ok {
		panic(fmt.Sprintf("dialect: no dialect registered under %q (forgot a blank import?)", name))
	}
	return d
}
