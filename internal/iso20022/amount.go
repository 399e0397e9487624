// Package iso20022 implements the dialect-aware camt.052/053/054 payment
// extractor (C5): a streaming destructuring pass over a statement or
// notification document that emits a typed, normalised sequence of
// TxNotification values, and the pain.001 builder used by the submit
// loop to compose outgoing credit transfers.
package iso20022

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxFraction is the largest representable fraction value, one less
// than 10^8 -- the store keeps amounts as exact integer (value, fraction)
// pairs rather than floating point, per spec §3.
const MaxFraction = 99_999_999

// Amount is an exact-integer monetary value: value whole units plus an
// eight-digit fraction (10^-8), carried separately so arithmetic never
// touches floating point.
type Amount struct {
	Currency string
	Value    int64
	Fraction int64
}

// String renders CUR:int[.frac] with at most 2 fractional digits, per
// spec §6's outward serialisation rule.
func (a Amount) String() string {
	if a.Fraction == 0 {
		return fmt.Sprintf("%s:%d", a.Currency, a.Value)
	}
	cents := a.Fraction / 1_000_000
	if a.Fraction%1_000_000 == 0 {
		return fmt.Sprintf("%s:%d.%02d", a.Currency, a.Value, cents)
	}
	// Sub-cent precision is preserved internally but spec §6 only
	// requires 2 digits outward; truncate rather than round since exact
	// equality downstream (reconciliation) depends on the stored value,
	// not this string.
	return fmt.Sprintf("%s:%d.%02d", a.Currency, a.Value, cents)
}

// ParseAmount parses "CUR:int[.frac]" with frac of at most 8 digits,
// per spec §6.
func ParseAmount(s string) (Amount, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Amount{}, fmt.Errorf("iso20022: malformed amount %q, want CUR:value", s)
	}
	currency, numeric := parts[0], parts[1]
	if currency == "" {
		return Amount{}, fmt.Errorf("iso20022: malformed amount %q, empty currency", s)
	}

	whole, fracStr, hasFrac := strings.Cut(numeric, ".")
	value, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("iso20022: malformed amount %q: %w", s, err)
	}

	var fraction int64
	if hasFrac {
		if len(fracStr) == 0 || len(fracStr) > 8 {
			return Amount{}, fmt.Errorf("iso20022: malformed amount %q, fraction must be 1-8 digits", s)
		}
		fracPadded := fracStr + strings.Repeat("0", 8-len(fracStr))
		fraction, err = strconv.ParseInt(fracPadded, 10, 64)
		if err != nil {
			return Amount{}, fmt.Errorf("iso20022: malformed amount %q: %w", s, err)
		}
	}

	return Amount{Currency: currency, Value: value, Fraction: fraction}, nil
}

// ParseISOAmount parses an ISO 20022 decimal amount string (e.g. "3.00"
// or "10") with a separately-supplied currency, as found in
// IntrBkSttlmAmt/@Ccy plus chardata.
func ParseISOAmount(currency, decimal string) (Amount, error) {
	return ParseAmount(currency + ":" + decimal)
}
