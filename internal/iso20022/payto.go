package iso20022

import (
	"fmt"
	"net/url"
	"strings"
)

// PayTo is a parsed payto:// URI restricted to the iban target type,
// per spec §6 ("only the iban target type is accepted, others 400").
type PayTo struct {
	IBAN         string
	ReceiverName string
}

// String renders the canonical payto://iban/<IBAN>?receiver-name=...
// form.
func (p PayTo) String() string {
	u := url.URL{
		Scheme: "payto",
		Opaque: "//iban/" + p.IBAN,
	}
	if p.ReceiverName != "" {
		u.RawQuery = "receiver-name=" + url.QueryEscape(p.ReceiverName)
	}
	return u.String()
}

// ParsePayTo parses an RFC 8905 payto:// URI. Only the iban authority
// segment is accepted; any other target type is rejected, matching the
// HTTP façade's 400 on non-iban payto targets.
func ParsePayTo(raw string) (PayTo, error) {
	if !strings.HasPrefix(raw, "payto://") {
		return PayTo{}, fmt.Errorf("iso20022: not a payto URI: %q", raw)
	}

	rest := strings.TrimPrefix(raw, "payto://")
	pathAndQuery, query, _ := strings.Cut(rest, "?")
	segments := strings.SplitN(pathAndQuery, "/", 2)
	if len(segments) != 2 || segments[0] != "iban" {
		return PayTo{}, fmt.Errorf("iso20022: unsupported payto target type in %q, only iban is accepted", raw)
	}
	iban := segments[1]
	if iban == "" {
		return PayTo{}, fmt.Errorf("iso20022: payto URI missing IBAN: %q", raw)
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return PayTo{}, fmt.Errorf("iso20022: malformed payto query in %q: %w", raw, err)
	}

	return PayTo{IBAN: iban, ReceiverName: values.Get("receiver-name")}, nil
}
