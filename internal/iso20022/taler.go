package iso20022

import (
	"regexp"
	"strings"
)

// reservePubPattern matches a Crockford-base32 encoded Ed25519 public
// key (32 bytes -> 52 characters), the shape of a GNU Taler reserve
// public key embedded in a wire transfer subject (spec §4.7).
var reservePubPattern = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{52}$`)

// whitespaceRun matches a run of ASCII whitespace, the delimiter between
// the two components of a talerable-outgoing subject.
var whitespaceRun = regexp.MustCompile(`\s+`)

// IsReservePub reports whether subject, taken as a single whitespace-
// trimmed token, is shaped like a Taler reserve public key. The gateway
// uses this to classify an Incoming payment as talerable (spec §4.7):
// a wire transfer whose subject is exactly a reserve pubkey funds that
// reserve rather than being a plain incoming payment.
func IsReservePub(subject string) bool {
	return reservePubPattern.MatchString(strings.TrimSpace(subject))
}

// ParseTalerableOutgoingSubject splits an outgoing wire transfer subject
// into its two whitespace-separated components per spec §3/§4.7's
// talerable-outgoing convention: a 32-byte base32 WTID (wire transfer
// identifier) followed by the exchange base URL it was sent on behalf
// of. Returns ok=false if the subject does not split into exactly two
// tokens or the first does not look like a WTID.
func ParseTalerableOutgoingSubject(subject string) (wtid string, exchangeBaseURL string, ok bool) {
	fields := whitespaceRun.Split(strings.Trim(subject, " \t\n\f\r"), -1)
	if len(fields) != 2 {
		return "", "", false
	}
	if !reservePubPattern.MatchString(fields[0]) {
		return "", "", false
	}
	return fields[0], fields[1], true
}
