// Package entity defines the domain values shared by every layer: promotional
// codes and the snapshots of codes observed on the monitored page.
package entity

import (
	"regexp"
	"strings"
)

// CodeLength is the fixed number of characters in a promotional code.
const CodeLength = 11

// codePattern matches a single code anywhere in free text.
var codePattern = regexp.MustCompile(`[0-9A-Z]{11}`)

// Code is an 11-character uppercase-alphanumeric promotional code.
// Equality is exact string match; no normalization is applied.
type Code string

// ParseCode validates s and returns it as a Code.
// The input is taken verbatim: surrounding whitespace or lowercase letters
// make it invalid rather than being normalized away.
func ParseCode(s string) (Code, error) {
	if len(s) != CodeLength {
		return "", &ValidationError{Field: "code", Message: "code must be exactly 11 characters"}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return "", &ValidationError{Field: "code", Message: "code must contain only 0-9 and A-Z"}
		}
	}
	return Code(s), nil
}

// String implements fmt.Stringer.
func (c Code) String() string {
	return string(c)
}

// RedeemURL builds the coupon redemption link for the code under base.
func (c Code) RedeemURL(base string) string {
	return strings.TrimRight(base, "/") + "/coupon_redeem?code=" + string(c)
}

// FindCodes extracts every code found in texts.
// Matches are non-overlapping and scanned left to right, so a longer run of
// qualifying characters yields its leading 11 characters first.
func FindCodes(texts ...string) Snapshot {
	snap := NewSnapshot()
	for _, text := range texts {
		for _, m := range codePattern.FindAllString(text, -1) {
			snap.Add(Code(m))
		}
	}
	return snap
}
