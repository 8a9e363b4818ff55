package security

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePassword applies the configured Unicode normalization form before
// hashing or verifying. Composed and decomposed spellings of the same
// characters (e.g. U+00F6 vs o + U+0308) must land on one canonical byte
// sequence, otherwise a password set from one keyboard fails from another.
// An empty or unknown form leaves the password untouched.
func NormalizePassword(form, password string) string {
	switch strings.ToUpper(form) {
	case "NFC":
		return norm.NFC.String(password)
	case "NFD":
		return norm.NFD.String(password)
	case "NFKC":
		return norm.NFKC.String(password)
	case "NFKD":
		return norm.NFKD.String(password)
	default:
		return password
	}
}

// CanonicalizeEmail derives the lookup key for an address: trim, NFKC-fold,
// then lowercase, so case and encoding variants of the same address resolve
// to one account. The stored address keeps its original spelling; only
// lookups and rate-limit keys use the canonical form.
func CanonicalizeEmail(email string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(email)))
}
