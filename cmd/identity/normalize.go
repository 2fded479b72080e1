package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization. Email uniqueness
// is enforced on the normalized form; the original casing is preserved on the
// Account for display.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
