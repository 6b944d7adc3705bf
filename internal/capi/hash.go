package capi

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashField normalizes and digests one PII value: lowercase, trim, SHA-256
// hex. A value that is empty after trimming yields "" so the field is
// omitted from the payload instead of carrying the digest of an empty
// string.
func HashField(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// NormalizePhone strips every character except digits and a leading plus
// sign: "+381 60 123-4567" becomes "+381601234567".
func NormalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HashPhone normalizes a phone number and digests the result.
func HashPhone(raw string) string {
	return HashField(NormalizePhone(raw))
}
