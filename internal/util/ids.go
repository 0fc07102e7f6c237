package util

import (
	"crypto/sha256"
	"encoding/base32"
	"strings"
)

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// StableID derives a deterministic identifier from its parts. Identical parts
// always yield the same identifier, which keeps store upserts idempotent
// across re-runs without any shared counter.
func StableID(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(strings.TrimSpace(p)))
	}
	sum := h.Sum(nil)
	return strings.ToLower(idEncoding.EncodeToString(sum[:15]))
}

// NormalizeName standardizes entity and code names for identity comparison:
// whitespace is collapsed and the result is lowercased.
func NormalizeName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.Join(strings.Fields(value), " ")
	return strings.ToLower(value)
}
