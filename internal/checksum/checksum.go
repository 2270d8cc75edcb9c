// Package checksum fingerprints artifact contents for change detection in
// the index and conditional reads over HTTP.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString is Sum over the bytes of s.
func SumString(s string) string {
	return Sum([]byte(s))
}

// ETag quotes sum as a strong entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// Matches reports whether an If-None-Match header value names sum, either
// directly, in a list, or through the * wildcard. Weak tags compare equal.
func Matches(header, sum string) bool {
	if header == "" || sum == "" {
		return false
	}
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" {
			return true
		}
		tag = strings.TrimPrefix(tag, "W/")
		if tag == ETag(sum) {
			return true
		}
	}
	return false
}
