// Package checksum fingerprints the persisted habit document. The same
// digest detects external edits and serves as the HTTP entity tag.
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

// ETag quotes Sum for the ETag header.
func ETag(data []byte) string {
	return `"` + Sum(data) + `"`
}

// MatchesETag reports whether an If-None-Match header value selects etag.
// It handles "*", comma-separated lists and weak validators.
func MatchesETag(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == want {
			return true
		}
	}
	return false
}
