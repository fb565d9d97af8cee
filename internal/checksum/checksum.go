// Package checksum computes the content tags used for optimistic
// concurrency on note updates.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of the parts. Each part is
// terminated by a NUL byte so ("ab", "c") and ("a", "bc") differ.
func Sum(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
