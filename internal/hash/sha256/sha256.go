// Package sha256 provides SHA-256 hashing utilities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// HexString returns the hex SHA-256 digest of s.
func HexString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Short returns the first n hex characters of the digest of s. n is clamped
// to the digest length.
func Short(s string, n int) string {
	h := HexString(s)
	if n <= 0 || n > len(h) {
		return h
	}
	return h[:n]
}
