package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// hexDigestLen is the length of a lowercase-hex SHA-256 digest.
const hexDigestLen = 64

// HashKey returns the lowercase-hex SHA-256 digest of a raw API key. Raw keys
// are never stored or compared; only this digest is.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// EnsureHashed normalizes an API key candidate to its stored digest form.
// A value that already matches the 64-char lowercase-hex digest shape is
// treated as pre-hashed and returned unchanged, so hashing is idempotent:
// clients that send an already-hashed key are not double-hashed into a value
// that matches nothing.
func EnsureHashed(candidate string) string {
	if IsHexDigest(candidate) {
		return candidate
	}
	return HashKey(candidate)
}

// IsHexDigest reports whether s has the exact shape of a lowercase-hex
// SHA-256 digest.
func IsHexDigest(s string) bool {
	if len(s) != hexDigestLen {
		return false
	}
	for i := range len(s) {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Redact returns a safe loggable form of a key hash: the first eight hex
// characters. Raw keys must be passed through EnsureHashed before logging.
func Redact(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8] + "…"
}
