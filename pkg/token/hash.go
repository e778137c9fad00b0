package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashLength is the length of a hex-encoded SHA-256 hash.
const HashLength = 64

// Hash computes the SHA-256 hash of a token.
//
// The returned hash is lowercase hex encoded for storage.
func Hash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Verify verifies a token against an expected hash.
//
// Uses constant-time comparison to prevent timing attacks.
func Verify(token, expectedHash string) bool {
	actualHash := Hash(token)
	return subtle.ConstantTimeCompare([]byte(actualHash), []byte(expectedHash)) == 1
}

// IsHashSyntaxValid reports whether s is a lowercase hex SHA-256 digest.
func IsHashSyntaxValid(s string) bool {
	if len(s) != HashLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
