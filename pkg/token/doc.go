// Package token provides TAN generation, hashing and syntax validation.
//
// Two token kinds are supported:
//
//   - TAN: a random (version 4) UUID in canonical lowercase form,
//     e.g. ffc079f1-7060-4adb-93f8-6a6b95ad1124 (36 characters)
//   - TeleTAN: a short code for manual entry, 7 characters drawn from
//     an alphabet without visually ambiguous characters (0, 1, I, L, O, l, o)
//
// Hash Format:
//
//   - 64 characters of lowercase hex-encoded SHA-256
//
// Security:
//
//   - Uses crypto/rand for CSPRNG
//   - SHA-256 hashing with constant-time comparison
//   - Tokens are never stored, only hashes
package token
