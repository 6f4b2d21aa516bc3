// Package token derives cache keys from opaque coherency tokens.
//
// Tokens are client-supplied and may be guessable, so the raw token is
// never used as a key in the shared cache namespace. Only the digest is
// stored.
package token

import (
	"crypto/sha256"
	"encoding/base64"
)

// Hash maps a coherency token to its fixed-width cache key. Any string,
// including the empty string, is valid input.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
