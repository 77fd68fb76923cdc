package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashRefreshToken returns a SHA-256 hex digest of the refresh token for
// server-side storage. The raw token is never persisted. bcrypt is not usable
// here: signed tokens exceed its 72-byte input limit.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RefreshTokenHashEqual compares the presented token against the stored hash
// in constant time.
func RefreshTokenHashEqual(token, storedHash string) bool {
	presented := HashRefreshToken(token)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(storedHash)) == 1
}
