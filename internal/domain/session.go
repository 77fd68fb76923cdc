package domain

import "time"

// Session is the server-side record backing one outstanding refresh token.
// Rotation revokes the old row and inserts a new one; the hash of a revoked
// row is never rewritten.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Usable reports whether the session can still back a refresh at the given time.
func (s *Session) Usable(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Identity is the verified caller attached to a request by the access-token guard.
type Identity struct {
	UserID string
	Role   Role
}

// TokenPair bundles the credentials returned by login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
