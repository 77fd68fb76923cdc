package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/reporting-service/internal/domain"
)

// ErrTokenInvalid covers every verification failure: bad signature, wrong
// signing method, malformed payload, or expiry. Callers get no finer detail.
var ErrTokenInvalid = errors.New("token expired or invalid")

// TokenCodec signs and verifies the access/refresh token pair. The two token
// kinds use independent secrets and lifetimes.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenCodec builds a codec from the two signing secrets.
func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	if accessTTL <= 0 {
		accessTTL = 900 * time.Second
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. SessionID ties the token to
// the server-side session row that gates its validity.
type RefreshClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// RefreshTTL exposes the refresh lifetime for session-row expiry and cookies.
func (tc *TokenCodec) RefreshTTL() time.Duration {
	return tc.refreshTTL
}

// SignAccess builds and signs a short-lived access token for the user.
func (tc *TokenCodec) SignAccess(userID string, role domain.Role) (string, error) {
	now := time.Now()
	claims := &AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.accessSecret)
}

// SignRefresh builds and signs a refresh token bound to a session row.
func (tc *TokenCodec) SignRefresh(userID, sessionID string) (string, error) {
	now := time.Now()
	claims := &RefreshClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.refreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.refreshSecret)
}

// VerifyAccess validates an access token and returns its claims.
func (tc *TokenCodec) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := tc.verify(tokenStr, claims, tc.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token and returns its claims.
func (tc *TokenCodec) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := tc.verify(tokenStr, claims, tc.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (tc *TokenCodec) verify(tokenStr string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}
