package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/reporting-service/internal/auth"
	"github.com/spec-kit/reporting-service/internal/config"
	"github.com/spec-kit/reporting-service/internal/domain"
	"github.com/spec-kit/reporting-service/internal/repository"
	apperrors "github.com/spec-kit/reporting-service/pkg/util"
)

// AuthService owns the session lifecycle: issuance on login, rotation on
// refresh, revocation on logout. It is the only writer of session rows.
type AuthService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	codec      *auth.TokenCodec
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Codec       *auth.TokenCodec
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	codec := deps.Codec
	if codec == nil {
		codec = auth.NewTokenCodec(
			cfg.Auth.AccessSecret,
			cfg.Auth.RefreshSecret,
			cfg.Auth.AccessTTL(),
			cfg.Auth.RefreshTTL(),
		)
	}
	return &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.SessionRepo,
		codec:      codec,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Login authenticates by email and password and issues a fresh token pair.
// Unknown email and wrong password produce the identical error so responses
// cannot be used to probe which addresses have accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewInvalidCredentials()
		}
		return nil, nil, err
	}
	if user.Status != domain.UserStatusActive {
		return nil, nil, apperrors.NewForbidden("user disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewInvalidCredentials()
	}

	sessionID, err := s.sessions.Create(ctx, user.ID, time.Now().Add(s.codec.RefreshTTL()))
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, user, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a still-live refresh token for a new pair, rotating the
// backing session. The presented token becomes permanently unusable whether
// or not this call wins: a valid rotation revokes it, and a lost race means
// somebody else already did.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperrors.NewRefreshInvalid()
	}

	session, err := s.sessions.FindActive(ctx, claims.SessionID, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("refresh token revoked")
		}
		return nil, err
	}

	// A hash mismatch means the presented token is not the current live one
	// for this session: replay of an already-rotated token.
	if !auth.RefreshTokenHashEqual(refreshToken, session.TokenHash) {
		return nil, apperrors.NewUnauthorized("refresh token mismatch")
	}

	// Row expiry is checked independently of the token's signed expiry to
	// guard against TTL-config drift between the two.
	if !session.Usable(time.Now()) {
		return nil, apperrors.NewUnauthorized("refresh token expired")
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	newSessionID, err := s.sessions.Rotate(ctx, session.ID, session.UserID, time.Now().Add(s.codec.RefreshTTL()))
	if err != nil {
		if errors.Is(err, repository.ErrSessionRotated) {
			return nil, apperrors.NewUnauthorized("refresh token revoked")
		}
		return nil, err
	}

	return s.issuePair(ctx, user, newSessionID)
}

// Logout revokes the session behind the refresh token. Best effort: any
// verification or lookup failure is swallowed so the endpoint never reveals
// whether a token was valid, and logging out twice succeeds both times.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return
	}
	session, err := s.sessions.FindActive(ctx, claims.SessionID, claims.Subject)
	if err != nil {
		return
	}
	_ = s.sessions.Revoke(ctx, session.ID)
}

// CreateUser provisions a new account. Administrative action only; the route
// layer enforces the ADMIN role.
func (s *AuthService) CreateUser(ctx context.Context, email, password string, role domain.Role) (*domain.User, error) {
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Codec exposes the token codec for the request guard.
func (s *AuthService) Codec() *auth.TokenCodec {
	return s.codec
}

// issuePair signs the refresh token against the session id, stores its hash,
// then signs the access token. Until Finalize runs the row holds a
// placeholder hash and cannot satisfy any refresh.
func (s *AuthService) issuePair(ctx context.Context, user *domain.User, sessionID string) (*domain.TokenPair, error) {
	refreshToken, err := s.codec.SignRefresh(user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Finalize(ctx, sessionID, auth.HashRefreshToken(refreshToken)); err != nil {
		return nil, err
	}

	accessToken, err := s.codec.SignAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
