package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/reporting-service/internal/auth"
	"github.com/spec-kit/reporting-service/internal/config"
	"github.com/spec-kit/reporting-service/internal/domain"
	"github.com/spec-kit/reporting-service/internal/repository"
	apperrors "github.com/spec-kit/reporting-service/pkg/util"
)

/* -------- UserRepository mock -------- */

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) ListNewest(ctx context.Context, limit int) ([]domain.User, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

/* -------- in-memory session store -------- */

// fakeSessionStore mirrors the Postgres repository's semantics, including the
// conditional revoke inside Rotate.
type fakeSessionStore struct {
	mu   sync.Mutex
	rows map[string]*domain.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{rows: make(map[string]*domain.Session)}
}

func (f *fakeSessionStore) Create(_ context.Context, userID string, expiresAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.rows[id] = &domain.Session{
		ID:        id,
		UserID:    userID,
		TokenHash: "tmp",
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return id, nil
}

func (f *fakeSessionStore) Finalize(_ context.Context, id, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	row.TokenHash = tokenHash
	return nil
}

func (f *fakeSessionStore) FindActive(_ context.Context, id, userID string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID || row.RevokedAt != nil {
		return nil, pgx.ErrNoRows
	}
	copied := *row
	return &copied, nil
}

func (f *fakeSessionStore) Revoke(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok && row.RevokedAt == nil {
		now := time.Now()
		row.RevokedAt = &now
	}
	return nil
}

func (f *fakeSessionStore) Rotate(_ context.Context, oldID, userID string, newExpiresAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[oldID]
	if !ok || row.RevokedAt != nil {
		return "", repository.ErrSessionRotated
	}
	now := time.Now()
	row.RevokedAt = &now

	id := uuid.NewString()
	f.rows[id] = &domain.Session{
		ID:        id,
		UserID:    userID,
		TokenHash: "tmp",
		ExpiresAt: newExpiresAt,
		CreatedAt: now,
	}
	return id, nil
}

func (f *fakeSessionStore) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, row := range f.rows {
		if row.RevokedAt == nil {
			count++
		}
	}
	return count
}

func (f *fakeSessionStore) tamper(mutate func(*domain.Session)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		mutate(row)
	}
}

/* -------- helpers -------- */

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			AccessSecret:     "access-secret",
			AccessTTLSeconds: 900,
			RefreshSecret:    "refresh-secret",
			RefreshTTLDays:   7,
			BcryptCost:       bcrypt.MinCost,
		},
	}
}

func testUser(t *testing.T, status domain.UserStatus) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse", bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:           uuid.NewString(),
		Email:        "alice@example.com",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Status:       status,
	}
}

func newTestService(t *testing.T, user *domain.User) (*AuthService, *fakeSessionStore) {
	t.Helper()
	users := new(MockUserRepository)
	if user != nil {
		users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
		users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	}
	sessions := newFakeSessionStore()
	svc := NewAuthService(testConfig(), AuthDependencies{UserRepo: users, SessionRepo: sessions})
	return svc, sessions
}

/* -------- login -------- */

func TestLoginIssuesVerifiableTokenPair(t *testing.T) {
	user := testUser(t, domain.UserStatusActive)
	svc, sessions := newTestService(t, user)

	got, pair, err := svc.Login(context.Background(), user.Email, "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	accessClaims, err := svc.Codec().VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, accessClaims.Subject)
	assert.Equal(t, domain.RoleAdmin, accessClaims.Role)

	refreshClaims, err := svc.Codec().VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, refreshClaims.Subject)

	session, err := sessions.FindActive(context.Background(), refreshClaims.SessionID, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "tmp", session.TokenHash)
	assert.True(t, auth.RefreshTokenHashEqual(pair.RefreshToken, session.TokenHash))
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	user := testUser(t, domain.UserStatusActive)
	users := new(MockUserRepository)
	users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	users.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, pgx.ErrNoRows)
	svc := NewAuthService(testConfig(), AuthDependencies{UserRepo: users, SessionRepo: newFakeSessionStore()})

	_, _, errUnknown := svc.Login(context.Background(), "nobody@example.com", "whatever")
	_, _, errWrongPw := svc.Login(context.Background(), user.Email, "wrong-password")

	require.Error(t, errUnknown)
	require.Error(t, errWrongPw)
	assert.True(t, apperrors.HasCode(errUnknown, apperrors.CodeInvalidCredentials))
	assert.True(t, apperrors.HasCode(errWrongPw, apperrors.CodeInvalidCredentials))
	assert.Equal(t, errUnknown.Error(), errWrongPw.Error())
}

func TestLoginDisabledUserForbidden(t *testing.T) {
	user := testUser(t, domain.UserStatusDisabled)
	svc, _ := newTestService(t, user)

	_, _, err := svc.Login(context.Background(), user.Email, "correct-horse")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

/* -------- refresh -------- */

func TestRefreshRotatesSessionOnce(t *testing.T) {
	user := testUser(t, domain.UserStatusActive)
	svc, sessions := newTestService(t, user)

	_, pair, err := svc.Login(context.Background(), user.Email, "correct-horse")
	require.NoError(t, err)

	newPair, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

	claims, err := svc.Codec().VerifyRefresh(newPair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)

	// the original token is permanently burned
	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	assert.Equal(t, 1, sessions.activeCount())
}

func TestRefreshRejectsMalformedToken(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Refresh(context.Background(), "garbage")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRefreshInvalid))
}

func TestRefreshRejectsExpiredRow(t *testing.T) {
	user := testUser(t, domain.UserStatusActive)
	svc, sessions := newTestService(t, user)

	_, pair, err := svc.Login(context.Background(), user.Email, "correct-horse")
	require.NoError(t, err)

	// the token itself is still signed-valid; only the row has expired
	sessions.tamper(func(s *domain.Session) {
		s.ExpiresAt = time.Now().Add(-time.Minute)
	})

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestRefreshRejectsHashMismatch(t *testing.T) {
	user := testUser(t, domain.UserStatusActive)
	svc, sessions := newTestService(t, user)

	_, pair, err := svc.Login(context.Background(), user.Email, "correct-horse")
	require.NoError(t, err)

	sessions.tamper(func(s *domain.Session) {
		s.TokenHash = auth.HashRefreshToken("some-other-token")
	})

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestConcurrentRefreshHasSingleWinner(t *testing.T) {
	user := testUser(t, domain.UserStatusActive)
	svc, sessions := newTestService(t, user)

	_, pair, err := svc.Login(context.Background(), user.Email, "correct-horse")
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Refresh(context.Background(), pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case apperrors.HasCode(err, apperrors.CodeUnauthorized):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, callers-1, losers)
	assert.Equal(t, 1, sessions.activeCount())
}

/* -------- logout -------- */

func TestLogoutRevokesSessionAndIsIdempotent(t *testing.T) {
	user := testUser(t, domain.UserStatusActive)
	svc, sessions := newTestService(t, user)

	_, pair, err := svc.Login(context.Background(), user.Email, "correct-horse")
	require.NoError(t, err)
	require.Equal(t, 1, sessions.activeCount())

	svc.Logout(context.Background(), pair.RefreshToken)
	assert.Equal(t, 0, sessions.activeCount())

	// repeated, empty and garbage logouts all pass silently
	svc.Logout(context.Background(), pair.RefreshToken)
	svc.Logout(context.Background(), "")
	svc.Logout(context.Background(), "garbage")
}

func TestLifecycleEndToEnd(t *testing.T) {
	user := testUser(t, domain.UserStatusActive)
	svc, _ := newTestService(t, user)
	ctx := context.Background()

	_, pair, err := svc.Login(ctx, user.Email, "correct-horse")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	svc.Logout(ctx, rotated.RefreshToken)

	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

/* -------- create user -------- */

func TestCreateUserHashesPasswordAndDefaultsRole(t *testing.T) {
	users := new(MockUserRepository)
	users.On("GetByEmail", mock.Anything, "bob@example.com").Return(nil, pgx.ErrNoRows)
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "bob@example.com" &&
			u.Role == domain.RoleUser &&
			u.Status == domain.UserStatusActive &&
			auth.ComparePassword(u.PasswordHash, "pa55word") == nil
	})).Return(nil)
	svc := NewAuthService(testConfig(), AuthDependencies{UserRepo: users, SessionRepo: newFakeSessionStore()})

	user, err := svc.CreateUser(context.Background(), "bob@example.com", "pa55word", "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
	users.AssertExpectations(t)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	user := testUser(t, domain.UserStatusActive)
	svc, _ := newTestService(t, user)

	_, err := svc.CreateUser(context.Background(), user.Email, "pa55word", domain.RoleUser)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.CreateUser(context.Background(), "bob@example.com", "pa55word", "SUPERUSER")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
