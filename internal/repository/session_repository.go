package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/reporting-service/internal/domain"
)

// ErrSessionRotated signals that a concurrent rotation already revoked the
// session this caller tried to rotate. The losing caller must be rejected,
// not retried: a second presentation of the same refresh token is treated as
// replay.
var ErrSessionRotated = errors.New("session already rotated")

// Placeholder stored until the refresh token, which embeds the session id,
// has been signed and hashed.
const placeholderHash = "tmp"

// SessionRepository defines persistence access for refresh sessions.
type SessionRepository interface {
	Create(ctx context.Context, userID string, expiresAt time.Time) (string, error)
	Finalize(ctx context.Context, id, tokenHash string) error
	FindActive(ctx context.Context, id, userID string) (*domain.Session, error)
	Revoke(ctx context.Context, id string) error
	Rotate(ctx context.Context, oldID, userID string, newExpiresAt time.Time) (string, error)
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a Postgres-backed implementation.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

// Create inserts a session row with a placeholder hash and returns its id.
// The id must exist before the refresh token can be signed.
func (r *sessionRepository) Create(ctx context.Context, userID string, expiresAt time.Time) (string, error) {
	const query = `
        INSERT INTO sessions (user_id, token_hash, expires_at)
        VALUES ($1, $2, $3)
        RETURNING id`

	var id string
	if err := r.pool.QueryRow(ctx, query, userID, placeholderHash, expiresAt).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// Finalize stores the real token hash once the refresh token has been signed.
func (r *sessionRepository) Finalize(ctx context.Context, id, tokenHash string) error {
	const query = `UPDATE sessions SET token_hash=$1 WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, tokenHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// FindActive returns the session only if it has not been revoked.
func (r *sessionRepository) FindActive(ctx context.Context, id, userID string) (*domain.Session, error) {
	const query = `
        SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
        FROM sessions WHERE id=$1 AND user_id=$2 AND revoked_at IS NULL`

	var session domain.Session
	if err := r.pool.QueryRow(ctx, query, id, userID).Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

// Revoke marks the session revoked. Idempotent: revoking an already revoked
// or unknown session is not an error.
func (r *sessionRepository) Revoke(ctx context.Context, id string) error {
	const query = `UPDATE sessions SET revoked_at=NOW() WHERE id=$1 AND revoked_at IS NULL`

	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// Rotate revokes the old session and inserts its successor in one
// transaction. The revoke is conditional on revoked_at still being NULL, so
// of two concurrent rotations of the same session exactly one commits; the
// other observes zero rows updated and gets ErrSessionRotated.
func (r *sessionRepository) Rotate(ctx context.Context, oldID, userID string, newExpiresAt time.Time) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const revokeQuery = `UPDATE sessions SET revoked_at=NOW() WHERE id=$1 AND revoked_at IS NULL`
	cmd, err := tx.Exec(ctx, revokeQuery, oldID)
	if err != nil {
		return "", err
	}
	if cmd.RowsAffected() == 0 {
		return "", ErrSessionRotated
	}

	const insertQuery = `
        INSERT INTO sessions (user_id, token_hash, expires_at)
        VALUES ($1, $2, $3)
        RETURNING id`

	var newID string
	if err := tx.QueryRow(ctx, insertQuery, userID, placeholderHash, newExpiresAt).Scan(&newID); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return newID, nil
}
