package db

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository stores server-side web sessions. The OAuth token lives
// only here; the browser holds the session id.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// Create inserts session with a lifetime of ttl. CreatedAt and ExpiresAt are
// set from the database clock.
func (r *SessionRepository) Create(ctx context.Context, session *Session, ttl time.Duration) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, access_token, refresh_token, token_expiry, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW() + make_interval(secs => $6))
		RETURNING created_at, expires_at
	`,
		session.ID,
		session.UserID,
		session.Token.AccessToken,
		session.Token.RefreshToken,
		session.Token.Expiry,
		ttl.Seconds(),
	).Scan(&session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		return errors.Wrapf(err, "inserting session for user %s", session.UserID)
	}
	return nil
}

// Get loads an unexpired session together with the owner's display name,
// falling back to the user id. Unknown or expired ids give ErrNotFound.
func (r *SessionRepository) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.pool.QueryRow(ctx, `
		SELECT s.id, s.user_id, COALESCE(NULLIF(u.display_name, ''), u.id),
		       s.access_token, s.refresh_token, s.token_expiry, s.created_at, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.expires_at > NOW()
	`, id).Scan(
		&s.ID, &s.UserID, &s.UserName,
		&s.Token.AccessToken, &s.Token.RefreshToken, &s.Token.Expiry,
		&s.CreatedAt, &s.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying session")
	}
	return &s, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return nil
}

// UpdateToken stores a refreshed token. An empty refresh token keeps the
// stored one, since Spotify does not always rotate it.
func (r *SessionRepository) UpdateToken(ctx context.Context, id string, token SessionToken) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET access_token = $2,
		    refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
		    token_expiry = $4
		WHERE id = $1 AND expires_at > NOW()
	`, id, token.AccessToken, token.RefreshToken, token.Expiry)
	if err != nil {
		return errors.Wrap(err, "updating session token")
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes expired sessions and reports how many were dropped.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired sessions")
	}
	return result.RowsAffected(), nil
}
