package sqlite

import (
	"context"
	"time"

	"github.com/scrum0/scrum0/internal/auth/domain"
)

type sessionsRepo struct {
	db DBTX
}

const getSession = `
SELECT key, user_id, email, access_token_sealed, refresh_token_sealed, expires_at, created_at, updated_at
FROM sessions
WHERE key = ?`

func (r *sessionsRepo) GetSession(ctx context.Context, key string) (domain.StoredSession, error) {
	var s domain.StoredSession
	err := r.db.QueryRowContext(ctx, getSession, key).Scan(
		&s.Key,
		&s.UserID,
		&s.Email,
		&s.AccessTokenSealed,
		&s.RefreshTokenSealed,
		&s.ExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return domain.StoredSession{}, mapNotFound(err)
	}
	return s, nil
}

const upsertSession = `
INSERT INTO sessions (key, user_id, email, access_token_sealed, refresh_token_sealed, expires_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (key) DO UPDATE SET
    user_id = excluded.user_id,
    email = excluded.email,
    access_token_sealed = excluded.access_token_sealed,
    refresh_token_sealed = excluded.refresh_token_sealed,
    expires_at = excluded.expires_at,
    updated_at = excluded.updated_at`

func (r *sessionsRepo) UpsertSession(ctx context.Context, s domain.StoredSession) error {
	now := time.Now().UTC()
	created := s.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = now
	}

	_, err := r.db.ExecContext(ctx, upsertSession,
		s.Key,
		s.UserID,
		s.Email,
		s.AccessTokenSealed,
		s.RefreshTokenSealed,
		s.ExpiresAt.UTC(),
		created.UTC(),
		updated.UTC(),
	)
	return err
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key)
	return err
}

func (r *sessionsRepo) DeleteSessionsExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, t.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
