package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scrum0/scrum0/internal/auth/domain"
	"github.com/scrum0/scrum0/pkg/cryptox"
	"github.com/scrum0/scrum0/pkg/supabase"
)

// SessionStorageAdapter adapts the Store to supabase.SessionStorage so the
// client can persist its session without depending on the domain package.
// Tokens are sealed before they reach the database.
type SessionStorageAdapter struct {
	store  Store
	sealer *cryptox.Sealer
	key    string
}

// NewSessionStorageAdapter stores the session for the project at projectURL.
func NewSessionStorageAdapter(store Store, sealer *cryptox.Sealer, projectURL string) *SessionStorageAdapter {
	return &SessionStorageAdapter{
		store:  store,
		sealer: sealer,
		key:    cryptox.Fingerprint(projectURL),
	}
}

// LoadSession returns supabase.ErrNoSession when nothing is stored. A row that
// no longer decrypts (the secret changed) is discarded and reported the same way.
func (a *SessionStorageAdapter) LoadSession(ctx context.Context) (*supabase.Session, error) {
	row, err := a.store.Sessions().GetSession(ctx, a.key)
	if errors.Is(err, ErrNotFound) {
		return nil, supabase.ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	access, err := a.sealer.Open(row.AccessTokenSealed, a.aad("access"))
	if err != nil {
		return nil, a.discard(ctx, err)
	}
	refresh, err := a.sealer.Open(row.RefreshTokenSealed, a.aad("refresh"))
	if err != nil {
		return nil, a.discard(ctx, err)
	}

	return &supabase.Session{
		AccessToken:  string(access),
		RefreshToken: string(refresh),
		ExpiresAt:    row.ExpiresAt,
		User: supabase.User{
			ID:    row.UserID,
			Email: row.Email,
		},
	}, nil
}

// SaveSession seals and upserts s.
func (a *SessionStorageAdapter) SaveSession(ctx context.Context, s *supabase.Session) error {
	access, err := a.sealer.Seal([]byte(s.AccessToken), a.aad("access"))
	if err != nil {
		return err
	}
	refresh, err := a.sealer.Seal([]byte(s.RefreshToken), a.aad("refresh"))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return a.store.WithTx(ctx, func(tx Tx) error {
		created := now
		existing, err := tx.Sessions().GetSession(ctx, a.key)
		switch {
		case err == nil && existing.UserID == s.User.ID:
			created = existing.CreatedAt
		case err != nil && !errors.Is(err, ErrNotFound):
			return err
		}

		return tx.Sessions().UpsertSession(ctx, domain.StoredSession{
			Key:                a.key,
			UserID:             s.User.ID,
			Email:              s.User.Email,
			AccessTokenSealed:  access,
			RefreshTokenSealed: refresh,
			ExpiresAt:          s.ExpiresAt,
			CreatedAt:          created,
			UpdatedAt:          now,
		})
	})
}

// DeleteSession removes the stored session.
func (a *SessionStorageAdapter) DeleteSession(ctx context.Context) error {
	return a.store.Sessions().DeleteSession(ctx, a.key)
}

func (a *SessionStorageAdapter) aad(field string) []byte {
	return []byte(a.key + ":" + field)
}

func (a *SessionStorageAdapter) discard(ctx context.Context, cause error) error {
	if err := a.store.Sessions().DeleteSession(ctx, a.key); err != nil {
		return fmt.Errorf("failed to discard unreadable session: %w", err)
	}
	return fmt.Errorf("%w: stored session unreadable: %v", supabase.ErrNoSession, cause)
}
