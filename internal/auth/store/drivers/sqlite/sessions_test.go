package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/scrum0/scrum0/internal/auth/domain"
	"github.com/scrum0/scrum0/internal/auth/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	// Applying twice is a no-op.
	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestSessionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Sessions().GetSession(ctx, "k1")
	require.ErrorIs(t, err, store.ErrNotFound)

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := created.Add(time.Hour)
	require.NoError(t, s.Sessions().UpsertSession(ctx, domain.StoredSession{
		Key:                "k1",
		UserID:             "u1",
		Email:              "a@b.com",
		AccessTokenSealed:  []byte{1, 2, 3},
		RefreshTokenSealed: []byte{4, 5, 6},
		ExpiresAt:          expires,
		CreatedAt:          created,
		UpdatedAt:          created,
	}))

	got, err := s.Sessions().GetSession(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)
	require.Equal(t, "a@b.com", got.Email)
	require.Equal(t, []byte{1, 2, 3}, got.AccessTokenSealed)
	require.Equal(t, []byte{4, 5, 6}, got.RefreshTokenSealed)
	require.True(t, expires.Equal(got.ExpiresAt))
	require.True(t, created.Equal(got.CreatedAt))

	// Replacing keeps created_at.
	require.NoError(t, s.Sessions().UpsertSession(ctx, domain.StoredSession{
		Key:                "k1",
		UserID:             "u1",
		Email:              "a@b.com",
		AccessTokenSealed:  []byte{7},
		RefreshTokenSealed: []byte{8},
		ExpiresAt:          expires.Add(time.Hour),
		CreatedAt:          created.Add(time.Minute),
		UpdatedAt:          created.Add(time.Minute),
	}))

	got, err = s.Sessions().GetSession(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, []byte{7}, got.AccessTokenSealed)
	require.True(t, created.Equal(got.CreatedAt))
	require.True(t, created.Add(time.Minute).Equal(got.UpdatedAt))

	require.NoError(t, s.Sessions().DeleteSession(ctx, "k1"))
	require.NoError(t, s.Sessions().DeleteSession(ctx, "k1"))
	_, err = s.Sessions().GetSession(ctx, "k1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteSessionsExpiredBefore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now().UTC()
	for key, exp := range map[string]time.Time{
		"old":   now.Add(-48 * time.Hour),
		"fresh": now.Add(time.Hour),
	} {
		require.NoError(t, s.Sessions().UpsertSession(ctx, domain.StoredSession{
			Key:                key,
			UserID:             key,
			AccessTokenSealed:  []byte{1},
			RefreshTokenSealed: []byte{1},
			ExpiresAt:          exp,
		}))
	}

	n, err := s.Sessions().DeleteSessionsExpiredBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = s.Sessions().GetSession(ctx, "old")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Sessions().GetSession(ctx, "fresh")
	require.NoError(t, err)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Sessions().UpsertSession(ctx, domain.StoredSession{
			Key:                "k",
			UserID:             "u",
			AccessTokenSealed:  []byte{1},
			RefreshTokenSealed: []byte{1},
			ExpiresAt:          time.Now(),
		}))
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.Sessions().GetSession(ctx, "k")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, s.Ping(ctx))
}
