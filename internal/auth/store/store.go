package store

import (
	"context"
	"errors"
	"time"

	"github.com/scrum0/scrum0/internal/auth/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Concrete drivers implement this
// and expose sub-repositories so callers cannot nest transactions.
type Store interface {
	Sessions() Sessions

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying database.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped view of the repositories.
type Tx interface {
	Sessions() Sessions
}

type Sessions interface {
	// GetSession returns the session stored under key.
	GetSession(ctx context.Context, key string) (domain.StoredSession, error)

	// UpsertSession writes s, replacing any session under the same key.
	// created_at is preserved on replace.
	UpsertSession(ctx context.Context, s domain.StoredSession) error

	// DeleteSession removes the session under key. Missing keys are not an error.
	DeleteSession(ctx context.Context, key string) error

	// DeleteSessionsExpiredBefore is housekeeping for sessions whose refresh
	// has not happened in a long time.
	DeleteSessionsExpiredBefore(ctx context.Context, t time.Time) (int64, error)
}
