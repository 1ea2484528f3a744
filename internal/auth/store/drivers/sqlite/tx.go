package sqlite

import (
	"database/sql"

	"github.com/scrum0/scrum0/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Sessions() store.Sessions { return &sessionsRepo{db: t.tx} }
