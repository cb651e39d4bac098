package repo

import (
	"context"

	"github.com/Skryldev/identity-registry/db"
)

// Store hands out repositories bound either to the pool or to a transaction.
type Store struct {
	db *db.DB
}

// NewStore returns a Store backed by d.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Users returns a UserRepository that runs each statement on its own pooled
// connection.
func (s *Store) Users() UserRepository {
	return NewUserRepo(s.db)
}

// WithinTx runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise; fn's error is returned mapped to the
// db sentinels.
func (s *Store) WithinTx(ctx context.Context, fn func(UserRepository) error) error {
	return s.db.ExecTx(ctx, func(tx *db.Tx) error {
		return fn(NewUserRepo(tx))
	})
}

// Ping reports whether the underlying database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
