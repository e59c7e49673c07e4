// Package storage is the transactional storage port used by the unit of work,
// with a bun implementation over database/sql.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/uptrace/bun"
)

// Session is one transaction. Commit or Rollback ends it; Release returns
// the underlying connection and is safe to call after either, or instead of
// both.
type Session interface {
	DB() bun.IDB
	Commit() error
	Rollback() error
	Release() error
}

// Store opens sessions.
type Store interface {
	Begin(ctx context.Context) (Session, error)
}

// Interface assertion to ensure BunStore implements Store
var _ Store = (*BunStore)(nil)

// BunStore opens bun transactions on a shared connection pool.
type BunStore struct {
	db     *bun.DB
	txOpts *sql.TxOptions
}

// NewBunStore returns a Store over db. txOpts may be nil for driver defaults.
func NewBunStore(db *bun.DB, txOpts *sql.TxOptions) *BunStore {
	return &BunStore{db: db, txOpts: txOpts}
}

// DB returns the underlying connection pool.
func (s *BunStore) DB() *bun.DB {
	return s.db
}

// Begin starts a transaction bound to ctx. Cancelling ctx rolls it back.
func (s *BunStore) Begin(ctx context.Context) (Session, error) {
	tx, err := s.db.BeginTx(ctx, s.txOpts)
	if err != nil {
		return nil, err
	}
	return &bunSession{tx: tx}, nil
}

type bunSession struct {
	mu       sync.Mutex
	tx       bun.Tx
	done     bool
	released bool
}

func (s *bunSession) DB() bun.IDB {
	return &s.tx
}

func (s *bunSession) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	return s.tx.Commit()
}

func (s *bunSession) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Release rolls back a transaction nobody finished. database/sql returns the
// connection to the pool once the transaction ends.
func (s *bunSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
