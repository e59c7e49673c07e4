package testsupport

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-blogstore/model"
	"github.com/goliatone/go-blogstore/storage"
)

// MemoryDSN returns a DSN for a private shared-cache in-memory sqlite
// database with foreign keys enforced.
func MemoryDSN() string {
	return fmt.Sprintf("file:blogstore-%s?mode=memory&cache=shared&_fk=1", uuid.NewString())
}

// NewDB opens a fresh in-memory database with the blog schema. The pool
// holds a single connection, which serializes transactions; tests must not
// read outside a scope while one is open. A pinned side connection keeps the
// database alive when the pool discards its connection after a cancelled
// transaction.
func NewDB(t testing.TB) *bun.DB {
	t.Helper()

	ctx := context.Background()
	dsn := MemoryDSN()

	anchor, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("failed to open anchor connection: %v", err)
	}
	pinned, err := anchor.Conn(ctx)
	if err != nil {
		t.Fatalf("failed to pin anchor connection: %v", err)
	}
	t.Cleanup(func() {
		_ = pinned.Close()
		_ = anchor.Close()
	})

	db, err := storage.Open(ctx, storage.Options{
		Driver:       storage.DriverSQLite,
		DSN:          dsn,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := model.CreateSchema(ctx, db); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

// NewStore returns a store over NewDB.
func NewStore(t testing.TB) *storage.BunStore {
	t.Helper()
	return storage.NewBunStore(NewDB(t), nil)
}
