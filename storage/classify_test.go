package storage_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-blogstore/model"
	"github.com/goliatone/go-blogstore/pkg/testsupport"
	"github.com/goliatone/go-blogstore/repository"
	"github.com/goliatone/go-blogstore/storage"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "sqlite unique", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, want: repository.ErrConflict},
		{name: "sqlite primary key", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, want: repository.ErrConflict},
		{name: "sqlite foreign key", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, want: repository.ErrConflict},
		{name: "sqlite not null", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, want: repository.ErrValidation},
		{name: "sqlite busy", err: sqlite3.Error{Code: sqlite3.ErrBusy}, want: repository.ErrTransientStorage},
		{name: "sqlite wrapped", err: fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), want: repository.ErrTransientStorage},
		{name: "postgres unique", err: &pq.Error{Code: "23505"}, want: repository.ErrConflict},
		{name: "postgres foreign key", err: &pq.Error{Code: "23503"}, want: repository.ErrConflict},
		{name: "postgres not null", err: &pq.Error{Code: "23502"}, want: repository.ErrValidation},
		{name: "postgres bad input", err: &pq.Error{Code: "22P02"}, want: repository.ErrValidation},
		{name: "postgres serialization", err: &pq.Error{Code: "40001"}, want: repository.ErrTransientStorage},
		{name: "postgres connection class", err: &pq.Error{Code: "08006"}, want: repository.ErrTransientStorage},
		{name: "postgres syntax", err: &pq.Error{Code: "42601"}, want: nil},
		{name: "deadline", err: context.DeadlineExceeded, want: repository.ErrTransientStorage},
		{name: "unknown", err: errors.New("nope"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, storage.Classify(tt.err))
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewStore(t)

	session, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = session.DB().NewInsert().
		Model(&model.Tag{Name: "kept", Timestamps: stamps()}).
		Exec(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Commit())
	require.NoError(t, session.Rollback(), "rollback after commit is a no-op")
	require.NoError(t, session.Release())
	require.NoError(t, session.Release(), "release is idempotent")

	session, err = store.Begin(ctx)
	require.NoError(t, err)
	_, err = session.DB().NewInsert().
		Model(&model.Tag{Name: "discarded", Timestamps: stamps()}).
		Exec(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Release(), "release rolls back an unfinished session")

	var names []string
	err = store.DB().NewSelect().Model((*model.Tag)(nil)).Column("name").Scan(ctx, &names)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, names)
}

func stamps() model.Timestamps {
	now := time.Now().UTC()
	return model.Timestamps{CreatedAt: now, UpdatedAt: now}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := storage.Open(context.Background(), storage.Options{Driver: "oracle"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpen_LogsQueries(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.Options{
		Driver:       storage.DriverSQLite,
		DSN:          testsupport.MemoryDSN(),
		MaxOpenConns: 1,
		LogQueries:   true,
	}, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, model.CreateSchema(ctx, db))
	require.NoError(t, model.CreateSchema(ctx, db), "schema creation is idempotent")
}
