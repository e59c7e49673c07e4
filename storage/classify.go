package storage

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-blogstore/repository"
)

// Classify maps sqlite and postgres driver errors onto repository error kinds
// and falls back to repository.DefaultClassifier.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if kind := classifySQLite(liteErr); kind != nil {
			return kind
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if kind := classifyPostgres(pqErr); kind != nil {
			return kind
		}
	}

	return repository.DefaultClassifier(err)
}

func classifySQLite(err sqlite3.Error) error {
	switch err.ExtendedCode {
	case sqlite3.ErrConstraintUnique,
		sqlite3.ErrConstraintPrimaryKey,
		sqlite3.ErrConstraintForeignKey:
		return repository.ErrConflict
	case sqlite3.ErrConstraintNotNull, sqlite3.ErrConstraintCheck:
		return repository.ErrValidation
	}

	switch err.Code {
	case sqlite3.ErrConstraint:
		return repository.ErrConflict
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrCantOpen:
		return repository.ErrTransientStorage
	case sqlite3.ErrMismatch, sqlite3.ErrRange, sqlite3.ErrTooBig:
		return repository.ErrValidation
	}
	return nil
}

// classifyPostgres uses SQLSTATE codes and classes.
func classifyPostgres(err *pq.Error) error {
	switch err.Code {
	case "23505", "23503", "23P01":
		return repository.ErrConflict
	case "23502", "23514":
		return repository.ErrValidation
	case "40001", "40P01", "57014":
		return repository.ErrTransientStorage
	}

	switch {
	case strings.HasPrefix(string(err.Code), "08"), strings.HasPrefix(string(err.Code), "53"):
		return repository.ErrTransientStorage
	case strings.HasPrefix(string(err.Code), "22"):
		return repository.ErrValidation
	}
	return nil
}
