package repository

import (
	"sort"
)

// Predicate maps column names to expected values. A nil value matches NULL.
// An empty predicate matches every record.
type Predicate map[string]any

// Fields maps column names to the values written by an insert or update.
type Fields map[string]any

// Columns returns the predicate columns in a stable order.
func (p Predicate) Columns() []string {
	return sortedKeys(p)
}

// Columns returns the field columns in a stable order.
func (f Fields) Columns() []string {
	return sortedKeys(f)
}

// Schema describes the persisted shape of one entity type.
type Schema[T any] struct {
	// Name is the table name. It doubles as the entity type name and the
	// cache namespace.
	Name string

	// Columns lists the columns callers may write.
	Columns []string

	// Key lists the identity columns, in order.
	Key []string

	// Surrogate reports whether Key is a single id assigned by the store.
	Surrogate bool

	// Timestamps enables created_at/updated_at maintenance.
	Timestamps bool

	// KeyOf returns the identity predicate of a record.
	KeyOf func(*T) Predicate
}

// Validate checks that the schema is usable by a repository.
func (s Schema[T]) Validate() error {
	if s.Name == "" {
		return Invalid("schema name is required")
	}
	if len(s.Key) == 0 {
		return Invalid("schema %s: key columns are required", s.Name)
	}
	if s.Surrogate && len(s.Key) != 1 {
		return Invalid("schema %s: surrogate key must be a single column", s.Name)
	}
	if s.KeyOf == nil {
		return Invalid("schema %s: KeyOf is required", s.Name)
	}
	return nil
}

// IDColumn returns the surrogate id column, or "" for composite keys.
func (s Schema[T]) IDColumn() string {
	if !s.Surrogate {
		return ""
	}
	return s.Key[0]
}

func (s Schema[T]) writable(col string) bool {
	for _, c := range s.Columns {
		if c == col {
			return true
		}
	}
	return false
}

func (s Schema[T]) isKey(col string) bool {
	for _, c := range s.Key {
		if c == col {
			return true
		}
	}
	return false
}

func (s Schema[T]) known(col string) bool {
	if s.writable(col) || s.isKey(col) {
		return true
	}
	return s.Timestamps && (col == ColumnCreatedAt || col == ColumnUpdatedAt)
}

// Timestamp column names maintained when Schema.Timestamps is set.
const (
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
