package repository

import (
	"context"
	"reflect"
	"time"

	"github.com/uptrace/bun"
)

// Repository is the CRUD contract shared by every entity type.
type Repository[T any] interface {
	// Namespace returns the entity type name.
	Namespace() string
	// AddOne inserts a record and returns its store-assigned id. Records
	// without a surrogate id return 0.
	AddOne(ctx context.Context, fields Fields) (int64, error)
	// FindOne returns the single match or nil when nothing matches.
	FindOne(ctx context.Context, where Predicate) (*T, error)
	// FindAll returns every record ordered by key.
	FindAll(ctx context.Context) ([]T, error)
	// FindSome returns the matches ordered by key.
	FindSome(ctx context.Context, where Predicate) ([]T, error)
	// Update applies fields to every match and returns the updated records.
	Update(ctx context.Context, where Predicate, fields Fields) ([]T, error)
	// Delete removes every match and returns the records as they were.
	Delete(ctx context.Context, where Predicate) ([]T, error)
}

// Option configures a BunRepository.
type Option func(*options)

type options struct {
	classify Classifier
	now      func() time.Time
}

// WithClassifier sets the classifier used to map driver errors to kinds.
func WithClassifier(c Classifier) Option {
	return func(o *options) {
		if c != nil {
			o.classify = c
		}
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Interface assertion to ensure BunRepository implements Repository[T]
var _ Repository[struct{}] = (*BunRepository[struct{}])(nil)

// BunRepository implements Repository on top of a bun connection or
// transaction. It never commits; the owner of db decides.
type BunRepository[T any] struct {
	db     bun.IDB
	schema Schema[T]
	opts   options
}

// NewBun binds schema to db.
func NewBun[T any](db bun.IDB, schema Schema[T], opts ...Option) *BunRepository[T] {
	o := options{
		classify: DefaultClassifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &BunRepository[T]{db: db, schema: schema, opts: o}
}

// Namespace returns the table name.
func (r *BunRepository[T]) Namespace() string {
	return r.schema.Name
}

// AddOne inserts fields as a new row.
func (r *BunRepository[T]) AddOne(ctx context.Context, fields Fields) (int64, error) {
	if len(fields) == 0 {
		return 0, Invalid("%s: no fields to insert", r.schema.Name)
	}

	values := make(map[string]interface{}, len(fields)+2)
	for _, col := range fields.Columns() {
		if !r.schema.writable(col) {
			return 0, Invalid("%s: column %q is not writable", r.schema.Name, col)
		}
		values[col] = fields[col]
	}
	if r.schema.Timestamps {
		now := r.opts.now()
		values[ColumnCreatedAt] = now
		values[ColumnUpdatedAt] = now
	}

	q := r.db.NewInsert().Model(&values).TableExpr("?", bun.Ident(r.schema.Name))

	idCol := r.schema.IDColumn()
	if idCol == "" {
		if _, err := q.Exec(ctx); err != nil {
			return 0, r.wrap("add_one", err)
		}
		return 0, nil
	}

	var id int64
	if err := q.Returning("?", bun.Ident(idCol)).Scan(ctx, &id); err != nil {
		return 0, r.wrap("add_one", err)
	}
	return id, nil
}

// FindOne returns the record matching where, nil if none does.
func (r *BunRepository[T]) FindOne(ctx context.Context, where Predicate) (*T, error) {
	if err := r.checkPredicate(where); err != nil {
		return nil, err
	}
	rows, err := r.selectRows(ctx, where, 2)
	if err != nil {
		return nil, r.wrap("find_one", err)
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return &rows[0], nil
	default:
		return nil, &StorageError{Op: "find_one", Entity: r.schema.Name, Kind: ErrMultipleResults, Err: ErrMultipleResults}
	}
}

// FindAll returns every record.
func (r *BunRepository[T]) FindAll(ctx context.Context) ([]T, error) {
	rows, err := r.selectRows(ctx, nil, 0)
	if err != nil {
		return nil, r.wrap("find_all", err)
	}
	return rows, nil
}

// FindSome returns every record matching where.
func (r *BunRepository[T]) FindSome(ctx context.Context, where Predicate) ([]T, error) {
	if err := r.checkPredicate(where); err != nil {
		return nil, err
	}
	rows, err := r.selectRows(ctx, where, 0)
	if err != nil {
		return nil, r.wrap("find_some", err)
	}
	return rows, nil
}

// Update applies fields to the records matching where. Key columns are
// immutable. The returned records reflect the post-update state.
func (r *BunRepository[T]) Update(ctx context.Context, where Predicate, fields Fields) ([]T, error) {
	if len(where) == 0 {
		return nil, Invalid("%s: update requires a predicate", r.schema.Name)
	}
	if err := r.checkPredicate(where); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, Invalid("%s: no fields to update", r.schema.Name)
	}
	for col := range fields {
		if r.schema.isKey(col) {
			return nil, Invalid("%s: key column %q is immutable", r.schema.Name, col)
		}
		if !r.schema.writable(col) {
			return nil, Invalid("%s: column %q is not writable", r.schema.Name, col)
		}
	}

	matched, err := r.selectRows(ctx, where, 0)
	if err != nil {
		return nil, r.wrap("update", err)
	}
	if len(matched) == 0 {
		return []T{}, nil
	}

	q := r.db.NewUpdate().Model((*T)(nil))
	for _, col := range fields.Columns() {
		q = q.Set("? = ?", bun.Ident(col), fields[col])
	}
	if r.schema.Timestamps {
		q = q.Set("? = ?", bun.Ident(ColumnUpdatedAt), r.opts.now())
	}
	q = applyWhere(q, where)
	if _, err := q.Exec(ctx); err != nil {
		return nil, r.wrap("update", err)
	}

	updated := make([]T, 0, len(matched))
	for i := range matched {
		rows, err := r.selectRows(ctx, r.schema.KeyOf(&matched[i]), 1)
		if err != nil {
			return nil, r.wrap("update", err)
		}
		updated = append(updated, rows...)
	}
	return updated, nil
}

// Delete removes the records matching where and returns them as they were
// before removal. No match yields an empty slice.
func (r *BunRepository[T]) Delete(ctx context.Context, where Predicate) ([]T, error) {
	if len(where) == 0 {
		return nil, Invalid("%s: delete requires a predicate", r.schema.Name)
	}
	if err := r.checkPredicate(where); err != nil {
		return nil, err
	}

	matched, err := r.selectRows(ctx, where, 0)
	if err != nil {
		return nil, r.wrap("delete", err)
	}
	if len(matched) == 0 {
		return []T{}, nil
	}

	q := applyWhere(r.db.NewDelete().Model((*T)(nil)), where)
	if _, err := q.Exec(ctx); err != nil {
		return nil, r.wrap("delete", err)
	}
	return matched, nil
}

func (r *BunRepository[T]) selectRows(ctx context.Context, where Predicate, limit int) ([]T, error) {
	rows := make([]T, 0)
	q := applyWhere(r.db.NewSelect().Model(&rows), where)
	for _, col := range r.schema.Key {
		q = q.OrderExpr("? ASC", bun.Ident(col))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BunRepository[T]) checkPredicate(where Predicate) error {
	for col := range where {
		if !r.schema.known(col) {
			return Invalid("%s: unknown column %q", r.schema.Name, col)
		}
	}
	return nil
}

func (r *BunRepository[T]) wrap(op string, err error) error {
	return Wrap(op, r.schema.Name, err, r.opts.classify)
}

// whereQuery is satisfied by bun's select, update and delete queries.
type whereQuery[Q any] interface {
	Where(query string, args ...interface{}) Q
}

func applyWhere[Q whereQuery[Q]](q Q, where Predicate) Q {
	for _, col := range where.Columns() {
		v := where[col]
		if isNil(v) {
			q = q.Where("? IS NULL", bun.Ident(col))
			continue
		}
		q = q.Where("? = ?", bun.Ident(col), v)
	}
	return q
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
