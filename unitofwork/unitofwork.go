// Package unitofwork binds one transaction and one set of cached
// repositories into a scope that either commits as a whole or rolls back.
package unitofwork

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-blogstore/cache"
	"github.com/goliatone/go-blogstore/model"
	"github.com/goliatone/go-blogstore/repository"
	"github.com/goliatone/go-blogstore/repositorycache"
	"github.com/goliatone/go-blogstore/storage"
)

// State is the lifecycle position of a UnitOfWork.
type State int32

const (
	NotStarted State = iota
	Active
	Committed
	RolledBack
	Closed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Active:
		return "active"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrScopeUsed is returned by Run on a unit of work that already ran.
	ErrScopeUsed = errors.New("unit of work already used")
	// ErrScopeActive is returned by Run while the same unit of work is running.
	ErrScopeActive = errors.New("unit of work already active")
	// ErrScopeClosed is returned by repository calls made outside the scope.
	ErrScopeClosed = repository.ErrSessionClosed
)

const entityName = "unit_of_work"

// Option configures a Factory.
type Option func(*Factory)

// WithKeySerializer replaces the default cache key serializer.
func WithKeySerializer(keys cache.KeySerializer) Option {
	return func(f *Factory) {
		if keys != nil {
			f.keys = keys
		}
	}
}

// WithCodec replaces the msgpack snapshot codec.
func WithCodec(codec cache.Codec) Option {
	return func(f *Factory) {
		if codec != nil {
			f.codec = codec
		}
	}
}

// WithObserver receives cache failures from every scope.
func WithObserver(observer cache.Observer) Option {
	return func(f *Factory) {
		if observer != nil {
			f.observer = observer
		}
	}
}

// WithClassifier maps driver errors to repository error kinds.
func WithClassifier(classify repository.Classifier) Option {
	return func(f *Factory) {
		if classify != nil {
			f.classify = classify
		}
	}
}

// WithLogger sets the scope lifecycle logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		f.now = now
	}
}

// Factory creates units of work sharing one store and one cache port.
type Factory struct {
	store    storage.Store
	port     cache.Port
	keys     cache.KeySerializer
	codec    cache.Codec
	observer cache.Observer
	classify repository.Classifier
	logger   zerolog.Logger
	now      func() time.Time
	metrics  *xsync.MapOf[string, *repositorycache.Metrics]
}

// NewFactory returns a Factory over store and port. A nil port disables
// caching.
func NewFactory(store storage.Store, port cache.Port, opts ...Option) *Factory {
	if port == nil {
		port = cache.NopPort{}
	}
	f := &Factory{
		store:    store,
		port:     port,
		keys:     cache.NewDefaultKeySerializer(),
		codec:    cache.NewMsgpackCodec(),
		classify: storage.Classify,
		logger:   zerolog.Nop(),
		metrics:  xsync.NewMapOf[string, *repositorycache.Metrics](),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.observer == nil {
		f.observer = cache.LogObserver(f.logger)
	}
	return f
}

// New returns a fresh unit of work in state NotStarted.
func (f *Factory) New() *UnitOfWork {
	id := uuid.NewString()
	return &UnitOfWork{
		ID:      id,
		factory: f,
		writes:  repositorycache.NewWriteSet(),
		logger:  f.logger.With().Str("scope", id).Logger(),
	}
}

// Run executes fn in a new unit of work.
func (f *Factory) Run(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) error {
	return f.New().Run(ctx, fn)
}

// Stats returns the cache counters per namespace, accumulated over every
// scope created by f.
func (f *Factory) Stats() map[string]repositorycache.Stats {
	out := make(map[string]repositorycache.Stats)
	f.metrics.Range(func(ns string, m *repositorycache.Metrics) bool {
		out[ns] = m.Snapshot()
		return true
	})
	return out
}

func (f *Factory) metricsFor(namespace string) *repositorycache.Metrics {
	m, _ := f.metrics.LoadOrCompute(namespace, func() *repositorycache.Metrics {
		return &repositorycache.Metrics{}
	})
	return m
}

// Within runs fn in a new unit of work and returns its result once the
// scope committed.
func Within[R any](ctx context.Context, f *Factory, fn func(ctx context.Context, uow *UnitOfWork) (R, error)) (R, error) {
	var out R
	err := f.Run(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		r, err := fn(ctx, uow)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return out, nil
}

// UnitOfWork owns one storage session and the repositories bound to it.
// The repositories are set when Run starts and refuse calls once the scope
// has ended.
type UnitOfWork struct {
	ID string

	Posts          repository.Repository[model.Post]
	Comments       repository.Repository[model.Comment]
	Tags           repository.Repository[model.Tag]
	Categories     repository.Repository[model.Category]
	PostTags       repository.Repository[model.PostTag]
	PostCategories repository.Repository[model.PostCategory]

	factory *Factory
	state   atomic.Int32
	writes  *repositorycache.WriteSet
	logger  zerolog.Logger
}

// State returns the current lifecycle state.
func (u *UnitOfWork) State() State {
	return State(u.state.Load())
}

// Run begins a session, runs fn and commits when fn returns nil with ctx
// still live. An error, a panic or a cancelled ctx rolls back instead; the
// error is returned unchanged and a panic is re-raised. The session is
// released in every case. A unit of work runs once.
func (u *UnitOfWork) Run(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) (err error) {
	if !u.state.CompareAndSwap(int32(NotStarted), int32(Active)) {
		if u.State() == Active {
			return ErrScopeActive
		}
		return ErrScopeUsed
	}

	session, err := u.factory.store.Begin(ctx)
	if err != nil {
		u.state.Store(int32(Closed))
		u.logger.Error().Err(err).Msg("begin failed")
		return repository.Wrap("begin", entityName, err, u.factory.classify)
	}
	u.bind(session)
	u.logger.Debug().Msg("scope started")

	defer func() {
		if r := recover(); r != nil {
			u.rollback(session, fmt.Errorf("panic: %v", r))
			u.release(session)
			panic(r)
		}
		u.release(session)
	}()

	if err := fn(ctx, u); err != nil {
		u.rollback(session, err)
		return err
	}
	if err := ctx.Err(); err != nil {
		u.rollback(session, err)
		return err
	}

	if err := session.Commit(); err != nil {
		u.rollback(session, err)
		u.logger.Error().Err(err).Msg("commit failed")
		return repository.Wrap("commit", entityName, err, u.factory.classify)
	}
	u.state.Store(int32(Committed))
	u.logger.Debug().Strs("written", u.writes.Namespaces()).Msg("scope committed")
	u.invalidateWritten(ctx)
	return nil
}

func (u *UnitOfWork) bind(session storage.Session) {
	db := session.DB()
	opts := []repository.Option{repository.WithClassifier(u.factory.classify)}
	if u.factory.now != nil {
		opts = append(opts, repository.WithClock(u.factory.now))
	}

	u.Posts = cached(u, repository.NewBun(db, model.PostSchema, opts...))
	u.Comments = cached(u, repository.NewBun(db, model.CommentSchema, opts...))
	u.Tags = cached(u, repository.NewBun(db, model.TagSchema, opts...))
	u.Categories = cached(u, repository.NewBun(db, model.CategorySchema, opts...))
	u.PostTags = cached(u, repository.NewBun(db, model.PostTagSchema, opts...))
	u.PostCategories = cached(u, repository.NewBun(db, model.PostCategorySchema, opts...))
}

func cached[T any](u *UnitOfWork, base repository.Repository[T]) repository.Repository[T] {
	f := u.factory
	return repositorycache.New[T](base, f.port, f.keys,
		repositorycache.WithCodec(f.codec),
		repositorycache.WithObserver(f.observer),
		repositorycache.WithMetrics(f.metricsFor(base.Namespace())),
		repositorycache.WithWriteSet(u.writes),
		repositorycache.WithGate(u.gate),
	)
}

func (u *UnitOfWork) gate() error {
	if u.State() != Active {
		return ErrScopeClosed
	}
	return nil
}

// rollback leaves the original failure untouched; its own errors are logged.
func (u *UnitOfWork) rollback(session storage.Session, cause error) {
	u.state.Store(int32(RolledBack))
	if err := session.Rollback(); err != nil {
		u.logger.Error().Err(err).AnErr("cause", cause).Msg("rollback failed")
		return
	}
	u.logger.Debug().AnErr("cause", cause).Msg("scope rolled back")
}

func (u *UnitOfWork) release(session storage.Session) {
	if err := session.Release(); err != nil {
		u.logger.Error().Err(err).Msg("release failed")
	}
	u.state.Store(int32(Closed))
}

// invalidateWritten drops the written namespaces once more after commit so
// entries cached by other scopes while this one was open do not outlive it.
func (u *UnitOfWork) invalidateWritten(ctx context.Context) {
	for _, ns := range u.writes.Namespaces() {
		if err := u.factory.port.DeleteNamespace(ctx, ns); err != nil {
			u.factory.observer.CacheFailure(ctx, cache.Event{
				Stage:     cache.StageInvalidate,
				Namespace: ns,
				Key:       cache.NamespacePrefix(ns),
				Err:       err,
			})
		}
	}
}
