package repositorycache

import (
	"context"

	"github.com/goliatone/go-blogstore/cache"
	"github.com/goliatone/go-blogstore/repository"
)

// Interface assertion to ensure CachedRepository implements Repository[T]
var _ repository.Repository[struct{}] = (*CachedRepository[struct{}])(nil)

// oneResult is the cached snapshot of a FindOne call. Found distinguishes a
// cached absence from an empty entry.
type oneResult[T any] struct {
	Found bool `msgpack:"found"`
	Value *T   `msgpack:"value"`
}

// listResult is the cached snapshot of FindAll and FindSome calls.
type listResult[T any] struct {
	Records []T `msgpack:"records"`
}

// Option configures a CachedRepository.
type Option func(*settings)

type settings struct {
	codec    cache.Codec
	observer cache.Observer
	gate     func() error
	metrics  *Metrics
	writes   *WriteSet
}

// WithCodec replaces the msgpack snapshot codec.
func WithCodec(codec cache.Codec) Option {
	return func(s *settings) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithObserver receives every cache failure that was degraded to a
// pass-through.
func WithObserver(observer cache.Observer) Option {
	return func(s *settings) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithGate installs a check run before every operation. A non-nil result
// fails the call without touching the cache or the base repository.
func WithGate(gate func() error) Option {
	return func(s *settings) {
		s.gate = gate
	}
}

// WithMetrics records hits, misses, failures and invalidations into m.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithWriteSet shares the set of namespaces written in the current scope.
// Reads of a namespace in the set bypass the cache so uncommitted rows are
// never cached.
func WithWriteSet(ws *WriteSet) Option {
	return func(s *settings) {
		if ws != nil {
			s.writes = ws
		}
	}
}

// CachedRepository decorates a base repository with cache-aside reads and
// namespace invalidation after writes.
type CachedRepository[T any] struct {
	base repository.Repository[T]
	port cache.Port
	keys cache.KeySerializer
	settings
}

// New creates a new CachedRepository that wraps the base repository with caching
func New[T any](base repository.Repository[T], port cache.Port, keys cache.KeySerializer, opts ...Option) *CachedRepository[T] {
	s := settings{
		codec:    cache.NewMsgpackCodec(),
		observer: cache.NopObserver(),
		metrics:  &Metrics{},
		writes:   NewWriteSet(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if port == nil {
		port = cache.NopPort{}
	}
	if keys == nil {
		keys = cache.NewDefaultKeySerializer()
	}
	return &CachedRepository[T]{base: base, port: port, keys: keys, settings: s}
}

// Namespace returns the entity type name of the base repository.
func (c *CachedRepository[T]) Namespace() string {
	return c.base.Namespace()
}

// Stats returns a snapshot of the counters recorded for this repository.
func (c *CachedRepository[T]) Stats() Stats {
	return c.metrics.Snapshot()
}

// FindOne retrieves a single record, with caching. Absence is cached too.
func (c *CachedRepository[T]) FindOne(ctx context.Context, where repository.Predicate) (*T, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	res, err := readThrough(ctx, c, cache.OpFindOne, normalize(where), func(ctx context.Context) (oneResult[T], error) {
		record, err := c.base.FindOne(ctx, where)
		if err != nil {
			return oneResult[T]{}, err
		}
		return oneResult[T]{Found: record != nil, Value: record}, nil
	})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, nil
	}
	return res.Value, nil
}

// FindAll retrieves every record, with caching.
func (c *CachedRepository[T]) FindAll(ctx context.Context) ([]T, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	res, err := readThrough(ctx, c, cache.OpFindAll, nil, func(ctx context.Context) (listResult[T], error) {
		records, err := c.base.FindAll(ctx)
		return listResult[T]{Records: records}, err
	})
	if err != nil {
		return nil, err
	}
	return nonNil(res.Records), nil
}

// FindSome retrieves the records matching where, with caching.
func (c *CachedRepository[T]) FindSome(ctx context.Context, where repository.Predicate) ([]T, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	res, err := readThrough(ctx, c, cache.OpFindSome, normalize(where), func(ctx context.Context) (listResult[T], error) {
		records, err := c.base.FindSome(ctx, where)
		return listResult[T]{Records: records}, err
	})
	if err != nil {
		return nil, err
	}
	return nonNil(res.Records), nil
}

// AddOne inserts through the base repository and invalidates the namespace.
func (c *CachedRepository[T]) AddOne(ctx context.Context, fields repository.Fields) (int64, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	id, err := c.base.AddOne(ctx, fields)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx)
	return id, nil
}

// Update writes through the base repository and invalidates the namespace.
func (c *CachedRepository[T]) Update(ctx context.Context, where repository.Predicate, fields repository.Fields) ([]T, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	records, err := c.base.Update(ctx, where, fields)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return records, nil
}

// Delete removes through the base repository and invalidates the namespace.
func (c *CachedRepository[T]) Delete(ctx context.Context, where repository.Predicate) ([]T, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	records, err := c.base.Delete(ctx, where)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return records, nil
}

// readThrough serves key from the cache, or runs fetch and stores its result.
// Cache failures are reported and otherwise ignored.
func readThrough[T, R any](ctx context.Context, c *CachedRepository[T], op string, where repository.Predicate, fetch func(context.Context) (R, error)) (R, error) {
	ns := c.base.Namespace()
	if bypassed(ctx) || c.writes.Dirty(ns) {
		c.metrics.bypass()
		return fetch(ctx)
	}

	var key string
	if where == nil {
		key = c.keys.SerializeKey(ns, op)
	} else {
		key = c.keys.SerializeKey(ns, op, map[string]any(where))
	}

	data, ok, err := c.port.Get(ctx, key)
	switch {
	case err != nil:
		c.fail(ctx, cache.StageGet, key, err)
	case ok:
		var cached R
		err := c.codec.Unmarshal(data, &cached)
		if err == nil {
			c.metrics.hit()
			return cached, nil
		}
		c.fail(ctx, cache.StageDecode, key, err)
		if err := c.port.Delete(ctx, key); err != nil {
			c.fail(ctx, cache.StageInvalidate, key, err)
		}
	}

	c.metrics.miss()
	result, err := fetch(ctx)
	if err != nil {
		var zero R
		return zero, err
	}

	data, err = c.codec.Marshal(result)
	if err != nil {
		c.fail(ctx, cache.StageEncode, key, err)
		return result, nil
	}
	if err := c.port.Set(ctx, key, data); err != nil {
		c.fail(ctx, cache.StageSet, key, err)
	}
	return result, nil
}

func (c *CachedRepository[T]) invalidate(ctx context.Context) {
	ns := c.base.Namespace()
	c.writes.Mark(ns)
	c.metrics.invalidation()
	if err := c.port.DeleteNamespace(ctx, ns); err != nil {
		c.fail(ctx, cache.StageInvalidate, cache.NamespacePrefix(ns), err)
	}
}

func (c *CachedRepository[T]) fail(ctx context.Context, stage, key string, err error) {
	c.metrics.failure()
	c.observer.CacheFailure(ctx, cache.Event{
		Stage:     stage,
		Namespace: c.base.Namespace(),
		Key:       key,
		Err:       err,
	})
}

func (c *CachedRepository[T]) check() error {
	if c.gate == nil {
		return nil
	}
	return c.gate()
}

// normalize maps a nil predicate onto the empty one so both share a key.
func normalize(where repository.Predicate) repository.Predicate {
	if where == nil {
		return repository.Predicate{}
	}
	return where
}

func nonNil[T any](records []T) []T {
	if records == nil {
		return []T{}
	}
	return records
}
