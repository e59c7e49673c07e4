package di

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-blogstore/cache"
	"github.com/goliatone/go-blogstore/config"
	"github.com/goliatone/go-blogstore/internal/logging"
	"github.com/goliatone/go-blogstore/model"
	"github.com/goliatone/go-blogstore/service"
	"github.com/goliatone/go-blogstore/storage"
	"github.com/goliatone/go-blogstore/unitofwork"
)

// Container wires the blog store: database, cache port, key serializer,
// unit of work factory and domain services. Every component is built once
// and shared.
type Container struct {
	config   config.Config
	logger   zerolog.Logger
	db       *bun.DB
	store    *storage.BunStore
	port     cache.Port
	keys     cache.KeySerializer
	factory  *unitofwork.Factory
	services *service.Services

	closers []io.Closer
}

// Option overrides a component the container would otherwise build.
type Option func(*options)

type options struct {
	logger *zerolog.Logger
	db     *bun.DB
	port   cache.Port
}

// WithLogger uses logger instead of one built from the logging section.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithDB uses db instead of opening the configured database. The container
// does not close it.
func WithDB(db *bun.DB) Option {
	return func(o *options) {
		o.db = db
	}
}

// WithCachePort uses port instead of the configured backend.
func WithCachePort(port cache.Port) Option {
	return func(o *options) {
		o.port = port
	}
}

// NewContainer builds every component from cfg. On failure the parts
// already built are closed.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{config: cfg}

	if o.logger != nil {
		c.logger = *o.logger
	} else {
		logger, closer, err := logging.New(cfg.Logging)
		if err != nil {
			return nil, err
		}
		c.logger = logger
		c.closers = append(c.closers, closer)
	}

	if o.db != nil {
		c.db = o.db
	} else {
		db, err := storage.Open(ctx, cfg.StorageOptions(), c.logger)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.db = db
		c.closers = append(c.closers, db)
	}

	if cfg.Database.Migrate {
		if err := model.CreateSchema(ctx, c.db); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	if o.port != nil {
		c.port = o.port
	} else {
		port, err := newCachePort(ctx, cfg, c.logger)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.port = port
		if closer, ok := port.(io.Closer); ok {
			c.closers = append(c.closers, closer)
		}
	}

	c.store = storage.NewBunStore(c.db, nil)
	c.keys = cache.NewDefaultKeySerializer()
	c.factory = unitofwork.NewFactory(c.store, c.port,
		unitofwork.WithKeySerializer(c.keys),
		unitofwork.WithObserver(cache.LogObserver(c.logger)),
		unitofwork.WithLogger(c.logger),
	)
	c.services = service.New(c.factory)

	c.logger.Debug().
		Str("driver", cfg.Database.Driver).
		Str("cache", fmt.Sprintf("%T", c.port)).
		Msg("container ready")
	return c, nil
}

// NewContainerWithDefaults builds a container from config.Default.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	return NewContainer(ctx, config.Default(), opts...)
}

// newCachePort builds the configured backend. When it cannot be built and a
// fallback backend is configured, the fallback is used instead.
func newCachePort(ctx context.Context, cfg config.Config, logger zerolog.Logger) (cache.Port, error) {
	port, err := cache.NewPort(ctx, cfg.CacheConfig())
	if err == nil {
		return port, nil
	}

	fallback, ok := cfg.FallbackCacheConfig()
	if !ok {
		return nil, fmt.Errorf("cache backend %s: %w", cfg.Cache.Backend, err)
	}
	logger.Warn().Err(err).
		Str("backend", cfg.Cache.Backend).
		Str("fallback", string(fallback.Backend)).
		Msg("cache backend unavailable, using fallback")

	port, ferr := cache.NewPort(ctx, fallback)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	return port, nil
}

func (c *Container) Config() config.Config {
	return c.config
}

func (c *Container) Logger() zerolog.Logger {
	return c.logger
}

// DB returns the shared connection pool.
func (c *Container) DB() *bun.DB {
	return c.db
}

func (c *Container) Store() *storage.BunStore {
	return c.store
}

// CachePort returns the cache backend shared by every scope.
func (c *Container) CachePort() cache.Port {
	return c.port
}

func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keys
}

// Factory returns the unit of work factory.
func (c *Container) Factory() *unitofwork.Factory {
	return c.factory
}

// Services returns the domain services.
func (c *Container) Services() *service.Services {
	return c.services
}

// Close releases the owned cache port, database and log file, most recent
// first.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
