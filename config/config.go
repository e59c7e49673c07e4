// Package config loads blogstore settings. Values are layered: built-in
// defaults, then an optional YAML file, then BLOGSTORE_* environment
// variables (BLOGSTORE_CACHE_BACKEND overrides cache.backend).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/goliatone/go-blogstore/cache"
	"github.com/goliatone/go-blogstore/internal/logging"
	"github.com/goliatone/go-blogstore/storage"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BLOGSTORE"

// Config is the complete settings tree.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  logging.Config `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogQueries      bool          `mapstructure:"log_queries"`
	// Migrate creates missing tables on startup.
	Migrate bool `mapstructure:"migrate"`
}

type CacheConfig struct {
	Backend   string          `mapstructure:"backend"`
	Sturdyc   SturdycConfig   `mapstructure:"sturdyc"`
	Ristretto RistrettoConfig `mapstructure:"ristretto"`
	Redis     RedisConfig     `mapstructure:"redis"`
	// Fallback is used when the redis backend cannot be reached at startup.
	Fallback string `mapstructure:"fallback"`
}

type SturdycConfig struct {
	Capacity           int           `mapstructure:"capacity"`
	NumShards          int           `mapstructure:"num_shards"`
	TTL                time.Duration `mapstructure:"ttl"`
	EvictionPercentage int           `mapstructure:"eviction_percentage"`
	EvictionInterval   time.Duration `mapstructure:"eviction_interval"`
}

type RistrettoConfig struct {
	MaxCost     int64 `mapstructure:"max_cost"`
	NumCounters int64 `mapstructure:"num_counters"`
	BufferItems int64 `mapstructure:"buffer_items"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	ScanCount int64         `mapstructure:"scan_count"`
}

// Default returns the built-in settings: an on-disk sqlite database, the
// sturdyc cache and JSON logs on stdout.
func Default() Config {
	c := cache.DefaultConfig()
	return Config{
		Database: DatabaseConfig{
			Driver:       storage.DriverSQLite,
			DSN:          "file:blogstore.db?_fk=1",
			MaxOpenConns: 1,
			Migrate:      true,
		},
		Cache: CacheConfig{
			Backend: string(c.Backend),
			Sturdyc: SturdycConfig{
				Capacity:           c.Sturdyc.Capacity,
				NumShards:          c.Sturdyc.NumShards,
				TTL:                c.Sturdyc.TTL,
				EvictionPercentage: c.Sturdyc.EvictionPercentage,
				EvictionInterval:   c.Sturdyc.EvictionInterval,
			},
			Ristretto: RistrettoConfig{
				MaxCost:     c.Ristretto.MaxCost,
				NumCounters: c.Ristretto.NumCounters,
				BufferItems: c.Ristretto.BufferItems,
			},
			Redis: RedisConfig{
				Addr:      c.Redis.Addr,
				Username:  c.Redis.Username,
				Password:  c.Redis.Password,
				DB:        c.Redis.DB,
				Prefix:    c.Redis.Prefix,
				TTL:       c.Redis.TTL,
				ScanCount: c.Redis.ScanCount,
			},
			Fallback: string(cache.BackendSturdyc),
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads path (when not empty) over the defaults and applies environment
// overrides. A missing path is an error; a malformed file is an error.
func Load(path string) (Config, error) {
	vp := viper.New()
	setDefaults(vp, Default())

	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	if path != "" {
		vp.SetConfigFile(path)
		if err := vp.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the database and cache sections.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Database.Driver) {
	case storage.DriverSQLite, "sqlite3", storage.DriverPostgres, "postgresql", "pg":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn: must not be empty"))
	}
	if err := c.CacheConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}
	if c.Cache.Fallback != "" {
		fb := c.CacheConfig()
		fb.Backend = cache.Backend(c.Cache.Fallback)
		if err := fb.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("cache.fallback: %w", err))
		}
	}
	return errors.Join(errs...)
}

// StorageOptions converts the database section for storage.Open.
func (c Config) StorageOptions() storage.Options {
	return storage.Options{
		Driver:          c.Database.Driver,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		LogQueries:      c.Database.LogQueries,
	}
}

// CacheConfig converts the cache section for cache.NewPort.
func (c Config) CacheConfig() cache.Config {
	return cache.Config{
		Backend: cache.Backend(c.Cache.Backend),
		Sturdyc: cache.SturdycConfig{
			Capacity:           c.Cache.Sturdyc.Capacity,
			NumShards:          c.Cache.Sturdyc.NumShards,
			TTL:                c.Cache.Sturdyc.TTL,
			EvictionPercentage: c.Cache.Sturdyc.EvictionPercentage,
			EvictionInterval:   c.Cache.Sturdyc.EvictionInterval,
		},
		Ristretto: cache.RistrettoConfig{
			MaxCost:     c.Cache.Ristretto.MaxCost,
			NumCounters: c.Cache.Ristretto.NumCounters,
			BufferItems: c.Cache.Ristretto.BufferItems,
		},
		Redis: cache.RedisConfig{
			Addr:      c.Cache.Redis.Addr,
			Username:  c.Cache.Redis.Username,
			Password:  c.Cache.Redis.Password,
			DB:        c.Cache.Redis.DB,
			Prefix:    c.Cache.Redis.Prefix,
			TTL:       c.Cache.Redis.TTL,
			ScanCount: c.Cache.Redis.ScanCount,
		},
	}
}

// FallbackCacheConfig returns the cache settings with the fallback backend
// selected, or false when no fallback is configured.
func (c Config) FallbackCacheConfig() (cache.Config, bool) {
	if c.Cache.Fallback == "" || c.Cache.Fallback == c.Cache.Backend {
		return cache.Config{}, false
	}
	fb := c.CacheConfig()
	fb.Backend = cache.Backend(c.Cache.Fallback)
	return fb, true
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults(vp *viper.Viper, d Config) {
	defaults := map[string]any{
		"database.driver":            d.Database.Driver,
		"database.dsn":               d.Database.DSN,
		"database.max_open_conns":    d.Database.MaxOpenConns,
		"database.max_idle_conns":    d.Database.MaxIdleConns,
		"database.conn_max_lifetime": d.Database.ConnMaxLifetime,
		"database.log_queries":       d.Database.LogQueries,
		"database.migrate":           d.Database.Migrate,

		"cache.backend":                     d.Cache.Backend,
		"cache.fallback":                    d.Cache.Fallback,
		"cache.sturdyc.capacity":            d.Cache.Sturdyc.Capacity,
		"cache.sturdyc.num_shards":          d.Cache.Sturdyc.NumShards,
		"cache.sturdyc.ttl":                 d.Cache.Sturdyc.TTL,
		"cache.sturdyc.eviction_percentage": d.Cache.Sturdyc.EvictionPercentage,
		"cache.sturdyc.eviction_interval":   d.Cache.Sturdyc.EvictionInterval,
		"cache.ristretto.max_cost":          d.Cache.Ristretto.MaxCost,
		"cache.ristretto.num_counters":      d.Cache.Ristretto.NumCounters,
		"cache.ristretto.buffer_items":      d.Cache.Ristretto.BufferItems,
		"cache.redis.addr":                  d.Cache.Redis.Addr,
		"cache.redis.username":              d.Cache.Redis.Username,
		"cache.redis.password":              d.Cache.Redis.Password,
		"cache.redis.db":                    d.Cache.Redis.DB,
		"cache.redis.prefix":                d.Cache.Redis.Prefix,
		"cache.redis.ttl":                   d.Cache.Redis.TTL,
		"cache.redis.scan_count":            d.Cache.Redis.ScanCount,

		"logging.level":   d.Logging.Level,
		"logging.format":  d.Logging.Format,
		"logging.output":  d.Logging.Output,
		"logging.service": d.Logging.Service,
	}
	for key, value := range defaults {
		vp.SetDefault(key, value)
	}
}
