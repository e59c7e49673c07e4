package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-blogstore/internal/cacheinfra"
)

// Backend names a cache implementation.
type Backend string

const (
	BackendSturdyc   Backend = "sturdyc"
	BackendRistretto Backend = "ristretto"
	BackendRedis     Backend = "redis"
	BackendNone      Backend = "none"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend   Backend
	Sturdyc   SturdycConfig
	Ristretto RistrettoConfig
	Redis     RedisConfig
}

// SturdycConfig mirrors the sturdyc adapter options.
type SturdycConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// RistrettoConfig mirrors the ristretto adapter options.
type RistrettoConfig struct {
	MaxCost     int64
	NumCounters int64
	BufferItems int64
}

// RedisConfig mirrors the redis adapter options.
type RedisConfig struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	Prefix    string
	TTL       time.Duration
	ScanCount int64
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	sturdy := cacheinfra.DefaultConfig()
	risty := cacheinfra.DefaultRistrettoConfig()
	rds := cacheinfra.DefaultRedisConfig()

	return Config{
		Backend: BackendSturdyc,
		Sturdyc: SturdycConfig{
			Capacity:           sturdy.Capacity,
			NumShards:          sturdy.NumShards,
			TTL:                sturdy.TTL,
			EvictionPercentage: sturdy.EvictionPercentage,
			EvictionInterval:   sturdy.EvictionInterval,
		},
		Ristretto: RistrettoConfig{
			MaxCost:     risty.MaxCost,
			NumCounters: risty.NumCounters,
			BufferItems: risty.BufferItems,
		},
		Redis: RedisConfig{
			Addr:      rds.Addr,
			Username:  rds.Username,
			Password:  rds.Password,
			DB:        rds.DB,
			Prefix:    rds.Prefix,
			TTL:       rds.TTL,
			ScanCount: rds.ScanCount,
		},
	}
}

// Validate checks the settings of the selected backend.
func (c Config) Validate() error {
	switch c.backend() {
	case BackendSturdyc:
		return c.sturdycConfig().Validate()
	case BackendRistretto:
		return c.ristrettoConfig().Validate()
	case BackendRedis:
		return c.redisConfig().Validate()
	case BackendNone:
		return nil
	default:
		return &cacheinfra.ConfigError{Field: "Backend", Message: fmt.Sprintf("unknown backend %q", c.Backend)}
	}
}

// NewPort builds the configured backend. The redis backend pings the server
// and fails when it cannot be reached. Ports that hold resources implement
// io.Closer.
func NewPort(ctx context.Context, cfg Config) (Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.backend() {
	case BackendRistretto:
		return cacheinfra.NewRistrettoPort(cfg.ristrettoConfig())
	case BackendRedis:
		return cacheinfra.NewRedisPort(ctx, cfg.redisConfig())
	case BackendNone:
		return NopPort{}, nil
	default:
		return cacheinfra.NewSturdycPort(cfg.sturdycConfig())
	}
}

func (c Config) backend() Backend {
	b := Backend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	if b == "" {
		return BackendSturdyc
	}
	return b
}

func (c Config) sturdycConfig() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Sturdyc.Capacity,
		NumShards:          c.Sturdyc.NumShards,
		TTL:                c.Sturdyc.TTL,
		EvictionPercentage: c.Sturdyc.EvictionPercentage,
		EvictionInterval:   c.Sturdyc.EvictionInterval,
	}
}

func (c Config) ristrettoConfig() cacheinfra.RistrettoConfig {
	return cacheinfra.RistrettoConfig{
		MaxCost:     c.Ristretto.MaxCost,
		NumCounters: c.Ristretto.NumCounters,
		BufferItems: c.Ristretto.BufferItems,
	}
}

func (c Config) redisConfig() cacheinfra.RedisConfig {
	return cacheinfra.RedisConfig{
		Addr:      c.Redis.Addr,
		Username:  c.Redis.Username,
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		Prefix:    c.Redis.Prefix,
		TTL:       c.Redis.TTL,
		ScanCount: c.Redis.ScanCount,
	}
}
