package cacheinfra

import (
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc adapter.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL bounds how long an entry may live. Entries are invalidated
	// explicitly on writes, so the TTL only guards capacity.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                24 * time.Hour,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions converts the optional parts of Config to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}
	return nil
}

// RistrettoConfig configures the ristretto adapter.
type RistrettoConfig struct {
	// MaxCost is the total size in bytes of the cached snapshots.
	MaxCost int64
	// NumCounters is the number of keys tracked for admission. Zero derives
	// it from MaxCost.
	NumCounters int64
	// BufferItems is the number of keys per Get buffer. Default: 64
	BufferItems int64
}

// DefaultRistrettoConfig returns a 64MiB cache.
func DefaultRistrettoConfig() RistrettoConfig {
	return RistrettoConfig{
		MaxCost:     64 << 20,
		BufferItems: 64,
	}
}

// Validate checks if the configuration values are valid.
func (c RistrettoConfig) Validate() error {
	if c.MaxCost <= 0 {
		return &ConfigError{Field: "MaxCost", Message: "must be greater than 0"}
	}
	if c.NumCounters < 0 {
		return &ConfigError{Field: "NumCounters", Message: "must be non-negative"}
	}
	if c.BufferItems < 0 {
		return &ConfigError{Field: "BufferItems", Message: "must be non-negative"}
	}
	return nil
}

// RedisConfig configures the redis adapter.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	// Prefix is prepended to every key so several deployments can share a
	// redis database.
	Prefix string
	// TTL is applied to every entry. Zero stores entries without expiry.
	TTL time.Duration
	// ScanCount is the COUNT hint used while scanning a namespace.
	ScanCount int64
}

// DefaultRedisConfig returns the settings for a local redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		Prefix:    "blogstore:",
		ScanCount: 100,
	}
}

// Validate checks if the configuration values are valid.
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return &ConfigError{Field: "Addr", Message: "is required"}
	}
	if c.DB < 0 {
		return &ConfigError{Field: "DB", Message: "must be non-negative"}
	}
	if c.TTL < 0 {
		return &ConfigError{Field: "TTL", Message: "must be non-negative"}
	}
	if c.ScanCount < 0 {
		return &ConfigError{Field: "ScanCount", Message: "must be non-negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
