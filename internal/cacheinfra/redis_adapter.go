package cacheinfra

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisPort stores encoded snapshots in redis under a configurable prefix.
type RedisPort struct {
	client    redis.UniversalClient
	cfg       RedisConfig
	ownClient bool
}

// NewRedisClient builds a client from cfg and pings it.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// NewRedisPort connects to the configured server. The port owns the client
// and closes it on Close.
func NewRedisPort(ctx context.Context, cfg RedisConfig) (*RedisPort, error) {
	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	port := NewRedisPortWithClient(client, cfg)
	port.ownClient = true
	return port, nil
}

// NewRedisPortWithClient wraps an existing client.
func NewRedisPortWithClient(client redis.UniversalClient, cfg RedisConfig) *RedisPort {
	if cfg.ScanCount == 0 {
		cfg.ScanCount = 100
	}
	return &RedisPort{client: client, cfg: cfg}
}

// Get returns the snapshot stored under key.
func (r *RedisPort) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.cfg.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key.
func (r *RedisPort) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.cfg.Prefix+key, value, r.cfg.TTL).Err()
}

// Delete removes a single entry.
func (r *RedisPort) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.cfg.Prefix+key).Err()
}

// DeleteNamespace scans the namespace with SCAN and deletes what it finds in
// batches. KEYS is never used.
func (r *RedisPort) DeleteNamespace(ctx context.Context, namespace string) error {
	pattern := escapeGlob(r.cfg.Prefix+NamespacePrefix(namespace)) + "*"
	iter := r.client.Scan(ctx, 0, pattern, r.cfg.ScanCount).Iterator()

	batch := make([]string, 0, r.cfg.ScanCount)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= r.cfg.ScanCount {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}

// Close closes the client when the port created it.
func (r *RedisPort) Close() error {
	if !r.ownClient {
		return nil
	}
	return r.client.Close()
}

var globReplacer = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
