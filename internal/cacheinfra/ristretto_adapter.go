package cacheinfra

import (
	"context"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

// RistrettoPort stores encoded snapshots in a ristretto cache bounded by
// their byte size. Ristretto cannot enumerate its keys, so the adapter keeps
// a registry of stored keys to serve DeleteNamespace.
type RistrettoPort struct {
	cache *ristretto.Cache[string, []byte]
	keys  *xsync.MapOf[string, struct{}]
	// sets hold the read side while touching the registry and the cache;
	// namespace deletion holds the write side so a concurrent Set cannot
	// land in the cache after its key was dropped from the registry.
	mu sync.RWMutex
}

// NewRistrettoPort validates cfg and builds the cache.
func NewRistrettoPort(cfg RistrettoConfig) (*RistrettoPort, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	counters := cfg.NumCounters
	if counters == 0 {
		counters = cfg.MaxCost / 100 * 10
	}
	if counters < 1000 {
		counters = 1000
	}
	buffer := cfg.BufferItems
	if buffer == 0 {
		buffer = 64
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        counters,
		MaxCost:            cfg.MaxCost,
		BufferItems:        buffer,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoPort{cache: c, keys: xsync.NewMapOf[string, struct{}]()}, nil
}

// Get returns the snapshot stored under key.
func (r *RistrettoPort) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := r.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value under key and waits until it is visible to Get.
// Ristretto may refuse an admission; that is a miss on the next read.
func (r *RistrettoPort) Set(_ context.Context, key string, value []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.keys.Store(key, struct{}{})
	r.cache.Set(key, value, int64(len(value)))
	r.cache.Wait()
	return nil
}

// Delete removes a single entry.
func (r *RistrettoPort) Delete(_ context.Context, key string) error {
	r.keys.Delete(key)
	r.cache.Del(key)
	return nil
}

// DeleteNamespace removes every registered key of namespace.
func (r *RistrettoPort) DeleteNamespace(_ context.Context, namespace string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.keys.Range(func(key string, _ struct{}) bool {
		if inNamespace(key, namespace) {
			r.keys.Delete(key)
			r.cache.Del(key)
		}
		return true
	})
	return nil
}

// Close stops the ristretto goroutines.
func (r *RistrettoPort) Close() error {
	r.cache.Close()
	return nil
}
