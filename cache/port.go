package cache

import (
	"context"
)

// Port is the cache backend used by cached repositories. Values are encoded
// snapshots; keys follow the namespace::op::digest layout produced by
// KeySerializer so a whole namespace can be dropped at once.
type Port interface {
	// Get returns the value stored under key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes a single key.
	Delete(ctx context.Context, key string) error
	// DeleteNamespace removes every key that belongs to namespace.
	DeleteNamespace(ctx context.Context, namespace string) error
}

// KeySerializer builds cache keys from a namespace, an operation name and the
// operation arguments.
type KeySerializer interface {
	SerializeKey(namespace, op string, args ...any) string
}

// Interface assertion to ensure NopPort implements Port
var _ Port = NopPort{}

// NopPort never stores anything. Every read is a miss.
type NopPort struct{}

func (NopPort) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NopPort) Set(context.Context, string, []byte) error         { return nil }
func (NopPort) Delete(context.Context, string) error              { return nil }
func (NopPort) DeleteNamespace(context.Context, string) error     { return nil }
