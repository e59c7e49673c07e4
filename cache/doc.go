// Package cache defines the cache port used by cached repositories, the key
// layout shared by every backend, and the snapshot codec.
//
// # Overview
//
// The package exports the following contracts and their default implementations:
//
//   - Port: byte oriented Get/Set/Delete plus DeleteNamespace
//   - KeySerializer: builds namespace::op::digest keys from operation arguments
//   - Codec: encodes cached snapshots (msgpack by default)
//   - Observer: receives cache failures that were degraded to a pass-through
//
// # Key Layout
//
// Every key starts with the namespace of the entity type followed by the
// operation name:
//
//	posts::find_all
//	posts::find_one::8f1c2d9e0a7b6c54
//	comments::find_some::1b2c3d4e5f607182
//
// The digest is the xxhash64 of a deterministic rendering of the arguments.
// Maps are rendered with sorted keys, pointers are dereferenced and values
// implementing encoding.TextMarshaler (time.Time) use their text form, so
// equal predicates always share a key.
//
// Because every key of a namespace shares the "namespace::" prefix, a write
// can drop all cached reads of its entity type with DeleteNamespace.
//
// # Backends
//
// NewPort selects an implementation from Config.Backend:
//
//	port, err := cache.NewPort(ctx, cache.DefaultConfig())
//
//   - sturdyc (default): in-process sharded cache
//   - ristretto: in-process cache bounded by total snapshot size
//   - redis: shared cache; namespaces are dropped with SCAN and DEL
//   - none: every read misses
//
// # Error Handling
//
// Ports report backend failures as plain errors. Callers are expected to
// report them to an Observer and carry on against the store; a cache outage
// never fails a repository call.
package cache
