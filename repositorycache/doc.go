// Package repositorycache provides a cached decorator for repository.Repository.
//
// # Overview
//
// CachedRepository wraps a base repository and a cache.Port. Reads are served
// cache-aside; writes go to the base repository first and, once they succeed,
// drop every cached entry of the entity type.
//
// # Basic Usage
//
//	base := repository.NewBun(tx, model.PostSchema, repository.WithClassifier(storage.Classify))
//	posts := repositorycache.New[model.Post](base, port, cache.NewDefaultKeySerializer(),
//		repositorycache.WithObserver(cache.LogObserver(logger)),
//	)
//
//	post, err := posts.FindOne(ctx, repository.Predicate{"id": id})
//
// Most callers never build a CachedRepository directly; the unitofwork
// package binds one per entity type to each scope.
//
// # Cached vs Pass-through Operations
//
// Cached (read-only):
//   - FindOne (absence is cached as well)
//   - FindAll, FindSome
//
// Pass-through followed by namespace invalidation:
//   - AddOne, Update, Delete
//
// # Caching Behavior
//
//  1. Build the key namespace::op::digest from the predicate
//  2. On a hit, decode the snapshot and return it
//  3. On a miss, call the base repository
//  4. Encode the result and store it
//  5. Return the result
//
// Snapshots are msgpack encoded, so decoded time values carry the local zone.
// Compare them with time.Equal.
//
// # Scope Isolation
//
// Repositories of one unit of work share a WriteSet. Once a namespace was
// written in the scope, further reads of it go straight to the base
// repository: they may observe uncommitted rows, which must never reach the
// shared cache. WithoutCache forces the same path for a single call.
//
// # Error Handling
//
// Errors from the base repository are propagated unchanged and never cached.
// Cache failures (backend errors, codec errors) are reported to the
// configured cache.Observer and counted in Metrics; the call then continues
// as if no cache were configured.
package repositorycache
