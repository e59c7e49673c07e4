package repositorycache

import (
	"context"
)

type bypassContextKey struct{}

// WithoutCache marks ctx so cached repositories neither read nor populate
// the cache. Writes still invalidate.
func WithoutCache(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bypassContextKey{}, true)
}

func bypassed(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(bypassContextKey{}).(bool)
	return v
}
