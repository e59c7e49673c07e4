package cache

import (
	"context"

	"github.com/rs/zerolog"
)

// Failure stages reported to an Observer.
const (
	StageGet        = "get"
	StageSet        = "set"
	StageEncode     = "encode"
	StageDecode     = "decode"
	StageInvalidate = "invalidate"
)

// Event describes a cache failure that was absorbed by a caller.
type Event struct {
	Stage     string
	Namespace string
	Key       string
	Err       error
}

// Observer is notified whenever a cache failure is degraded to a
// pass-through.
type Observer interface {
	CacheFailure(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// CacheFailure implements Observer.
func (f ObserverFunc) CacheFailure(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// NopObserver discards every event.
func NopObserver() Observer {
	return ObserverFunc(func(context.Context, Event) {})
}

// LogObserver logs events at warn level.
func LogObserver(logger zerolog.Logger) Observer {
	return ObserverFunc(func(ctx context.Context, ev Event) {
		logger.Warn().
			Err(ev.Err).
			Str("stage", ev.Stage).
			Str("namespace", ev.Namespace).
			Str("key", ev.Key).
			Msg("cache degraded to pass-through")
	})
}
