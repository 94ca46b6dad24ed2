// Package middleware provides interceptors around notification delivery.
package middleware

import (
	"context"

	"github.com/hedeqiang/tokenwatch/notify"
)

// Handler delivers one notification.
type Handler func(ctx context.Context, n notify.Notification) error

// Middleware wraps a Handler, adding cross-cutting behavior (logging, metrics, etc.).
type Middleware interface {
	// Wrap returns a new Handler that decorates the given inner handler.
	Wrap(next Handler) Handler
}

// Chain composes multiple middlewares into a single Handler, applying them
// in the order provided (first middleware is outermost).
func Chain(handler Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i].Wrap(handler)
	}
	return handler
}

// Sink wraps a notify.Sink with mws and returns the result as a Sink.
func Sink(sink notify.Sink, mws ...Middleware) notify.Sink {
	return notify.Func(Chain(sink.Send, mws...))
}
