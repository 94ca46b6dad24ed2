// Package syncutil provides concurrency utilities.
package syncutil

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Group manages a set of long-running services that are started and stopped
// together. The first service to return an error cancels the others.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group
}

// NewGroup creates a new Group derived from the given context.
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{
		ctx:    ctx,
		cancel: cancel,
		eg:     eg,
	}
}

// Go launches a service within the group.
// The function receives the group context and should return when the context is cancelled.
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		return fn(g.ctx)
	})
}

// Wait blocks until every service has returned and reports the first error.
func (g *Group) Wait() error {
	defer g.cancel()
	return g.eg.Wait()
}
