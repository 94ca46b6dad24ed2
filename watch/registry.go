// Package watch owns the watch list and the block cursor. Both live in one
// state.State guarded by one mutex and are persisted together.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hedeqiang/tokenwatch/event"
	"github.com/hedeqiang/tokenwatch/metrics"
	"github.com/hedeqiang/tokenwatch/state"
)

var (
	// ErrInvalidAddress is returned by Upsert for text that is not an account address.
	ErrInvalidAddress = event.ErrInvalidAddress

	// ErrCursorRegress is returned by Advance for a height below the cursor.
	ErrCursorRegress = errors.New("watch: cursor cannot move backwards")
)

// Registry is the concurrency-safe owner of the persisted aggregate.
type Registry struct {
	mu    sync.Mutex
	store state.Store
	state state.State
}

// Open loads the aggregate from store.
func Open(ctx context.Context, store state.Store) (*Registry, error) {
	s, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch: load: %w", err)
	}
	if s.Watches == nil {
		s.Watches = []state.Watch{}
	}
	metrics.RegistryWatches.Set(float64(len(s.Watches)))
	metrics.PollerCursorHeight.Set(float64(s.LastHandledBlock))
	return &Registry{store: store, state: s}, nil
}

// Upsert sets the watched address for subscriberID, replacing any previous
// one, and persists the aggregate. If persisting fails the change is undone.
func (r *Registry) Upsert(ctx context.Context, subscriberID int64, text string) (event.Address, error) {
	addr, err := event.ParseAddress(text)
	if err != nil {
		return event.Address{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.state.Watches
	next := make([]state.Watch, len(prev), len(prev)+1)
	copy(next, prev)

	entry := state.Watch{SubscriberID: subscriberID, Address: addr.Hex()}
	replaced := false
	for i := range next {
		if next[i].SubscriberID == subscriberID {
			next[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, entry)
	}

	r.state.Watches = next
	if err := r.store.Save(ctx, r.state); err != nil {
		r.state.Watches = prev
		return event.Address{}, fmt.Errorf("watch: save: %w", err)
	}

	metrics.RegistryWatches.Set(float64(len(next)))
	return addr, nil
}

// Lookup returns the entry for subscriberID.
func (r *Registry) Lookup(subscriberID int64) (state.Watch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.state.Watches {
		if w.SubscriberID == subscriberID {
			return w, true
		}
	}
	return state.Watch{}, false
}

// Watches returns a copy of every entry in registration order.
func (r *Registry) Watches() []state.Watch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]state.Watch, len(r.state.Watches))
	copy(out, r.state.Watches)
	return out
}

// Cursor returns the last fully handled block.
func (r *Registry) Cursor() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.LastHandledBlock
}

// Advance moves the cursor to height and persists the aggregate.
// Advancing to the current height is a no-op.
func (r *Registry) Advance(ctx context.Context, height uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state.LastHandledBlock
	if height < cur {
		return fmt.Errorf("%w: %d < %d", ErrCursorRegress, height, cur)
	}
	if height == cur {
		return nil
	}

	r.state.LastHandledBlock = height
	if err := r.store.Save(ctx, r.state); err != nil {
		r.state.LastHandledBlock = cur
		return fmt.Errorf("watch: save: %w", err)
	}

	metrics.PollerCursorHeight.Set(float64(height))
	return nil
}

// Snapshot returns a consistent copy of the watch list.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{watches: r.Watches()}
}

// MatchesInbound returns the entries watching the recipient addr.
func (r *Registry) MatchesInbound(addr event.Address) []state.Watch {
	return r.Snapshot().MatchesInbound(addr)
}

// MatchesOutbound returns the entries watching the sender addr.
func (r *Registry) MatchesOutbound(addr event.Address) []state.Watch {
	return r.Snapshot().MatchesOutbound(addr)
}
