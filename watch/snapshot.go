package watch

import (
	"github.com/hedeqiang/tokenwatch/event"
	"github.com/hedeqiang/tokenwatch/state"
)

// Snapshot is an immutable view of the watch list taken at one instant.
type Snapshot struct {
	watches []state.Watch
}

// Len returns the number of entries.
func (s Snapshot) Len() int {
	return len(s.watches)
}

// MatchesInbound returns the entries watching the recipient addr.
func (s Snapshot) MatchesInbound(addr event.Address) []state.Watch {
	return s.match(addr)
}

// MatchesOutbound returns the entries watching the sender addr.
func (s Snapshot) MatchesOutbound(addr event.Address) []state.Watch {
	return s.match(addr)
}

func (s Snapshot) match(addr event.Address) []state.Watch {
	var out []state.Watch
	for _, w := range s.watches {
		if event.SameAddress(w.Address, addr) {
			out = append(out, w)
		}
	}
	return out
}
