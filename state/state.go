// Package state holds the persisted aggregate: the watch list and the
// last handled block, written and read as one document.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrCorrupt is returned when a stored document exists but cannot be trusted.
var ErrCorrupt = errors.New("state: corrupt document")

// Watch is one subscriber's watched address, kept in checksummed form.
type Watch struct {
	SubscriberID int64  `json:"tg_id"`
	Address      string `json:"address"`
}

// State is the full persisted aggregate.
type State struct {
	Watches          []Watch
	LastHandledBlock uint64
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{LastHandledBlock: s.LastHandledBlock}
	out.Watches = make([]Watch, len(s.Watches))
	copy(out.Watches, s.Watches)
	return out
}

// Store loads and saves the aggregate.
type Store interface {
	// Load returns the stored state, or an empty state if nothing was saved yet.
	// A document that exists but is malformed yields an error wrapping ErrCorrupt.
	Load(ctx context.Context) (State, error)

	// Save replaces the stored state with s.
	Save(ctx context.Context, s State) error
}

type document struct {
	Monitor          []Watch         `json:"monitor"`
	LastHandledBlock *hexutil.Uint64 `json:"last_handled_block"`
}

// Encode serializes s in the on-disk format.
func Encode(s State) ([]byte, error) {
	watches := s.Watches
	if watches == nil {
		watches = []Watch{}
	}
	block := hexutil.Uint64(s.LastHandledBlock)
	return json.MarshalIndent(document{Monitor: watches, LastHandledBlock: &block}, "", "    ")
}

// Decode parses a document, normalizing addresses to checksummed form.
func Decode(data []byte) (State, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if doc.LastHandledBlock == nil {
		return State{}, fmt.Errorf("%w: missing last_handled_block", ErrCorrupt)
	}

	s := State{
		Watches:          make([]Watch, 0, len(doc.Monitor)),
		LastHandledBlock: uint64(*doc.LastHandledBlock),
	}
	seen := make(map[int64]struct{}, len(doc.Monitor))
	for i, w := range doc.Monitor {
		if !common.IsHexAddress(w.Address) {
			return State{}, fmt.Errorf("%w: monitor[%d]: bad address %q", ErrCorrupt, i, w.Address)
		}
		if _, dup := seen[w.SubscriberID]; dup {
			return State{}, fmt.Errorf("%w: monitor[%d]: duplicate subscriber %d", ErrCorrupt, i, w.SubscriberID)
		}
		seen[w.SubscriberID] = struct{}{}
		s.Watches = append(s.Watches, Watch{
			SubscriberID: w.SubscriberID,
			Address:      common.HexToAddress(w.Address).Hex(),
		})
	}
	return s, nil
}
