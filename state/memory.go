package state

import (
	"context"
	"sync"
)

// Memory is an in-memory Store.
// Suitable for development and testing; data is lost on restart.
type Memory struct {
	mu    sync.RWMutex
	state State
	saves int
}

// NewMemory creates a new in-memory store holding initial.
func NewMemory(initial State) *Memory {
	return &Memory{state: initial.Clone()}
}

// Load returns a copy of the held state.
func (m *Memory) Load(_ context.Context) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone(), nil
}

// Save replaces the held state.
func (m *Memory) Save(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s.Clone()
	m.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
