package state

import (
	"context"
	"sync"
)

// Store persists conversation state per session. Get returns (nil, nil) for
// an unknown session. Implementations must provide read-your-writes
// consistency for a single session between consecutive calls; cross-session
// contention is the store's concern, not the orchestrator's.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Conversation, error)
	Set(ctx context.Context, sessionID string, conv *Conversation) error
}

// MemoryStore is a mutex-guarded in-process store for single-process use
// and tests. It clones on both reads and writes so callers never share
// memory with stored state.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*Conversation)}
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	m.mu.RLock()
	conv, ok := m.states[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return conv.Clone(), nil
}

func (m *MemoryStore) Set(ctx context.Context, sessionID string, conv *Conversation) error {
	m.mu.Lock()
	m.states[sessionID] = conv.Clone()
	m.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
