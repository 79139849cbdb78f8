package tdclient

import (
	"fmt"
	"sync"
)

type registryEntry struct {
	session *Session
	// states is written by the auth pump only.
	states chan SessionState
}

// sessionRegistry maps session ids to live sessions. Lookups hand out the
// entry pointer so callers never hold the lock across a channel send.
type sessionRegistry struct {
	mu      sync.RWMutex
	entries map[SessionID]*registryEntry
	shut    bool
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{entries: make(map[SessionID]*registryEntry)}
}

func (r *sessionRegistry) insert(id SessionID, e *registryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shut {
		return ErrWorkerStopped
	}
	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("insert session %d: %w", id, ErrSessionExists)
	}
	r.entries[id] = e
	return nil
}

func (r *sessionRegistry) lookup(id SessionID) (*registryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *sessionRegistry) remove(id SessionID) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

func (r *sessionRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// close closes every state channel and rejects further inserts. It must only
// be called once the auth pump, the sole writer, has exited.
func (r *sessionRegistry) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shut {
		return
	}
	r.shut = true
	for id, e := range r.entries {
		close(e.states)
		delete(r.entries, id)
	}
}
