// Package correlation matches engine replies to the callers waiting for them.
//
// A caller registers a token before sending a request tagged with it; the
// event pump offers every decoded event to Route, which hands tagged replies
// to their waiter and returns everything else for normal dispatch.
package correlation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/tdclient-go/tdjson"
)

var (
	// ErrClosed indicates the registry is closed.
	ErrClosed = errors.New("correlation registry closed")
	// ErrTokenExists indicates a waiter is already registered for the token.
	ErrTokenExists = errors.New("correlation token already registered")
)

type pendingCall struct {
	respCh chan tdjson.Event
	errCh  chan error
}

// Registry maps correlation tokens to single waiters. It is safe for
// concurrent use; each instance is independent.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*pendingCall

	closed   atomic.Bool
	closeErr error
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{pending: make(map[string]*pendingCall)}
}

// Pending is the receiving end of one registration.
type Pending struct {
	r     *Registry
	token string
	pc    *pendingCall
}

// Register reserves token. The request carrying it must be sent only after
// Register returns so the reply cannot race ahead of the waiter.
func (r *Registry) Register(token string) (*Pending, error) {
	pc := &pendingCall{respCh: make(chan tdjson.Event, 1), errCh: make(chan error, 1)}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return nil, r.err()
	}
	if _, exists := r.pending[token]; exists {
		return nil, ErrTokenExists
	}
	r.pending[token] = pc
	return &Pending{r: r, token: token, pc: pc}, nil
}

// Resolve delivers ev to the waiter for token. It reports whether a waiter
// was registered; a token resolves at most once.
func (r *Registry) Resolve(token string, ev tdjson.Event) bool {
	r.mu.Lock()
	pc, ok := r.pending[token]
	if ok {
		delete(r.pending, token)
	}
	r.mu.Unlock()
	if ok {
		pc.respCh <- ev
	}
	return ok
}

// Route offers ev to the registry. It returns ev and true when no waiter
// consumed it.
func (r *Registry) Route(ev tdjson.Event) (tdjson.Event, bool) {
	if ev == nil {
		return nil, false
	}
	token := ev.Extra()
	if token == "" {
		return ev, true
	}
	if r.Resolve(token, ev) {
		return nil, false
	}
	return ev, true
}

// Cancel drops the waiter for token, if any.
func (r *Registry) Cancel(token string) {
	r.mu.Lock()
	delete(r.pending, token)
	r.mu.Unlock()
}

// Len reports the number of outstanding waiters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close fails all pending waiters with err and rejects new registrations.
func (r *Registry) Close(err error) {
	if err == nil {
		err = ErrClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.closeErr = err
	for token, pc := range r.pending {
		delete(r.pending, token)
		pc.errCh <- err
	}
}

func (r *Registry) err() error {
	if r.closeErr != nil {
		return r.closeErr
	}
	return ErrClosed
}

// Token returns the registered token.
func (p *Pending) Token() string { return p.token }

// Wait blocks until the reply arrives, the registry closes or ctx ends. On
// context cancellation the registration is dropped.
func (p *Pending) Wait(ctx context.Context) (tdjson.Event, error) {
	select {
	case ev := <-p.pc.respCh:
		return ev, nil
	case err := <-p.pc.errCh:
		return nil, err
	case <-ctx.Done():
		p.r.Cancel(p.token)
		return nil, ctx.Err()
	}
}
