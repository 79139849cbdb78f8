package tdclient

import (
	"context"
	"sync"
)

// StateKind enumerates session states.
type StateKind uint8

const (
	// StateOpened means the handshake completed and the session is usable.
	StateOpened StateKind = iota + 1
	// StateClosed means the engine shut the session down.
	StateClosed
	// StateError means the handshake or a pump failed.
	StateError
)

func (k StateKind) String() string {
	switch k {
	case StateOpened:
		return "opened"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	}
	return "unknown"
}

// SessionState is a session (or worker) state. Err is set only for
// StateError.
type SessionState struct {
	Kind StateKind
	Err  error
}

// Opened returns the state of a session that completed its handshake.
func Opened() SessionState { return SessionState{Kind: StateOpened} }

// Closed returns the state of a session the engine shut down.
func Closed() SessionState { return SessionState{Kind: StateClosed} }

// Failed returns an Error state carrying err.
func Failed(err error) SessionState { return SessionState{Kind: StateError, Err: err} }

// Terminal reports whether the state can never be left.
func (s SessionState) Terminal() bool { return s.Kind == StateClosed || s.Kind == StateError }

func (s SessionState) String() string {
	if s.Kind == StateError && s.Err != nil {
		return "error: " + s.Err.Error()
	}
	return s.Kind.String()
}

// Outcome resolves exactly once with a terminal state.
type Outcome struct {
	done  chan struct{}
	once  sync.Once
	state SessionState
}

func newOutcome() *Outcome {
	return &Outcome{done: make(chan struct{})}
}

func resolvedOutcome(st SessionState) *Outcome {
	o := newOutcome()
	o.resolve(st)
	return o
}

func (o *Outcome) resolve(st SessionState) bool {
	resolved := false
	o.once.Do(func() {
		o.state = st
		close(o.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the outcome resolves.
func (o *Outcome) Done() <-chan struct{} { return o.done }

// State returns the resolved state, if any.
func (o *Outcome) State() (SessionState, bool) {
	select {
	case <-o.done:
		return o.state, true
	default:
		return SessionState{}, false
	}
}

// Wait blocks until the outcome resolves or ctx ends.
func (o *Outcome) Wait(ctx context.Context) (SessionState, error) {
	select {
	case <-o.done:
		return o.state, nil
	case <-ctx.Done():
		return SessionState{}, ctx.Err()
	}
}
