// Package memengine provides an in-process implementation of engine.Engine.
// Events are injected with Emit and requests are observed with NextRequest, so
// a test can play the part of the real engine. A Responder may be installed to
// answer requests automatically.
package memengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/tdclient-go/engine"
	"github.com/ggoodman/tdclient-go/tdjson"
)

const defaultEventBuffer = 1024

// ErrEventBufferFull is returned by TryEmit when the event queue is full.
var ErrEventBufferFull = errors.New("memengine: event buffer full")

// Request is one request observed by the engine.
type Request struct {
	SessionID tdjson.SessionID
	Type      string
	Extra     string
	Raw       []byte
}

// Responder is invoked synchronously from Send for every accepted request.
type Responder func(e *Engine, req Request)

// Option configures an Engine.
type Option func(*Engine)

// WithResponder installs a Responder.
func WithResponder(r Responder) Option {
	return func(e *Engine) { e.respond = r }
}

// WithEventBuffer sets the capacity of the pending event queue.
func WithEventBuffer(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.eventBuffer = n
		}
	}
}

// Engine implements engine.Engine in memory.
type Engine struct {
	nextID      atomic.Int32
	eventBuffer int
	events      chan []byte
	respond     Responder

	mu      sync.Mutex
	pending []Request // not yet taken by NextRequest
	history []Request
	signal  chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

var _ engine.Engine = (*Engine)(nil)

// New constructs an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		eventBuffer: defaultEventBuffer,
		signal:      make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.events = make(chan []byte, e.eventBuffer)
	return e
}

func (e *Engine) closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *Engine) NewSession() (tdjson.SessionID, error) {
	if e.closed() {
		return 0, engine.ErrClosed
	}
	return tdjson.SessionID(e.nextID.Add(1)), nil
}

func (e *Engine) Send(id tdjson.SessionID, request []byte) error {
	if e.closed() {
		return engine.ErrClosed
	}
	h, err := tdjson.ReadHeader(request)
	if err != nil {
		return fmt.Errorf("memengine: %w", err)
	}
	req := Request{SessionID: id, Type: h.Type, Extra: h.Extra, Raw: append([]byte(nil), request...)}

	e.mu.Lock()
	e.pending = append(e.pending, req)
	e.history = append(e.history, req)
	e.mu.Unlock()
	select {
	case e.signal <- struct{}{}:
	default:
	}

	if e.respond != nil {
		e.respond(e, req)
	}
	return nil
}

func (e *Engine) Receive(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case raw := <-e.events:
		return raw, nil
	case <-timer.C:
		return nil, nil
	case <-e.done:
		return nil, engine.ErrClosed
	}
}

// Emit queues a raw event for Receive, blocking while the queue is full.
func (e *Engine) Emit(ctx context.Context, raw []byte) error {
	select {
	case e.events <- raw:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return engine.ErrClosed
	}
}

// TryEmit queues a raw event without blocking.
func (e *Engine) TryEmit(raw []byte) error {
	select {
	case e.events <- raw:
		return nil
	default:
		return ErrEventBufferFull
	}
}

// NextRequest returns the oldest request not yet returned by NextRequest.
func (e *Engine) NextRequest(ctx context.Context) (tdjson.SessionID, []byte, error) {
	for {
		e.mu.Lock()
		if len(e.pending) > 0 {
			req := e.pending[0]
			e.pending = e.pending[1:]
			e.mu.Unlock()
			return req.SessionID, req.Raw, nil
		}
		e.mu.Unlock()

		select {
		case <-e.signal:
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		}
	}
}

// Requests returns every request sent so far, in order.
func (e *Engine) Requests() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Request(nil), e.history...)
}

// Close stops the engine; Receive and Send report engine.ErrClosed afterwards.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() { close(e.done) })
	return nil
}
