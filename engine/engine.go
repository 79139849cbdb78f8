// Package engine defines the contract between the runtime and the external
// messaging engine.
//
// An engine is single-threaded from the runtime's point of view: one goroutine
// calls Receive in a loop while any goroutine may call Send or NewSession.
// Implementations
//
//	memengine   : in-process, scriptable engine for tests and local demos
//	redisengine : bridge to an engine process reachable through Redis lists
//
// Every implementation is expected to pass enginetest.RunEngineTests.
package engine

import (
	"errors"
	"time"

	"github.com/ggoodman/tdclient-go/tdjson"
)

// ErrClosed is returned by engines that have been shut down.
var ErrClosed = errors.New("engine closed")

// Engine is the external event source and request sink.
type Engine interface {
	// NewSession allocates a fresh session id. The engine starts emitting
	// events for it once the first request addressed to it arrives.
	NewSession() (tdjson.SessionID, error)
	// Send queues one encoded request for the session.
	Send(id tdjson.SessionID, request []byte) error
	// Receive blocks for at most timeout and returns the next raw event, or
	// nil with a nil error when the timeout elapsed first.
	Receive(timeout time.Duration) ([]byte, error)
}
