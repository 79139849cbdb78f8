package tdclient

import "errors"

var (
	ErrSessionAlreadyBound = errors.New("session already bound to an id")
	ErrSessionNotBound     = errors.New("session not registered")
	ErrSessionExists       = errors.New("session id already registered")
	ErrWorkerStopped       = errors.New("worker stopped")
	ErrAlreadyStarted      = errors.New("worker already started")

	// ErrDecode wraps engine output that could not be parsed. The event stream
	// is assumed corrupt afterwards, so it ends the worker's run.
	ErrDecode = errors.New("malformed engine event")
	// ErrSendTimeout is returned when a bounded channel stayed full for the
	// whole send timeout.
	ErrSendTimeout = errors.New("channel send timed out")
	// ErrUnexpectedAuthState is returned for authorization states that need a
	// value no handler can provide.
	ErrUnexpectedAuthState = errors.New("unexpected authorization state")

	ErrOpenedAgain        = errors.New("received Opened state again")
	ErrStateChannelClosed = errors.New("auth state channel closed")
)
