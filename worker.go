package tdclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ggoodman/tdclient-go/authconsole"
	"github.com/ggoodman/tdclient-go/engine"
	"github.com/ggoodman/tdclient-go/internal/correlation"
	"github.com/ggoodman/tdclient-go/internal/logctx"
	"github.com/ggoodman/tdclient-go/tdjson"
)

// Worker owns one engine connection and the sessions multiplexed over it.
type Worker struct {
	engine engine.Engine
	auth   AuthHandler
	log    *slog.Logger
	cfg    Config

	sessions *sessionRegistry
	corr     *correlation.Registry

	started atomic.Bool
	stopped atomic.Bool
}

// New constructs a Worker around eng. The worker does nothing until Start.
func New(eng engine.Engine, opts ...Option) *Worker {
	w := &Worker{
		engine:   eng,
		cfg:      DefaultConfig(),
		sessions: newSessionRegistry(),
		corr:     correlation.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.auth == nil {
		w.auth = authconsole.New()
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	w.log = slog.New(logctx.Handler{Handler: w.log.Handler()})
	return w
}

// Start launches the event and auth pumps. The returned Outcome resolves when
// the first pump finishes: Closed after a clean stop, Error otherwise. Once
// resolved, outstanding calls fail with ErrWorkerStopped. Cancelling ctx stops
// the worker.
func (w *Worker) Start(ctx context.Context) *Outcome {
	if !w.started.CompareAndSwap(false, true) {
		return resolvedOutcome(Failed(ErrAlreadyStarted))
	}

	authCh := make(chan *tdjson.UpdateAuthorizationState, w.cfg.AuthBuffer)
	eventsDone := make(chan error, 1)
	authDone := make(chan error, 1)

	go func() { eventsDone <- w.runEvents(ctx, authCh) }()
	go func() { authDone <- w.runAuth(ctx, authCh) }()

	out := newOutcome()
	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-out.Done():
		}
	}()
	go func() {
		var (
			pump string
			err  error
		)
		select {
		case err = <-eventsDone:
			pump = "events"
		case err = <-authDone:
			pump = "auth"
		}
		w.stopped.Store(true)
		w.corr.Close(ErrWorkerStopped)

		if err != nil {
			w.log.ErrorContext(ctx, "worker.stopped.err", slog.String("pump", pump), slog.String("err", err.Error()))
			out.resolve(Failed(err))
			return
		}
		w.log.InfoContext(ctx, "worker.stopped.ok", slog.String("pump", pump))
		out.resolve(Closed())
	}()

	w.log.InfoContext(ctx, "worker.started",
		slog.Duration("receive_timeout", w.cfg.ReceiveTimeout),
		slog.Duration("send_timeout", w.cfg.SendTimeout),
	)
	return out
}

// Stop asks both pumps to exit. The event pump observes it within one receive
// timeout. Stop does not wait.
func (w *Worker) Stop() {
	w.stopped.Store(true)
}

// NewSession constructs an unbound session whose update buffer follows the
// worker's Config. Later options win.
func (w *Worker) NewSession(params tdjson.TdlibParameters, opts ...SessionOption) *Session {
	return NewSession(params, append([]SessionOption{WithUpdatesBuffer(w.cfg.UpdatesBuffer)}, opts...)...)
}

// Session returns the live session registered under id.
func (w *Worker) Session(id SessionID) (*Session, bool) {
	e, ok := w.sessions.lookup(id)
	if !ok {
		return nil, false
	}
	return e.session, true
}

// RegisterSession binds s to a fresh engine id and waits for its handshake.
//
// It returns once the session's first state arrives: Opened yields an Outcome
// that resolves when the session later closes or fails; Closed yields an
// already-resolved Outcome; Error is returned as err. The returned *Session is
// s, now bound.
func (w *Worker) RegisterSession(ctx context.Context, s *Session) (*Outcome, *Session, error) {
	if s == nil {
		return nil, nil, errors.New("register session: nil session")
	}
	if w.stopped.Load() {
		return nil, nil, ErrWorkerStopped
	}
	if _, bound := s.ID(); bound {
		return nil, nil, ErrSessionAlreadyBound
	}

	id, err := w.engine.NewSession()
	if err != nil {
		return nil, nil, fmt.Errorf("create engine session: %w", err)
	}
	if err := s.bind(id, w.engine, w.corr); err != nil {
		return nil, nil, err
	}
	states := make(chan SessionState, w.cfg.StateBuffer)
	if err := w.sessions.insert(id, &registryEntry{session: s, states: states}); err != nil {
		return nil, nil, err
	}
	// A session nobody waits on must not keep driving the handshake. Only an
	// Error first state leaves the entry in place.
	keep := false
	defer func() {
		if !keep {
			w.sessions.remove(id)
		}
	}()

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: int32(id)})
	w.log.DebugContext(ctx, "worker.register_session.added")

	// Any request wakes the engine session up and starts the handshake.
	if _, err := s.Call(ctx, tdjson.GetApplicationConfig{}); err != nil {
		return nil, nil, fmt.Errorf("probe session %d: %w", id, err)
	}

	var first SessionState
	select {
	case st, ok := <-states:
		if !ok {
			return nil, nil, ErrStateChannelClosed
		}
		first = st
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	switch first.Kind {
	case StateClosed:
		w.log.InfoContext(ctx, "worker.register_session.closed")
		return resolvedOutcome(Closed()), s, nil
	case StateError:
		keep = true
		w.log.WarnContext(ctx, "worker.register_session.err", slog.String("err", first.Err.Error()))
		return nil, nil, first.Err
	}

	keep = true
	w.log.InfoContext(ctx, "worker.register_session.opened")
	out := newOutcome()
	go func() {
		st := awaitTerminal(states)
		w.sessions.remove(id)
		w.log.InfoContext(ctx, "worker.session.finished", slog.String("state", st.String()))
		out.resolve(st)
	}()
	return out, s, nil
}

func awaitTerminal(states <-chan SessionState) SessionState {
	st, ok := <-states
	if !ok {
		return Failed(ErrStateChannelClosed)
	}
	if st.Kind == StateOpened {
		return Failed(ErrOpenedAgain)
	}
	return st
}

// sendWithTimeout delivers v on ch, waiting at most d for room.
func sendWithTimeout[T any](ch chan<- T, v T, d time.Duration) error {
	select {
	case ch <- v:
		return nil
	default:
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case ch <- v:
		return nil
	case <-t.C:
		return ErrSendTimeout
	}
}
