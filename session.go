package tdclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ggoodman/tdclient-go/engine"
	"github.com/ggoodman/tdclient-go/internal/correlation"
	"github.com/ggoodman/tdclient-go/tdjson"
	"github.com/google/uuid"
)

// SessionID identifies a session inside the engine.
type SessionID = tdjson.SessionID

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithUpdatesBuffer sets the capacity of the session's update channel.
func WithUpdatesBuffer(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.updatesBuffer = n
		}
	}
}

// Session is a caller-facing handle for one logical session. It is created
// unbound and receives its id from Worker.RegisterSession.
type Session struct {
	params        tdjson.TdlibParameters
	updatesBuffer int
	updates       chan *tdjson.Update

	mu     sync.RWMutex
	id     SessionID
	bound  bool
	engine engine.Engine
	corr   *correlation.Registry
}

// NewSession constructs an unbound session that will be initialized with
// params once the engine asks for them.
func NewSession(params tdjson.TdlibParameters, opts ...SessionOption) *Session {
	s := &Session{params: params, updatesBuffer: defaultUpdatesBuffer}
	for _, opt := range opts {
		opt(s)
	}
	s.updates = make(chan *tdjson.Update, s.updatesBuffer)
	return s
}

// ID returns the session id and whether the session has been bound.
func (s *Session) ID() (SessionID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.bound
}

// Parameters returns the initialization parameters.
func (s *Session) Parameters() tdjson.TdlibParameters { return s.params }

// Updates delivers the session's updates in engine order. The channel is
// never closed; watch the registration Outcome to learn when the session ends.
func (s *Session) Updates() <-chan *tdjson.Update { return s.updates }

func (s *Session) bind(id SessionID, eng engine.Engine, corr *correlation.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return fmt.Errorf("bind session %d: %w", id, ErrSessionAlreadyBound)
	}
	s.id, s.bound, s.engine, s.corr = id, true, eng, corr
	return nil
}

func (s *Session) target() (SessionID, engine.Engine, *correlation.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.bound {
		return 0, nil, nil, ErrSessionNotBound
	}
	return s.id, s.engine, s.corr, nil
}

// Send submits req without waiting for a reply.
func (s *Session) Send(req tdjson.Request) error {
	id, eng, _, err := s.target()
	if err != nil {
		return err
	}
	b, err := tdjson.Encode(req, "")
	if err != nil {
		return fmt.Errorf("encode %s: %w", req.RequestType(), err)
	}
	if err := eng.Send(id, b); err != nil {
		return fmt.Errorf("send %s to session %d: %w", req.RequestType(), id, err)
	}
	return nil
}

// Call submits req tagged with a fresh correlation token and waits for the
// reply carrying it. An engine error reply is returned as a *tdjson.Error.
func (s *Session) Call(ctx context.Context, req tdjson.Request) (tdjson.Event, error) {
	id, eng, corr, err := s.target()
	if err != nil {
		return nil, err
	}
	p, err := corr.Register(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", req.RequestType(), err)
	}
	b, err := tdjson.Encode(req, p.Token())
	if err != nil {
		corr.Cancel(p.Token())
		return nil, fmt.Errorf("encode %s: %w", req.RequestType(), err)
	}
	if err := eng.Send(id, b); err != nil {
		corr.Cancel(p.Token())
		return nil, fmt.Errorf("send %s to session %d: %w", req.RequestType(), id, err)
	}
	ev, err := p.Wait(ctx)
	if err != nil {
		if errors.Is(err, correlation.ErrClosed) {
			err = ErrWorkerStopped
		}
		return nil, fmt.Errorf("call %s: %w", req.RequestType(), err)
	}
	if tdErr, ok := ev.(*tdjson.Error); ok {
		return nil, tdErr
	}
	return ev, nil
}

// Close asks the engine to close the session. The registration Outcome
// resolves with Closed once the engine confirms.
func (s *Session) Close(ctx context.Context) error {
	_, err := s.Call(ctx, tdjson.Close{})
	return err
}

// LogOut asks the engine to log the session out.
func (s *Session) LogOut(ctx context.Context) error {
	_, err := s.Call(ctx, tdjson.LogOut{})
	return err
}
