package tdclient

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ggoodman/tdclient-go/internal/logctx"
	"github.com/ggoodman/tdclient-go/tdjson"
)

// runAuth drives the handshake of every session. It runs until authCh is
// closed and then closes all state channels.
func (w *Worker) runAuth(ctx context.Context, authCh <-chan *tdjson.UpdateAuthorizationState) error {
	defer w.sessions.close()

	for upd := range authCh {
		st := upd.AuthorizationState
		lctx := logctx.WithEventData(ctx, &logctx.EventData{Type: upd.Type(), Extra: upd.Extra()})

		id, ok := upd.SessionID()
		if !ok {
			w.log.WarnContext(lctx, "worker.auth.missing_session_id")
			continue
		}
		lctx = logctx.WithSessionData(lctx, &logctx.SessionData{SessionID: int32(id), AuthState: st.AuthorizationStateType()})

		e, ok := w.sessions.lookup(id)
		if !ok {
			w.log.WarnContext(lctx, "worker.auth.unknown_session")
			continue
		}
		if err := w.handleAuthState(lctx, e, st); err != nil {
			w.log.ErrorContext(lctx, "worker.auth.err", slog.String("err", err.Error()))
			return err
		}
	}
	return nil
}

// handleAuthState performs the one action a state calls for. A returned error
// is fatal to the auth pump; handler failures are reported to the session
// instead.
func (w *Worker) handleAuthState(ctx context.Context, e *registryEntry, state tdjson.AuthorizationState) error {
	s := e.session
	id, _ := s.ID()

	switch st := state.(type) {
	case *tdjson.AuthorizationStateUnset, *tdjson.AuthorizationStateClosing, *tdjson.AuthorizationStateLoggingOut:
		w.log.DebugContext(ctx, "worker.auth.ignored")
		return nil

	case *tdjson.AuthorizationStateWaitTdlibParameters:
		return w.followUp(ctx, s, tdjson.SetTdlibParameters{Parameters: s.Parameters()})

	case *tdjson.AuthorizationStateWaitEncryptionKey:
		key, err := w.auth.HandleEncryptionKey(ctx, id, st)
		if err != nil {
			return w.handshakeFailed(ctx, e, err)
		}
		return w.followUp(ctx, s, tdjson.CheckDatabaseEncryptionKey{EncryptionKey: key})

	case *tdjson.AuthorizationStateWaitPhoneNumber:
		phone, err := w.auth.HandleWaitPhoneNumber(ctx, id, st)
		if err != nil {
			return w.handshakeFailed(ctx, e, err)
		}
		return w.followUp(ctx, s, tdjson.SetAuthenticationPhoneNumber{PhoneNumber: phone})

	case *tdjson.AuthorizationStateWaitCode:
		code, err := w.auth.HandleWaitCode(ctx, id, st)
		if err != nil {
			return w.handshakeFailed(ctx, e, err)
		}
		return w.followUp(ctx, s, tdjson.CheckAuthenticationCode{Code: code})

	case *tdjson.AuthorizationStateWaitPassword:
		password, err := w.auth.HandleWaitPassword(ctx, id, st)
		if err != nil {
			return w.handshakeFailed(ctx, e, err)
		}
		return w.followUp(ctx, s, tdjson.CheckAuthenticationPassword{Password: password})

	case *tdjson.AuthorizationStateWaitRegistration:
		first, last, err := w.auth.HandleWaitRegistration(ctx, id, st)
		if err != nil {
			return w.handshakeFailed(ctx, e, err)
		}
		return w.followUp(ctx, s, tdjson.RegisterUser{FirstName: first, LastName: last})

	case *tdjson.AuthorizationStateWaitOtherDeviceConfirmation:
		if err := w.auth.HandleOtherDeviceConfirmation(ctx, id, st); err != nil {
			return w.handshakeFailed(ctx, e, err)
		}
		return nil

	case *tdjson.AuthorizationStateReady:
		return w.notify(ctx, e, Opened())

	case *tdjson.AuthorizationStateClosed:
		return w.notify(ctx, e, Closed())

	case *tdjson.AuthorizationStateUnsupported:
		return fmt.Errorf("%w: %s", ErrUnexpectedAuthState, st.Type)

	default:
		return fmt.Errorf("%w: %T", ErrUnexpectedAuthState, state)
	}
}

func (w *Worker) followUp(ctx context.Context, s *Session, req tdjson.Request) error {
	w.log.DebugContext(ctx, "worker.auth.follow_up", slog.String("request", req.RequestType()))
	if err := s.Send(req); err != nil {
		return fmt.Errorf("auth follow-up: %w", err)
	}
	return nil
}

func (w *Worker) notify(ctx context.Context, e *registryEntry, st SessionState) error {
	w.log.DebugContext(ctx, "worker.auth.notify", slog.String("state", st.String()))
	if err := sendWithTimeout(e.states, st, w.cfg.SendTimeout); err != nil {
		id, _ := e.session.ID()
		return fmt.Errorf("notify session %d of %s: %w", id, st.Kind, err)
	}
	return nil
}

func (w *Worker) handshakeFailed(ctx context.Context, e *registryEntry, err error) error {
	w.log.WarnContext(ctx, "worker.auth.handler_err", slog.String("err", err.Error()))
	return w.notify(ctx, e, Failed(fmt.Errorf("auth handler: %w", err)))
}
