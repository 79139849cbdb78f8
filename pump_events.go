package tdclient

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ggoodman/tdclient-go/internal/logctx"
	"github.com/ggoodman/tdclient-go/tdjson"
)

// runEvents is the sole reader of the engine. It returns nil once Stop is
// observed and closes authCh on the way out so the auth pump drains and exits.
func (w *Worker) runEvents(ctx context.Context, authCh chan<- *tdjson.UpdateAuthorizationState) error {
	defer close(authCh)

	for !w.stopped.Load() {
		raw, err := w.engine.Receive(w.cfg.ReceiveTimeout)
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		if raw == nil {
			continue
		}

		ev, err := tdjson.Decode(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDecode, err)
		}
		ev, unrouted := w.corr.Route(ev)
		if !unrouted {
			continue
		}
		if err := w.dispatch(ctx, ev, authCh); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) dispatch(ctx context.Context, ev tdjson.Event, authCh chan<- *tdjson.UpdateAuthorizationState) error {
	ctx = logctx.WithEventData(ctx, &logctx.EventData{Type: ev.Type(), Extra: ev.Extra()})

	switch ev := ev.(type) {
	case *tdjson.UpdateAuthorizationState:
		if err := sendWithTimeout(authCh, ev, w.cfg.SendTimeout); err != nil {
			return fmt.Errorf("forward authorization state: %w", err)
		}
	case *tdjson.Update:
		id, ok := ev.SessionID()
		if !ok {
			w.log.WarnContext(ctx, "worker.events.missing_session_id")
			return nil
		}
		e, ok := w.sessions.lookup(id)
		if !ok {
			w.log.WarnContext(ctx, "worker.events.unknown_session", slog.Int("session_id", int(id)))
			return nil
		}
		if err := sendWithTimeout(e.session.updates, ev, w.cfg.SendTimeout); err != nil {
			return fmt.Errorf("forward update to session %d: %w", id, err)
		}
	default:
		w.log.DebugContext(ctx, "worker.events.unrouted")
	}
	return nil
}
