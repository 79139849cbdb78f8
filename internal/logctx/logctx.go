package logctx

import (
	"context"
	"log/slog"
)

// Handler decorates records with the session and event attached to the
// record's context.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if sd, ok := ctx.Value(sessionDataKey{}).(*SessionData); ok {
		attrs := []any{slog.Int64("id", int64(sd.SessionID))}
		if sd.AuthState != "" {
			attrs = append(attrs, slog.String("auth_state", sd.AuthState))
		}
		r.AddAttrs(slog.Group("sess", attrs...))
	}

	if ev, ok := ctx.Value(eventDataKey{}).(*EventData); ok {
		attrs := []any{slog.String("type", ev.Type)}
		if ev.Extra != "" {
			attrs = append(attrs, slog.String("extra", ev.Extra))
		}
		r.AddAttrs(slog.Group("event", attrs...))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type sessionDataKey struct{}

type SessionData struct {
	SessionID int32
	AuthState string
}

func WithSessionData(ctx context.Context, data *SessionData) context.Context {
	return context.WithValue(ctx, sessionDataKey{}, data)
}

type eventDataKey struct{}

type EventData struct {
	Type  string
	Extra string
}

func WithEventData(ctx context.Context, data *EventData) context.Context {
	return context.WithValue(ctx, eventDataKey{}, data)
}
