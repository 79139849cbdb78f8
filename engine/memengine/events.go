package memengine

import (
	"context"
	"encoding/json"

	"github.com/ggoodman/tdclient-go/tdjson"
)

// Object renders a wire object of the given type for session id. fields may be
// nil.
func Object(id tdjson.SessionID, typ string, fields map[string]any) []byte {
	obj := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		obj[k] = v
	}
	obj["@type"] = typ
	obj["@client_id"] = id
	b, _ := json.Marshal(obj)
	return b
}

// AuthState renders an updateAuthorizationState event.
func AuthState(id tdjson.SessionID, stateType string, fields map[string]any) []byte {
	st := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		st[k] = v
	}
	st["@type"] = stateType
	return Object(id, tdjson.TypeUpdateAuthorizationState, map[string]any{"authorization_state": st})
}

// Reply renders a reply correlated to a request through extra.
func Reply(id tdjson.SessionID, extra, typ string, fields map[string]any) []byte {
	f := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		f[k] = v
	}
	f["@extra"] = extra
	return Object(id, typ, f)
}

// Ack answers every request with an "ok" reply.
func Ack(e *Engine, req Request) {
	_ = e.Emit(context.Background(), Reply(req.SessionID, req.Extra, tdjson.TypeOk, nil))
}

// Script answers requests by type. Requests without an entry are acknowledged
// with "ok"; a step may emit further events after the reply.
type Script map[string]func(e *Engine, req Request)

// Responder returns a Responder that follows the script.
func (s Script) Responder() Responder {
	return func(e *Engine, req Request) {
		Ack(e, req)
		if step, ok := s[req.Type]; ok {
			step(e, req)
		}
	}
}

// Handshake is the scripted happy path: parameters are requested after the
// probe and the session becomes ready once they are set.
func Handshake() Script {
	return Script{
		"getApplicationConfig": func(e *Engine, req Request) {
			_ = e.Emit(context.Background(), AuthState(req.SessionID, tdjson.TypeAuthorizationStateWaitTdlibParameters, nil))
		},
		"setTdlibParameters": func(e *Engine, req Request) {
			_ = e.Emit(context.Background(), AuthState(req.SessionID, tdjson.TypeAuthorizationStateReady, nil))
		},
		"close": func(e *Engine, req Request) {
			_ = e.Emit(context.Background(), AuthState(req.SessionID, tdjson.TypeAuthorizationStateClosing, nil))
			_ = e.Emit(context.Background(), AuthState(req.SessionID, tdjson.TypeAuthorizationStateClosed, nil))
		},
	}
}
