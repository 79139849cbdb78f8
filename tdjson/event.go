package tdjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SessionID identifies one engine session. It is assigned by the engine and is
// the only key the runtime routes on.
type SessionID int32

// Wire type names the runtime interprets.
const (
	TypeUpdateAuthorizationState = "updateAuthorizationState"
	TypeOk                       = "ok"
	TypeError                    = "error"

	updatePrefix = "update"
)

var (
	// ErrMissingType is returned when an object carries no "@type" field.
	ErrMissingType = errors.New("tdjson: object has no @type")
)

// Header holds the routing fields shared by every wire object.
type Header struct {
	Type     string
	Extra    string
	ClientID *SessionID
}

type rawHeader struct {
	Type     string          `json:"@type"`
	Extra    json.RawMessage `json:"@extra,omitempty"`
	ClientID *SessionID      `json:"@client_id,omitempty"`
}

// ReadHeader extracts the routing fields of a wire object without decoding its
// body.
func ReadHeader(raw []byte) (Header, error) {
	var h rawHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return Header{}, fmt.Errorf("tdjson: invalid object: %w", err)
	}
	if h.Type == "" {
		return Header{}, ErrMissingType
	}
	return Header{Type: h.Type, Extra: extraString(h.Extra), ClientID: h.ClientID}, nil
}

// extraString normalizes "@extra" to a string; engines echo back whatever JSON
// value the request carried.
func extraString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// Event is a decoded object received from the engine.
type Event interface {
	// Type is the object's "@type".
	Type() string
	// SessionID reports the session the object belongs to, if it names one.
	SessionID() (SessionID, bool)
	// Extra is the correlation token echoed from a request, or "".
	Extra() string
}

// Meta carries the header fields and implements Event. It is embedded by every
// concrete event kind.
type Meta struct {
	typ       string
	extra     string
	sessionID SessionID
	hasID     bool
}

func newMeta(h Header) Meta {
	m := Meta{typ: h.Type, extra: h.Extra}
	if h.ClientID != nil {
		m.sessionID = *h.ClientID
		m.hasID = true
	}
	return m
}

func (m Meta) Type() string                 { return m.typ }
func (m Meta) Extra() string                { return m.extra }
func (m Meta) SessionID() (SessionID, bool) { return m.sessionID, m.hasID }

// Update is any engine update other than an authorization state change.
type Update struct {
	Meta
	Raw json.RawMessage
}

// Decode unmarshals the full update object into v.
func (u *Update) Decode(v any) error { return json.Unmarshal(u.Raw, v) }

// UpdateAuthorizationState reports a step of a session's handshake.
type UpdateAuthorizationState struct {
	Meta
	AuthorizationState AuthorizationState
}

// Ok is the empty success reply.
type Ok struct {
	Meta
}

// Error is the engine's failure reply. It implements error.
type Error struct {
	Meta
	Code    int32
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// Object is any other reply; the body is left undecoded.
type Object struct {
	Meta
	Raw json.RawMessage
}

// Decode unmarshals the full object into v.
func (o *Object) Decode(v any) error { return json.Unmarshal(o.Raw, v) }

// Decode parses one raw wire object into its event kind.
func Decode(raw []byte) (Event, error) {
	h, err := ReadHeader(raw)
	if err != nil {
		return nil, err
	}
	meta := newMeta(h)

	switch {
	case h.Type == TypeUpdateAuthorizationState:
		var body struct {
			State json.RawMessage `json:"authorization_state"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("tdjson: decode %s: %w", h.Type, err)
		}
		st, err := decodeAuthorizationState(body.State)
		if err != nil {
			return nil, fmt.Errorf("tdjson: decode %s: %w", h.Type, err)
		}
		return &UpdateAuthorizationState{Meta: meta, AuthorizationState: st}, nil
	case h.Type == TypeOk:
		return &Ok{Meta: meta}, nil
	case h.Type == TypeError:
		var body struct {
			Code    int32  `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("tdjson: decode %s: %w", h.Type, err)
		}
		return &Error{Meta: meta, Code: body.Code, Message: body.Message}, nil
	case strings.HasPrefix(h.Type, updatePrefix):
		return &Update{Meta: meta, Raw: append(json.RawMessage(nil), raw...)}, nil
	default:
		return &Object{Meta: meta, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}
