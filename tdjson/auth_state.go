package tdjson

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Authorization state wire types.
const (
	TypeAuthorizationStateWaitTdlibParameters         = "authorizationStateWaitTdlibParameters"
	TypeAuthorizationStateWaitEncryptionKey           = "authorizationStateWaitEncryptionKey"
	TypeAuthorizationStateWaitPhoneNumber             = "authorizationStateWaitPhoneNumber"
	TypeAuthorizationStateWaitCode                    = "authorizationStateWaitCode"
	TypeAuthorizationStateWaitOtherDeviceConfirmation = "authorizationStateWaitOtherDeviceConfirmation"
	TypeAuthorizationStateWaitRegistration            = "authorizationStateWaitRegistration"
	TypeAuthorizationStateWaitPassword                = "authorizationStateWaitPassword"
	TypeAuthorizationStateReady                       = "authorizationStateReady"
	TypeAuthorizationStateLoggingOut                  = "authorizationStateLoggingOut"
	TypeAuthorizationStateClosing                     = "authorizationStateClosing"
	TypeAuthorizationStateClosed                      = "authorizationStateClosed"
)

// AuthorizationState is one step of the handshake. The set of implementations
// is closed; consumers switch on the concrete type.
type AuthorizationState interface {
	AuthorizationStateType() string
	isAuthorizationState()
}

// AuthorizationStateUnset stands in for an update that carried no state.
type AuthorizationStateUnset struct{}

type AuthorizationStateWaitTdlibParameters struct{}

type AuthorizationStateWaitEncryptionKey struct {
	IsEncrypted bool `json:"is_encrypted"`
}

type AuthorizationStateWaitPhoneNumber struct{}

// AuthenticationCodeInfo describes how the code was delivered.
type AuthenticationCodeInfo struct {
	PhoneNumber string          `json:"phone_number"`
	Type        json.RawMessage `json:"type,omitempty"`
	NextType    json.RawMessage `json:"next_type,omitempty"`
	Timeout     int32           `json:"timeout"`
}

type AuthorizationStateWaitCode struct {
	CodeInfo AuthenticationCodeInfo `json:"code_info"`
}

type AuthorizationStateWaitOtherDeviceConfirmation struct {
	Link string `json:"link"`
}

type AuthorizationStateWaitRegistration struct {
	TermsOfService json.RawMessage `json:"terms_of_service,omitempty"`
}

type AuthorizationStateWaitPassword struct {
	PasswordHint                string `json:"password_hint"`
	HasRecoveryEmailAddress     bool   `json:"has_recovery_email_address"`
	RecoveryEmailAddressPattern string `json:"recovery_email_address_pattern"`
}

type AuthorizationStateReady struct{}

type AuthorizationStateLoggingOut struct{}

type AuthorizationStateClosing struct{}

type AuthorizationStateClosed struct{}

// AuthorizationStateUnsupported is any state this package has no variant for,
// typically a newer wait step that needs a value nobody knows how to supply.
type AuthorizationStateUnsupported struct {
	Type string
	Raw  json.RawMessage
}

func (*AuthorizationStateUnset) AuthorizationStateType() string { return "" }
func (*AuthorizationStateWaitTdlibParameters) AuthorizationStateType() string {
	return TypeAuthorizationStateWaitTdlibParameters
}
func (*AuthorizationStateWaitEncryptionKey) AuthorizationStateType() string {
	return TypeAuthorizationStateWaitEncryptionKey
}
func (*AuthorizationStateWaitPhoneNumber) AuthorizationStateType() string {
	return TypeAuthorizationStateWaitPhoneNumber
}
func (*AuthorizationStateWaitCode) AuthorizationStateType() string {
	return TypeAuthorizationStateWaitCode
}
func (*AuthorizationStateWaitOtherDeviceConfirmation) AuthorizationStateType() string {
	return TypeAuthorizationStateWaitOtherDeviceConfirmation
}
func (*AuthorizationStateWaitRegistration) AuthorizationStateType() string {
	return TypeAuthorizationStateWaitRegistration
}
func (*AuthorizationStateWaitPassword) AuthorizationStateType() string {
	return TypeAuthorizationStateWaitPassword
}
func (*AuthorizationStateReady) AuthorizationStateType() string {
	return TypeAuthorizationStateReady
}
func (*AuthorizationStateLoggingOut) AuthorizationStateType() string {
	return TypeAuthorizationStateLoggingOut
}
func (*AuthorizationStateClosing) AuthorizationStateType() string {
	return TypeAuthorizationStateClosing
}
func (*AuthorizationStateClosed) AuthorizationStateType() string {
	return TypeAuthorizationStateClosed
}
func (s *AuthorizationStateUnsupported) AuthorizationStateType() string { return s.Type }

func (*AuthorizationStateUnset) isAuthorizationState()                       {}
func (*AuthorizationStateWaitTdlibParameters) isAuthorizationState()         {}
func (*AuthorizationStateWaitEncryptionKey) isAuthorizationState()           {}
func (*AuthorizationStateWaitPhoneNumber) isAuthorizationState()             {}
func (*AuthorizationStateWaitCode) isAuthorizationState()                    {}
func (*AuthorizationStateWaitOtherDeviceConfirmation) isAuthorizationState() {}
func (*AuthorizationStateWaitRegistration) isAuthorizationState()            {}
func (*AuthorizationStateWaitPassword) isAuthorizationState()                {}
func (*AuthorizationStateReady) isAuthorizationState()                       {}
func (*AuthorizationStateLoggingOut) isAuthorizationState()                  {}
func (*AuthorizationStateClosing) isAuthorizationState()                     {}
func (*AuthorizationStateClosed) isAuthorizationState()                      {}
func (*AuthorizationStateUnsupported) isAuthorizationState()                 {}

func decodeAuthorizationState(raw json.RawMessage) (AuthorizationState, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &AuthorizationStateUnset{}, nil
	}
	h, err := ReadHeader(raw)
	if err != nil {
		return nil, err
	}

	var st AuthorizationState
	switch h.Type {
	case TypeAuthorizationStateWaitTdlibParameters:
		st = &AuthorizationStateWaitTdlibParameters{}
	case TypeAuthorizationStateWaitEncryptionKey:
		st = &AuthorizationStateWaitEncryptionKey{}
	case TypeAuthorizationStateWaitPhoneNumber:
		st = &AuthorizationStateWaitPhoneNumber{}
	case TypeAuthorizationStateWaitCode:
		st = &AuthorizationStateWaitCode{}
	case TypeAuthorizationStateWaitOtherDeviceConfirmation:
		st = &AuthorizationStateWaitOtherDeviceConfirmation{}
	case TypeAuthorizationStateWaitRegistration:
		st = &AuthorizationStateWaitRegistration{}
	case TypeAuthorizationStateWaitPassword:
		st = &AuthorizationStateWaitPassword{}
	case TypeAuthorizationStateReady:
		return &AuthorizationStateReady{}, nil
	case TypeAuthorizationStateLoggingOut:
		return &AuthorizationStateLoggingOut{}, nil
	case TypeAuthorizationStateClosing:
		return &AuthorizationStateClosing{}, nil
	case TypeAuthorizationStateClosed:
		return &AuthorizationStateClosed{}, nil
	default:
		return &AuthorizationStateUnsupported{Type: h.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}

	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("%s: %w", h.Type, err)
	}
	return st, nil
}
