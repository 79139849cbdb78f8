package tdclient

import (
	"context"

	"github.com/ggoodman/tdclient-go/tdjson"
)

// AuthHandler supplies the values the handshake asks for. Each method may
// block for as long as it takes to obtain the value; the auth pump serves
// one step at a time, so a slow answer delays every session's handshake.
//
// An error fails the handshake of that session only: it is reported as an
// Error state on the session's registration.
type AuthHandler interface {
	// HandleOtherDeviceConfirmation presents the login link to the user.
	HandleOtherDeviceConfirmation(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitOtherDeviceConfirmation) error
	HandleWaitCode(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitCode) (string, error)
	HandleEncryptionKey(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitEncryptionKey) (string, error)
	HandleWaitPassword(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitPassword) (string, error)
	HandleWaitPhoneNumber(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitPhoneNumber) (string, error)
	// HandleWaitRegistration returns the first and last name of a new account.
	HandleWaitRegistration(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitRegistration) (firstName, lastName string, err error)
}
