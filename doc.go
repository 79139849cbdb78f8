// Package tdclient multiplexes many logical client sessions over a single
// engine connection.
//
// The engine exposes one blocking receive call and one send call, addressed by
// integer session ids. A Worker owns that connection and runs two goroutines:
//
//	event pump : sole reader of the engine; decodes events, hands replies to
//	             waiting callers, forwards authorization updates to the auth
//	             pump and ordinary updates to the addressed Session
//	auth pump  : sole driver of the authorization handshake; asks the
//	             AuthHandler for credentials and reports Opened / Closed to the
//	             session's registration
//
// Every channel hand-off is bounded and guarded by a send timeout. A send that
// times out fails the pump that attempted it, and the Worker's run ends with an
// Error state.
//
// Typical use:
//
//	w := tdclient.New(eng, tdclient.WithAuthHandler(authconsole.New()))
//	run := w.Start(ctx)
//	done, sess, err := w.RegisterSession(ctx, tdclient.NewSession(params))
//	if err != nil { return err }
//	for upd := range sess.Updates() { ... }
//
// RegisterSession returns once the handshake finished (or the engine reported
// the session closed); done resolves with the session's terminal state.
package tdclient
