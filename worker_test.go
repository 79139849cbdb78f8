package tdclient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ggoodman/tdclient-go/engine/memengine"
	"github.com/ggoodman/tdclient-go/tdjson"
	"github.com/stretchr/testify/require"
)

func requestTypes(reqs []memengine.Request) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Type)
	}
	return out
}

func TestRegisterSession_OpensThenCloses(t *testing.T) {
	t.Parallel()
	eng := memengine.New(memengine.WithResponder(memengine.Handshake().Responder()))
	w, run := startWorker(t, eng)
	ctx := context.Background()

	done, sess, err := w.RegisterSession(ctx, w.NewSession(testParams()))
	require.NoError(t, err)
	require.NotNil(t, done)
	requireUnresolved(t, done)

	id, bound := sess.ID()
	require.True(t, bound)
	got, ok := w.Session(id)
	require.True(t, ok)
	require.Same(t, sess, got)

	reqs := eng.Requests()
	require.Equal(t, []string{"getApplicationConfig", "setTdlibParameters"}, requestTypes(reqs))
	var set struct {
		Parameters map[string]any `json:"parameters"`
	}
	require.NoError(t, json.Unmarshal(reqs[1].Raw, &set))
	require.Equal(t, "tdlibParameters", set.Parameters["@type"])
	require.Equal(t, "0123456789abcdef", set.Parameters["api_hash"])

	require.NoError(t, sess.Close(ctx))
	require.Equal(t, StateClosed, waitOutcome(t, done).Kind)
	require.Eventually(t, func() bool {
		_, ok := w.Session(id)
		return !ok
	}, time.Second, 5*time.Millisecond)
	requireUnresolved(t, run)
}

func TestRegisterSession_ClosedFirst(t *testing.T) {
	t.Parallel()
	script := memengine.Script{
		"getApplicationConfig": func(e *memengine.Engine, req memengine.Request) {
			_ = e.Emit(context.Background(), memengine.AuthState(req.SessionID, tdjson.TypeAuthorizationStateClosed, nil))
		},
	}
	eng := memengine.New(memengine.WithResponder(script.Responder()))
	w, _ := startWorker(t, eng)

	done, sess, err := w.RegisterSession(context.Background(), NewSession(testParams()))
	require.NoError(t, err)
	st, ok := done.State()
	require.True(t, ok)
	require.Equal(t, StateClosed, st.Kind)

	id, _ := sess.ID()
	_, ok = w.Session(id)
	require.False(t, ok)
}

func TestRegisterSession_HandlerErrorFailsOnlyThatSession(t *testing.T) {
	t.Parallel()
	// Only the first session is asked for a phone number; later ones go
	// straight to Ready.
	script := memengine.Handshake()
	script["setTdlibParameters"] = func(e *memengine.Engine, req memengine.Request) {
		next := tdjson.TypeAuthorizationStateReady
		if req.SessionID == 1 {
			next = tdjson.TypeAuthorizationStateWaitPhoneNumber
		}
		_ = e.Emit(context.Background(), memengine.AuthState(req.SessionID, next, nil))
	}
	eng := memengine.New(memengine.WithResponder(script.Responder()))
	auth := &fakeAuth{err: errBoom}
	w, run := startWorker(t, eng, WithAuthHandler(auth))
	ctx := context.Background()

	_, failed, err := w.RegisterSession(ctx, NewSession(testParams()))
	require.ErrorIs(t, err, errBoom)
	require.Nil(t, failed)
	require.Equal(t, []string{"phone"}, auth.steps())

	done, sess, err := w.RegisterSession(ctx, NewSession(testParams()))
	require.NoError(t, err)
	requireUnresolved(t, done)
	id, _ := sess.ID()
	require.Equal(t, SessionID(2), id)
	require.NoError(t, eng.Emit(ctx, memengine.Object(id, "updateOption", nil)))
	select {
	case <-sess.Updates():
	case <-time.After(2 * time.Second):
		t.Fatal("healthy session stopped receiving updates")
	}
	requireUnresolved(t, run)
}

func TestRegisterSession_AbandonedSessionIsEvicted(t *testing.T) {
	t.Parallel()
	// No responder: the probe is never answered.
	eng := memengine.New()
	auth := &fakeAuth{phone: "+15550100"}
	w, run := startWorker(t, eng, WithAuthHandler(auth), WithSendTimeout(20*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := w.RegisterSession(ctx, NewSession(testParams()))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	const id = SessionID(1)
	_, ok := w.Session(id)
	require.False(t, ok, "abandoned session still registered")

	// Late handshake traffic for the abandoned id is dropped.
	bg := context.Background()
	require.NoError(t, eng.Emit(bg, memengine.AuthState(id, tdjson.TypeAuthorizationStateWaitPhoneNumber, nil)))
	for i := 0; i < 2*defaultStateBuffer; i++ {
		require.NoError(t, eng.Emit(bg, memengine.AuthState(id, tdjson.TypeAuthorizationStateReady, nil)))
	}
	time.Sleep(300 * time.Millisecond)

	require.Empty(t, auth.steps())
	requireUnresolved(t, run)
}

func TestRegisterSession_SecondOpenedIsError(t *testing.T) {
	t.Parallel()
	script := memengine.Handshake()
	script["setTdlibParameters"] = func(e *memengine.Engine, req memengine.Request) {
		ready := memengine.AuthState(req.SessionID, tdjson.TypeAuthorizationStateReady, nil)
		_ = e.Emit(context.Background(), ready)
		_ = e.Emit(context.Background(), ready)
	}
	eng := memengine.New(memengine.WithResponder(script.Responder()))
	w, _ := startWorker(t, eng)

	done, _, err := w.RegisterSession(context.Background(), NewSession(testParams()))
	require.NoError(t, err)
	st := waitOutcome(t, done)
	require.Equal(t, StateError, st.Kind)
	require.ErrorIs(t, st.Err, ErrOpenedAgain)
}

func TestRegisterSession_FullHandshake(t *testing.T) {
	t.Parallel()
	auth := &fakeAuth{phone: "+15550100", code: "12345", password: "hunter2", first: "Ada", last: "Lovelace"}
	emit := func(typ string, fields map[string]any) func(*memengine.Engine, memengine.Request) {
		return func(e *memengine.Engine, req memengine.Request) {
			_ = e.Emit(context.Background(), memengine.AuthState(req.SessionID, typ, fields))
		}
	}
	script := memengine.Script{
		"getApplicationConfig":         emit(tdjson.TypeAuthorizationStateWaitTdlibParameters, nil),
		"setTdlibParameters":           emit(tdjson.TypeAuthorizationStateWaitPhoneNumber, nil),
		"setAuthenticationPhoneNumber": emit(tdjson.TypeAuthorizationStateWaitCode, nil),
		"checkAuthenticationCode":      emit(tdjson.TypeAuthorizationStateWaitRegistration, nil),
		"registerUser":                 emit(tdjson.TypeAuthorizationStateWaitPassword, map[string]any{"password_hint": "pet"}),
		"checkAuthenticationPassword":  emit(tdjson.TypeAuthorizationStateReady, nil),
	}
	eng := memengine.New(memengine.WithResponder(script.Responder()))
	w, _ := startWorker(t, eng, WithAuthHandler(auth))

	done, _, err := w.RegisterSession(context.Background(), NewSession(testParams()))
	require.NoError(t, err)
	requireUnresolved(t, done)
	require.Equal(t, []string{"phone", "code", "registration", "password"}, auth.steps())
	require.Equal(t, []string{
		"getApplicationConfig",
		"setTdlibParameters",
		"setAuthenticationPhoneNumber",
		"checkAuthenticationCode",
		"registerUser",
		"checkAuthenticationPassword",
	}, requestTypes(eng.Requests()))
}

func TestEvents_UpdatesRoutedAndUnknownDropped(t *testing.T) {
	t.Parallel()
	eng := memengine.New(memengine.WithResponder(memengine.Handshake().Responder()))
	w, run := startWorker(t, eng)
	ctx := context.Background()

	_, sess, err := w.RegisterSession(ctx, NewSession(testParams()))
	require.NoError(t, err)
	id, _ := sess.ID()

	require.NoError(t, eng.Emit(ctx, memengine.Object(id+100, "updateOption", map[string]any{"name": "stray"})))
	require.NoError(t, eng.Emit(ctx, memengine.Object(id, "updateOption", map[string]any{"name": "first"})))
	require.NoError(t, eng.Emit(ctx, memengine.Object(id, "updateOption", map[string]any{"name": "second"})))

	for _, want := range []string{"first", "second"} {
		select {
		case upd := <-sess.Updates():
			var body struct {
				Name string `json:"name"`
			}
			require.NoError(t, upd.Decode(&body))
			require.Equal(t, want, body.Name)
			gotID, ok := upd.SessionID()
			require.True(t, ok)
			require.Equal(t, id, gotID)
		case <-time.After(2 * time.Second):
			t.Fatalf("update %q not delivered", want)
		}
	}
	requireUnresolved(t, run)
}

func TestEvents_UnroutedRepliesIgnored(t *testing.T) {
	t.Parallel()
	eng := memengine.New()
	_, run := startWorker(t, eng)
	ctx := context.Background()

	require.NoError(t, eng.Emit(ctx, memengine.Reply(1, "no-such-token", tdjson.TypeOk, nil)))
	require.NoError(t, eng.Emit(ctx, memengine.Object(1, "user", nil)))
	time.Sleep(100 * time.Millisecond)
	requireUnresolved(t, run)
}

func TestEvents_SendTimeoutFailsWorker(t *testing.T) {
	t.Parallel()
	eng := memengine.New(memengine.WithResponder(memengine.Handshake().Responder()))
	w, run := startWorker(t, eng, WithSendTimeout(30*time.Millisecond))
	ctx := context.Background()

	_, sess, err := w.RegisterSession(ctx, NewSession(testParams(), WithUpdatesBuffer(1)))
	require.NoError(t, err)
	id, _ := sess.ID()

	for i := 0; i < 3; i++ {
		require.NoError(t, eng.Emit(ctx, memengine.Object(id, "updateOption", nil)))
	}
	st := waitOutcome(t, run)
	require.Equal(t, StateError, st.Kind)
	require.ErrorIs(t, st.Err, ErrSendTimeout)
}

func TestEvents_DecodeFailureIsFatal(t *testing.T) {
	t.Parallel()
	eng := memengine.New()
	_, run := startWorker(t, eng)

	require.NoError(t, eng.Emit(context.Background(), []byte("not json")))
	st := waitOutcome(t, run)
	require.Equal(t, StateError, st.Kind)
	require.ErrorIs(t, st.Err, ErrDecode)
}

func TestAuth_UnsupportedStateIsFatal(t *testing.T) {
	t.Parallel()
	script := memengine.Script{
		"getApplicationConfig": func(e *memengine.Engine, req memengine.Request) {
			_ = e.Emit(context.Background(), memengine.AuthState(req.SessionID, "authorizationStateWaitEmailAddress", nil))
		},
	}
	eng := memengine.New(memengine.WithResponder(script.Responder()))
	w, run := startWorker(t, eng)

	_, _, err := w.RegisterSession(context.Background(), NewSession(testParams()))
	require.ErrorIs(t, err, ErrStateChannelClosed)

	st := waitOutcome(t, run)
	require.Equal(t, StateError, st.Kind)
	require.ErrorIs(t, st.Err, ErrUnexpectedAuthState)
}

func TestWorker_StopResolvesClosed(t *testing.T) {
	t.Parallel()
	w, run := startWorker(t, memengine.New())

	w.Stop()
	start := time.Now()
	require.Equal(t, StateClosed, waitOutcome(t, run).Kind)
	require.Less(t, time.Since(start), time.Second)
}

func TestWorker_ContextCancelStops(t *testing.T) {
	t.Parallel()
	w := New(memengine.New(), WithLogger(discardLogger()), WithAuthHandler(&fakeAuth{}), WithReceiveTimeout(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	run := w.Start(ctx)

	cancel()
	require.Equal(t, StateClosed, waitOutcome(t, run).Kind)
}

func TestWorker_StartTwice(t *testing.T) {
	t.Parallel()
	w, _ := startWorker(t, memengine.New())

	st := waitOutcome(t, w.Start(context.Background()))
	require.Equal(t, StateError, st.Kind)
	require.ErrorIs(t, st.Err, ErrAlreadyStarted)
}

func TestWorker_ReceiveErrorIsFatal(t *testing.T) {
	t.Parallel()
	eng := memengine.New()
	_, run := startWorker(t, eng)

	require.NoError(t, eng.Close())
	st := waitOutcome(t, run)
	require.Equal(t, StateError, st.Kind)
}

func TestWorker_PendingCallFailsAfterStop(t *testing.T) {
	t.Parallel()
	handshake := memengine.Handshake().Responder()
	eng := memengine.New(memengine.WithResponder(func(e *memengine.Engine, req memengine.Request) {
		if req.Type == "getMe" {
			return
		}
		handshake(e, req)
	}))
	w, run := startWorker(t, eng)
	ctx := context.Background()

	_, sess, err := w.RegisterSession(ctx, NewSession(testParams()))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := sess.Call(ctx, tdjson.Raw{Type: "getMe"})
		errCh <- err
	}()
	require.Eventually(t, func() bool { return w.corr.Len() == 1 }, time.Second, 5*time.Millisecond)

	w.Stop()
	waitOutcome(t, run)
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrWorkerStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("pending call did not fail")
	}

	_, _, err = w.RegisterSession(ctx, NewSession(testParams()))
	require.ErrorIs(t, err, ErrWorkerStopped)
}

func TestSession_CallReturnsEngineError(t *testing.T) {
	t.Parallel()
	handshake := memengine.Handshake().Responder()
	eng := memengine.New(memengine.WithResponder(func(e *memengine.Engine, req memengine.Request) {
		if req.Type == "getMe" {
			_ = e.Emit(context.Background(), memengine.Reply(req.SessionID, req.Extra, tdjson.TypeError, map[string]any{"code": 401, "message": "UNAUTHORIZED"}))
			return
		}
		handshake(e, req)
	}))
	w, _ := startWorker(t, eng)

	_, sess, err := w.RegisterSession(context.Background(), NewSession(testParams()))
	require.NoError(t, err)

	_, err = sess.Call(context.Background(), tdjson.Raw{Type: "getMe"})
	var tdErr *tdjson.Error
	require.ErrorAs(t, err, &tdErr)
	require.Equal(t, int32(401), tdErr.Code)
	require.Equal(t, "UNAUTHORIZED", tdErr.Message)
}

func TestSession_RegisterTwiceFails(t *testing.T) {
	t.Parallel()
	eng := memengine.New(memengine.WithResponder(memengine.Handshake().Responder()))
	w, _ := startWorker(t, eng)

	_, sess, err := w.RegisterSession(context.Background(), NewSession(testParams()))
	require.NoError(t, err)
	_, _, err = w.RegisterSession(context.Background(), sess)
	require.ErrorIs(t, err, ErrSessionAlreadyBound)
}
