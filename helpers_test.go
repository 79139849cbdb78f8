package tdclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/tdclient-go/engine/memengine"
	"github.com/ggoodman/tdclient-go/tdjson"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAuth answers every prompt with fixed values and records what it was
// asked.
type fakeAuth struct {
	phone, code, key, password string
	first, last                string
	err                        error

	mu    sync.Mutex
	asked []string
}

func (f *fakeAuth) record(step string) {
	f.mu.Lock()
	f.asked = append(f.asked, step)
	f.mu.Unlock()
}

func (f *fakeAuth) steps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.asked...)
}

func (f *fakeAuth) HandleOtherDeviceConfirmation(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitOtherDeviceConfirmation) error {
	f.record("confirm:" + st.Link)
	return f.err
}

func (f *fakeAuth) HandleWaitCode(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitCode) (string, error) {
	f.record("code")
	return f.code, f.err
}

func (f *fakeAuth) HandleEncryptionKey(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitEncryptionKey) (string, error) {
	f.record("key")
	return f.key, f.err
}

func (f *fakeAuth) HandleWaitPassword(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitPassword) (string, error) {
	f.record("password")
	return f.password, f.err
}

func (f *fakeAuth) HandleWaitPhoneNumber(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitPhoneNumber) (string, error) {
	f.record("phone")
	return f.phone, f.err
}

func (f *fakeAuth) HandleWaitRegistration(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitRegistration) (string, string, error) {
	f.record("registration")
	return f.first, f.last, f.err
}

func testParams() tdjson.TdlibParameters {
	return tdjson.TdlibParameters{
		APIID:              12345,
		APIHash:            "0123456789abcdef",
		DatabaseDirectory:  "tdlib",
		SystemLanguageCode: "en",
		DeviceModel:        "test",
		ApplicationVersion: "0.1",
	}
}

// startWorker starts a worker over eng and stops it when the test ends.
func startWorker(t *testing.T, eng *memengine.Engine, opts ...Option) (*Worker, *Outcome) {
	t.Helper()
	opts = append([]Option{
		WithLogger(discardLogger()),
		WithAuthHandler(&fakeAuth{}),
		WithReceiveTimeout(20 * time.Millisecond),
		WithSendTimeout(200 * time.Millisecond),
	}, opts...)
	w := New(eng, opts...)
	run := w.Start(context.Background())
	t.Cleanup(func() {
		w.Stop()
		_, _ = run.Wait(context.Background())
	})
	return w, run
}

func waitOutcome(t *testing.T, o *Outcome) SessionState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := o.Wait(ctx)
	require.NoError(t, err, "outcome did not resolve")
	return st
}

func requireUnresolved(t *testing.T, o *Outcome) {
	t.Helper()
	st, ok := o.State()
	require.False(t, ok, "outcome resolved unexpectedly with %s", st)
}
