// Package authfile answers authorization prompts from files dropped into a
// directory, for headless deployments where nobody sits at a console.
//
// For session N the handler waits for a file named N.<step> in the directory,
// reads its trimmed contents as the answer and removes it. Steps are:
//
//	N.phone         phone number
//	N.code          authentication code
//	N.password      two-step verification password
//	N.key           database encryption key
//	N.registration  "first,last" for a new account
//
// The other-device confirmation link is written to N.link.
package authfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/ggoodman/tdclient-go/authconsole"
	"github.com/ggoodman/tdclient-go/tdjson"
)

const (
	StepPhone        = "phone"
	StepCode         = "code"
	StepPassword     = "password"
	StepKey          = "key"
	StepRegistration = "registration"
	StepLink         = "link"
)

var (
	ErrWatcherClosed       = errors.New("authfile: watcher closed")
	ErrInvalidRegistration = errors.New(`authfile: registration must be "first,last"`)
)

// Option customizes a Handler.
type Option func(*Handler)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// Handler implements the worker's AuthHandler over a directory.
type Handler struct {
	dir string
	log *slog.Logger
}

// New returns a Handler watching dir, creating it if needed.
func New(dir string, opts ...Option) (*Handler, error) {
	h := &Handler{dir: filepath.Clean(dir), log: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	if err := os.MkdirAll(h.dir, 0o700); err != nil {
		return nil, fmt.Errorf("authfile: create %s: %w", h.dir, err)
	}
	return h, nil
}

// Path returns the file consulted for step of session id.
func (h *Handler) Path(id tdjson.SessionID, step string) string {
	return filepath.Join(h.dir, fmt.Sprintf("%d.%s", id, step))
}

// take consumes the answer file. An empty file is treated as not yet written.
func take(name string) (string, bool, error) {
	b, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("authfile: read %s: %w", name, err)
	}
	v := strings.TrimSpace(string(b))
	if v == "" {
		return "", false, nil
	}
	if err := os.Remove(name); err != nil {
		return "", false, fmt.Errorf("authfile: remove %s: %w", name, err)
	}
	return v, true, nil
}

// await blocks until the answer for step arrives or ctx ends.
func (h *Handler) await(ctx context.Context, id tdjson.SessionID, step string) (string, error) {
	name := h.Path(id, step)

	// Watch before the first look so a file created in between is not missed.
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("authfile: watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(h.dir); err != nil {
		return "", fmt.Errorf("authfile: watch %s: %w", h.dir, err)
	}

	if v, ok, err := take(name); err != nil || ok {
		return v, err
	}
	h.log.InfoContext(ctx, "authfile.await", slog.Int("session_id", int(id)), slog.String("path", name))

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return "", ErrWatcherClosed
			}
			if filepath.Clean(ev.Name) != name || !(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				continue
			}
			if v, ok, err := take(name); err != nil || ok {
				return v, err
			}
		case err, ok := <-w.Errors:
			if !ok {
				return "", ErrWatcherClosed
			}
			return "", fmt.Errorf("authfile: watch %s: %w", h.dir, err)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (h *Handler) HandleOtherDeviceConfirmation(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitOtherDeviceConfirmation) error {
	name := h.Path(id, StepLink)
	if err := os.WriteFile(name, []byte(st.Link+"\n"), 0o600); err != nil {
		return fmt.Errorf("authfile: write %s: %w", name, err)
	}
	h.log.InfoContext(ctx, "authfile.link_written", slog.Int("session_id", int(id)), slog.String("path", name))
	return nil
}

func (h *Handler) HandleWaitCode(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitCode) (string, error) {
	return h.await(ctx, id, StepCode)
}

func (h *Handler) HandleEncryptionKey(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitEncryptionKey) (string, error) {
	return h.await(ctx, id, StepKey)
}

func (h *Handler) HandleWaitPassword(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitPassword) (string, error) {
	return h.await(ctx, id, StepPassword)
}

func (h *Handler) HandleWaitPhoneNumber(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitPhoneNumber) (string, error) {
	return h.await(ctx, id, StepPhone)
}

func (h *Handler) HandleWaitRegistration(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitRegistration) (string, string, error) {
	v, err := h.await(ctx, id, StepRegistration)
	if err != nil {
		return "", "", err
	}
	first, last, ok := authconsole.SplitName(v)
	if !ok {
		return "", "", fmt.Errorf("%w: got %q", ErrInvalidRegistration, v)
	}
	return first, last, nil
}
