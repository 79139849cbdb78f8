package authconsole

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ggoodman/tdclient-go/tdjson"
	"golang.org/x/term"
)

// ErrNoInput is returned once the input stream is exhausted.
var ErrNoInput = errors.New("authconsole: input closed")

type readResult struct {
	line string
	err  error
}

type readRequest struct {
	secret bool
	resp   chan readResult
}

// Handler prompts for authorization values on a console.
type Handler struct {
	r io.Reader
	w io.Writer

	// mu serializes whole prompts so answers cannot be attributed to the wrong
	// session.
	mu sync.Mutex

	startOnce sync.Once
	reqs      chan readRequest
	br        *bufio.Reader
	termFD    int
}

// New constructs a Handler reading os.Stdin and prompting on os.Stderr.
func New(opts ...Option) *Handler {
	h := &Handler{r: os.Stdin, w: os.Stderr, termFD: -1}
	for _, opt := range opts {
		opt(h)
	}
	if f, ok := h.r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		h.termFD = int(f.Fd())
	}
	return h
}

// reader owns the input stream. Reads cannot be interrupted, so a read
// abandoned by a cancelled prompt completes in the background and its answer
// is discarded.
func (h *Handler) reader() {
	for req := range h.reqs {
		req.resp <- h.read(req.secret)
	}
}

func (h *Handler) read(secret bool) readResult {
	if secret && h.termFD >= 0 {
		b, err := term.ReadPassword(h.termFD)
		fmt.Fprintln(h.w)
		if err != nil {
			return readResult{err: fmt.Errorf("authconsole: read secret: %w", err)}
		}
		return readResult{line: strings.TrimSpace(string(b))}
	}
	line, err := h.br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line != "" {
				return readResult{line: strings.TrimSpace(line)}
			}
			return readResult{err: ErrNoInput}
		}
		return readResult{err: fmt.Errorf("authconsole: read: %w", err)}
	}
	return readResult{line: strings.TrimSpace(line)}
}

func (h *Handler) readLine(ctx context.Context, secret bool) (string, error) {
	h.startOnce.Do(func() {
		h.br = bufio.NewReader(h.r)
		h.reqs = make(chan readRequest)
		go h.reader()
	})
	req := readRequest{secret: secret, resp: make(chan readResult, 1)}
	select {
	case h.reqs <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case res := <-req.resp:
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ask prompts once and returns the trimmed answer, which may be empty. The
// engine rejects an empty value with a repeated wait state.
func (h *Handler) ask(ctx context.Context, id tdjson.SessionID, prompt string, secret bool) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.w, "[session %d] %s: ", id, prompt)
	return h.readLine(ctx, secret)
}

func (h *Handler) HandleOtherDeviceConfirmation(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitOtherDeviceConfirmation) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.w, "[session %d] confirm this login on another device: %s\n", id, st.Link)
	return err
}

func (h *Handler) HandleWaitCode(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitCode) (string, error) {
	prompt := "authentication code"
	if st.CodeInfo.PhoneNumber != "" {
		prompt += " sent to " + st.CodeInfo.PhoneNumber
	}
	return h.ask(ctx, id, prompt, false)
}

func (h *Handler) HandleEncryptionKey(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitEncryptionKey) (string, error) {
	prompt := "new database encryption key"
	if st.IsEncrypted {
		prompt = "database encryption key"
	}
	return h.ask(ctx, id, prompt, true)
}

func (h *Handler) HandleWaitPassword(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitPassword) (string, error) {
	prompt := "password"
	if st.PasswordHint != "" {
		prompt += " (hint: " + st.PasswordHint + ")"
	}
	return h.ask(ctx, id, prompt, true)
}

func (h *Handler) HandleWaitPhoneNumber(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitPhoneNumber) (string, error) {
	return h.ask(ctx, id, "phone number", false)
}

// HandleWaitRegistration asks for "first,last" until both parts are given.
// The answer is split on the first comma.
func (h *Handler) HandleWaitRegistration(ctx context.Context, id tdjson.SessionID, st *tdjson.AuthorizationStateWaitRegistration) (string, string, error) {
	for {
		line, err := h.ask(ctx, id, "first and last name (first,last)", false)
		if err != nil {
			return "", "", err
		}
		if first, last, ok := SplitName(line); ok {
			return first, last, nil
		}
	}
}

// SplitName splits "first,last" on the first comma. Both parts must be
// non-empty after trimming.
func SplitName(s string) (first, last string, ok bool) {
	first, last, found := strings.Cut(s, ",")
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if !found || first == "" || last == "" {
		return "", "", false
	}
	return first, last, true
}
