package tdclient

import (
	"log/slog"
	"time"
)

// Option configures a Worker.
type Option func(*Worker)

// WithAuthHandler sets the credential strategy. The default prompts on the
// console.
func WithAuthHandler(h AuthHandler) Option {
	return func(w *Worker) {
		if h != nil {
			w.auth = h
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

// WithConfig replaces every tunable at once. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(w *Worker) { w.cfg = cfg.withDefaults() }
}

// WithReceiveTimeout sets how long each engine receive may block.
func WithReceiveTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.cfg.ReceiveTimeout = d
		}
	}
}

// WithSendTimeout sets how long a channel hand-off may wait for room.
func WithSendTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.cfg.SendTimeout = d
		}
	}
}
