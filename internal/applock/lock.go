// SPDX-License-Identifier: MPL-2.0

package applock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// OutcomeUnlocked means no lock could be established; the caller
	// continues without single-instance protection.
	OutcomeUnlocked Outcome = iota
	// OutcomeServer means this process now holds the lock.
	OutcomeServer
	// OutcomeRunning means another instance with the same token is running.
	OutcomeRunning
)

const (
	// DefaultHost is the loopback address used for binding and probing.
	DefaultHost = "127.0.0.1"
	// DefaultProbeTimeout bounds the client handshake.
	DefaultProbeTimeout = time.Second
	// DefaultMaxBindAttempts is the total number of bind attempts.
	DefaultMaxBindAttempts = 5
)

var (
	// ErrInvalidToken is returned for empty tokens or tokens longer than
	// MaxTokenLen bytes.
	ErrInvalidToken = errors.New("invalid lock token")

	// ErrBindExhausted is returned when every bind attempt hit a port conflict.
	ErrBindExhausted = errors.New("no lock port available")
)

type (
	// Outcome is the result of Acquire.
	Outcome int

	// Option configures a Lock.
	Option func(*Lock)

	// Status describes what Probe found.
	Status struct {
		Marker  string `json:"marker" toml:"marker"`
		Port    int    `json:"port,omitempty" toml:"port,omitempty"`
		Known   bool   `json:"known" toml:"known"`
		Running bool   `json:"running" toml:"running"`
	}

	// Lock coordinates instances sharing a token. A Lock is used by one
	// process; Acquire and Release may be called from any goroutine.
	Lock struct {
		token        string
		dir          string
		host         string
		probeTimeout time.Duration
		maxBind      int
		logger       *log.Logger
		listen       func(network, address string) (net.Listener, error)

		mu     sync.Mutex
		ln     net.Listener
		marker *marker
		port   int
		done   chan struct{}
	}
)

// WithDir sets the directory holding the marker file. Defaults to os.TempDir().
func WithDir(dir string) Option {
	return func(l *Lock) {
		if dir != "" {
			l.dir = dir
		}
	}
}

// WithHost sets the loopback address to bind and probe.
func WithHost(host string) Option {
	return func(l *Lock) {
		if host != "" {
			l.host = host
		}
	}
}

// WithProbeTimeout bounds the client handshake and server-side reads.
func WithProbeTimeout(d time.Duration) Option {
	return func(l *Lock) {
		if d > 0 {
			l.probeTimeout = d
		}
	}
}

// WithMaxBindAttempts sets the total number of bind attempts.
func WithMaxBindAttempts(n int) Option {
	return func(l *Lock) {
		if n > 0 {
			l.maxBind = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Lock) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// withListen replaces net.Listen.
func withListen(listen func(network, address string) (net.Listener, error)) Option {
	return func(l *Lock) { l.listen = listen }
}

// New creates a lock for token.
func New(token string, opts ...Option) (*Lock, error) {
	if token == "" || len(token) > MaxTokenLen {
		return nil, fmt.Errorf("%q: %w", token, ErrInvalidToken)
	}
	l := &Lock{
		token:        token,
		dir:          os.TempDir(),
		host:         DefaultHost,
		probeTimeout: DefaultProbeTimeout,
		maxBind:      DefaultMaxBindAttempts,
		logger:       log.New(io.Discard),
		listen:       net.Listen,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeServer:
		return "server"
	case OutcomeRunning:
		return "running"
	default:
		return "unlocked"
	}
}

// MarkerPath returns the location of the marker file.
func (l *Lock) MarkerPath() string {
	return filepath.Join(l.dir, l.token+MarkerSuffix)
}

// Port returns the bound port while the lock is held, otherwise 0.
func (l *Lock) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

// Acquire decides whether this process may run. OutcomeRunning means another
// instance confirmed the token. OutcomeUnlocked is returned together with
// the reason when no port could be bound; the process may still continue.
func (l *Lock) Acquire(ctx context.Context) (Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln != nil {
		return OutcomeServer, nil
	}

	mk, err := openMarker(l.MarkerPath())
	if err != nil {
		l.logger.Warn("lock marker unavailable, continuing unlocked", "path", l.MarkerPath(), "err", err)
		return OutcomeUnlocked, err
	}

	preferred := 0
	if port, ok := mk.port(); ok {
		running, err := l.handshake(ctx, port)
		if err != nil {
			l.logger.Debug("lock probe could not confirm a peer", "port", port, "err", err)
		}
		if running {
			_ = mk.close()
			return OutcomeRunning, nil
		}
		preferred = port
	}

	ln, port, err := l.bind(preferred)
	if err != nil {
		_ = mk.close()
		l.logger.Error("single-instance lock unavailable, continuing unlocked", "err", err)
		return OutcomeUnlocked, err
	}
	if err := mk.store(port); err != nil {
		l.logger.Warn("lock port not persisted", "port", port, "err", err)
	}

	l.ln, l.marker, l.port = ln, mk, port
	l.done = make(chan struct{})
	go l.serve(ln, l.done)

	l.logger.Debug("lock acquired", "port", port)
	return OutcomeServer, nil
}

// Release stops serving and closes the marker. Safe to call without a
// successful Acquire and more than once.
func (l *Lock) Release() error {
	l.mu.Lock()
	ln, mk, done := l.ln, l.marker, l.done
	l.ln, l.marker, l.done, l.port = nil, nil, nil, 0
	l.mu.Unlock()

	if ln == nil {
		return nil
	}
	err := ln.Close()
	<-done
	if mk != nil {
		err = errors.Join(err, mk.close())
	}
	return err
}

// Probe reports whether an instance holding the token answers on the port
// recorded in the marker. It never binds and never creates the marker.
func (l *Lock) Probe(ctx context.Context) (Status, error) {
	st := Status{Marker: l.MarkerPath()}
	port, ok := readMarker(st.Marker)
	if !ok {
		return st, nil
	}
	st.Port, st.Known = port, true

	running, err := l.handshake(ctx, port)
	st.Running = running
	return st, err
}
