// SPDX-License-Identifier: MPL-2.0

package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"go.starlark.net/starlark"

	"dval/internal/applock"
	"dval/internal/config"
	"dval/internal/loader"
	"dval/internal/resolver"
	"dval/internal/watch"
	"dval/pkg/dvalmod"
)

const (
	// StateCreated is the state after New; only Start is allowed.
	StateCreated State = iota
	// StateStarting covers lock acquisition and module loading.
	StateStarting
	// StateRunning means modules are loaded and Run may block.
	StateRunning
	// StateStopping covers shutdown hooks, module close and lock release.
	StateStopping
	// StateStopped is terminal.
	StateStopped
)

var (
	// ErrAnotherInstance is returned by Start when an instance with the same
	// token answered the lock probe.
	ErrAnotherInstance = errors.New("another instance is running")

	// ErrNoModules is returned by Start when no module path was configured
	// or given.
	ErrNoModules = errors.New("no module paths configured")

	// ErrInvalidState is returned when a lifecycle method is called out of
	// order.
	ErrInvalidState = errors.New("invalid host state")
)

type (
	// State is the lifecycle position of a Host.
	State int32

	// ShutdownHook runs at the start of Shutdown.
	ShutdownHook func(ctx context.Context) error

	// Option configures a Host.
	Option func(*Host)

	// Host owns one dval runtime.
	Host struct {
		cfg      *config.Config
		logger   *log.Logger
		builtins starlark.StringDict
		natives  map[string]resolver.NativeFactory

		registry *dvalmod.Registry
		resolver *resolver.Resolver
		loader   *loader.Loader
		lock     *applock.Lock

		state atomic.Int32

		mu    sync.Mutex
		hooks []ShutdownHook
	}
)

// WithLogger sets the root logger; components log under their own prefix.
func WithLogger(l *log.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithBuiltins exposes extra predeclared values to module code.
func WithBuiltins(b starlark.StringDict) Option {
	return func(h *Host) { h.builtins = b }
}

// WithNative registers a host-provided entry point under name.
func WithNative(name string, factory resolver.NativeFactory) Option {
	return func(h *Host) { h.natives[name] = factory }
}

// New builds a host from cfg. Nothing is loaded or bound until Start.
func New(cfg *config.Config, opts ...Option) (*Host, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	h := &Host{
		cfg:     cfg,
		logger:  log.New(io.Discard),
		natives: make(map[string]resolver.NativeFactory),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.registry = dvalmod.NewRegistry()
	h.resolver = resolver.New(h.registry,
		resolver.WithLogger(h.logger.WithPrefix("resolver")),
		resolver.WithBuiltins(h.builtins),
	)
	for name, factory := range h.natives {
		if err := h.resolver.RegisterNative(name, factory); err != nil {
			return nil, err
		}
	}
	h.loader = loader.New(h.registry, h.resolver,
		loader.WithLogger(h.logger.WithPrefix("loader")),
	)

	if cfg.Is(config.KeyLockEnabled) {
		lock, err := NewLock(cfg, h.logger)
		if err != nil {
			return nil, err
		}
		h.lock = lock
	}
	return h, nil
}

// NewLock builds the single-instance lock described by cfg.
func NewLock(cfg *config.Config, logger *log.Logger) (*applock.Lock, error) {
	opts := []applock.Option{
		applock.WithHost(cfg.Lock.Host),
		applock.WithProbeTimeout(cfg.Lock.ProbeTimeout),
		applock.WithMaxBindAttempts(cfg.Lock.MaxBindAttempts),
	}
	if logger != nil {
		opts = append(opts, applock.WithLogger(logger.WithPrefix("applock")))
	}
	if cfg.Lock.Dir != "" {
		opts = append(opts, applock.WithDir(cfg.Lock.Dir))
	}
	return applock.New(cfg.App.Name, opts...)
}

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// State returns the current lifecycle state.
func (h *Host) State() State { return State(h.state.Load()) }

// Registry returns the registry modules are loaded into.
func (h *Host) Registry() *dvalmod.Registry { return h.registry }

// Resolver returns the resolver serving module code and resources.
func (h *Host) Resolver() *resolver.Resolver { return h.resolver }

// Lock returns nil when the lock is disabled.
func (h *Host) Lock() *applock.Lock { return h.lock }

// AddShutdownHook registers fn to run before modules are closed. Hooks run
// in registration order.
func (h *Host) AddShutdownHook(fn ShutdownHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, fn)
}

// Start acquires the lock and loads the configured modules plus extra. Files
// that fail to load are listed in the report; they never fail Start. The
// returned error is ErrAnotherInstance, ErrNoModules or a discovery error.
func (h *Host) Start(ctx context.Context, extra ...string) (loader.Report, error) {
	if !h.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return loader.Report{}, fmt.Errorf("start in state %s: %w", h.State(), ErrInvalidState)
	}

	specs := append(append([]string{}, h.cfg.Modules.Paths...), extra...)
	if len(specs) == 0 {
		h.state.Store(int32(StateStopped))
		return loader.Report{}, ErrNoModules
	}

	if h.lock != nil {
		outcome, err := h.lock.Acquire(ctx)
		switch outcome {
		case applock.OutcomeRunning:
			h.state.Store(int32(StateStopped))
			return loader.Report{}, ErrAnotherInstance
		case applock.OutcomeUnlocked:
			h.logger.Warn("running without single-instance lock", "err", err)
		}
	}

	paths, err := loader.Discover(specs)
	if err != nil {
		h.fail()
		return loader.Report{}, err
	}
	if len(paths) == 0 {
		h.logger.Warn("module paths matched no packages", "paths", specs)
	}

	rep := h.loader.LoadAll(ctx, paths)
	h.logger.Info("modules loaded", "loaded", len(rep.Loaded), "failed", len(rep.Failed))

	h.state.Store(int32(StateRunning))
	return rep, nil
}

// fail releases what Start acquired and marks the host stopped.
func (h *Host) fail() {
	if h.lock != nil {
		if err := h.lock.Release(); err != nil {
			h.logger.Warn("release lock", "err", err)
		}
	}
	h.state.Store(int32(StateStopped))
}

// Run blocks until ctx is done. With modules.watch set it loads packages
// that appear in the watch directories meanwhile.
func (h *Host) Run(ctx context.Context) error {
	if h.State() != StateRunning {
		return fmt.Errorf("run in state %s: %w", h.State(), ErrInvalidState)
	}
	if !h.cfg.Is(config.KeyModulesWatch) {
		<-ctx.Done()
		return nil
	}

	dirs := h.watchDirs()
	if len(dirs) == 0 {
		h.logger.Warn("module watching enabled but no directory to watch")
		<-ctx.Done()
		return nil
	}
	w, err := watch.New(watch.Config{
		Dirs:     dirs,
		Debounce: h.cfg.Modules.Debounce,
		OnChange: h.loadChanged,
		Logger:   h.logger.WithPrefix("watch"),
	})
	if err != nil {
		return err
	}
	h.logger.Info("watching for new modules", "dirs", w.Dirs())
	return w.Run(ctx)
}

// watchDirs returns modules.watch_dirs, or the configured module paths that
// are directories.
func (h *Host) watchDirs() []string {
	if len(h.cfg.Modules.WatchDirs) > 0 {
		return h.cfg.Modules.WatchDirs
	}
	var dirs []string
	for _, p := range h.cfg.Modules.Paths {
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			dirs = append(dirs, p)
		}
	}
	return dirs
}

func (h *Host) loadChanged(ctx context.Context, paths []string) {
	for _, p := range paths {
		// Failures are logged by the loader.
		if m, err := h.loader.Load(ctx, p); err == nil {
			h.logger.Info("module added", "module", m.Info().Name, "version", m.Info().Version)
		}
	}
}

// Shutdown runs the hooks, closes every module and releases the lock. It is
// safe to call more than once; later calls return nil.
func (h *Host) Shutdown(ctx context.Context) error {
	for {
		s := h.State()
		if s == StateStopping || s == StateStopped {
			return nil
		}
		if h.state.CompareAndSwap(int32(s), int32(StateStopping)) {
			break
		}
	}
	defer h.state.Store(int32(StateStopped))

	h.mu.Lock()
	hooks := append([]ShutdownHook(nil), h.hooks...)
	h.mu.Unlock()

	var errs []error
	for _, fn := range hooks {
		if err := fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown hook: %w", err))
		}
	}
	if err := h.registry.CloseAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if h.lock != nil {
		if err := h.lock.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release lock: %w", err))
		}
	}
	h.logger.Debug("host stopped")
	return errors.Join(errs...)
}
