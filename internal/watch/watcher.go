// SPDX-License-Identifier: MPL-2.0

// Package watch reports module packages that appear in watched directories.
//
// Events are debounced: a package copied in several writes is reported once,
// after the directory has been quiet for the debounce period.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultDebounce is the quiet period used when Config.Debounce is unset.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultPattern matches module packages by base name.
	DefaultPattern = "*.{zip,jar}"
)

var (
	// ErrNoDirs is returned by New when Config.Dirs is empty.
	ErrNoDirs = errors.New("watch: no directories")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watch: Run called more than once")
)

// ignored base names: editor swap files, partial downloads and OS metadata.
var ignored = []string{
	".*",
	"*~",
	"*.swp",
	"*.part",
	"*.crdownload",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Dirs are the directories to watch. Subdirectories are not watched.
		Dirs []string

		// Pattern is a doublestar pattern matched against the base name of
		// each changed file. Empty means DefaultPattern.
		Pattern string

		// Debounce is the quiet period before OnChange fires.
		Debounce time.Duration

		// OnChange receives the absolute paths of the packages created or
		// rewritten since the last call, sorted. Remove and rename-away
		// events are not reported.
		OnChange func(ctx context.Context, changed []string)

		Logger *log.Logger
	}

	// Watcher monitors module directories. Run must be called once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		dirs     []string
		pattern  string
		debounce time.Duration
		logger   *log.Logger
		started  atomic.Bool
	}
)

// New validates cfg and registers every directory with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Dirs) == 0 {
		return nil, ErrNoDirs
	}

	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("watch: invalid pattern %q", pattern)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		pattern:  pattern,
		debounce: debounce,
		logger:   logger,
	}
	for _, d := range cfg.Dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			abs = d
		}
		if slices.Contains(w.dirs, abs) {
			continue
		}
		if err := fsw.Add(abs); err != nil {
			if closeErr := fsw.Close(); closeErr != nil {
				logger.Warn("close after init failure", "err", closeErr)
			}
			return nil, fmt.Errorf("watch: add directory %q: %w", abs, err)
		}
		w.dirs = append(w.dirs, abs)
	}
	return w, nil
}

// Dirs returns the absolute watched directories.
func (w *Watcher) Dirs() []string {
	return slices.Clone(w.dirs)
}

// Run blocks until ctx is done, dispatching debounced callbacks. It returns
// nil on cancellation and an error when the watcher breaks. OnChange runs on
// the event loop, so callbacks never overlap; events arriving meanwhile are
// queued by fsnotify and reported next.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "err", err)
		}
	}()

	var (
		pending = make(map[string]struct{})
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-fire:
			fire = nil
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			if len(changed) > 0 && w.cfg.OnChange != nil {
				w.logger.Debug("module packages changed", "count", len(changed))
				w.cfg.OnChange(ctx, changed)
			}

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Write) {
				continue
			}
			if !w.matches(evt.Name) {
				continue
			}
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// matches reports whether path is a regular package file in a watched
// directory.
func (w *Watcher) matches(path string) bool {
	if !slices.Contains(w.dirs, filepath.Dir(path)) {
		return false
	}
	base := filepath.Base(path)
	for _, pat := range ignored {
		if ok, _ := doublestar.Match(pat, base); ok {
			return false
		}
	}
	if ok, _ := doublestar.Match(w.pattern, base); !ok {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}
