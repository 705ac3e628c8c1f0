// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"dval/internal/issue"
	"dval/pkg/dvalmod"
	"dval/pkg/manifest"
	"dval/pkg/version"
)

var (
	// ErrIsDirectory is returned for a module path naming a directory.
	ErrIsDirectory = errors.New("module path is a directory")

	// ErrUnknownFormat is returned when a file is not a module package.
	ErrUnknownFormat = errors.New("unknown module format")

	// ErrManifestMissing is returned when a package has no manifest.
	ErrManifestMissing = errors.New("module manifest missing")

	// ErrAlreadyLoaded is returned when the same file is loaded twice.
	ErrAlreadyLoaded = errors.New("module file already loaded")
)

type (
	// Option configures a Loader.
	Option func(*Loader)

	// Loader loads module packages into a registry.
	Loader struct {
		registry *dvalmod.Registry
		inst     dvalmod.Instantiator
		logger   *log.Logger
		open     dvalmod.Opener

		mu   sync.Mutex
		seen map[string]struct{}
	}

	// Failure records a file that could not be loaded.
	Failure struct {
		Path string
		Err  error
	}

	// Report is the outcome of LoadAll.
	Report struct {
		Loaded []dvalmod.Module
		Failed []Failure
	}
)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithOpener replaces the function used to open packages.
func WithOpener(open dvalmod.Opener) Option {
	return func(ld *Loader) { ld.open = open }
}

// New creates a loader registering into registry. Entry points are
// instantiated through inst.
func New(registry *dvalmod.Registry, inst dvalmod.Instantiator, opts ...Option) *Loader {
	ld := &Loader{
		registry: registry,
		inst:     inst,
		logger:   log.New(io.Discard),
		open:     dvalmod.OpenFile,
		seen:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Inspect recognizes the package at path, reads its manifest and indexes its
// entries. The module is neither registered nor opened; the caller owns it
// and must Close it.
func (ld *Loader) Inspect(path string) (*dvalmod.ArchiveModule, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat module %s: %w", path, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, ErrIsDirectory)
	}
	if err := sniff(path); err != nil {
		return nil, err
	}

	archive, err := dvalmod.OpenArchive(path, ld.open)
	if err != nil {
		return nil, err
	}
	info, err := ld.readInfo(archive)
	if err != nil {
		_ = archive.Close()
		return nil, err
	}

	m := dvalmod.NewArchiveModule(info, archive, ld.logger)
	if err := m.Load(); err != nil {
		_ = archive.Close()
		return nil, err
	}
	return m, nil
}

// Load inspects, registers and opens the package at path. A file whose
// module name is already registered is discarded. A module whose entry
// point cannot be activated stays registered; it is returned together with
// the *dvalmod.ActivationError. Every failure is logged once, here.
func (ld *Loader) Load(ctx context.Context, path string) (dvalmod.Module, error) {
	m, err := ld.load(ctx, path)
	if err != nil {
		ld.logFailure(path, m, err)
	}
	return m, err
}

func (ld *Loader) load(ctx context.Context, path string) (dvalmod.Module, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve module path %s: %w", path, err)
	}
	if ld.wasSeen(abs) {
		return nil, fmt.Errorf("%s: %w", abs, ErrAlreadyLoaded)
	}

	m, err := ld.Inspect(abs)
	if err != nil {
		return nil, err
	}
	info := m.Info()

	if err := ld.registry.Register(m); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}
	ld.markSeen(abs)

	if err := m.Open(ctx, ld.inst); err != nil {
		return m, err
	}

	ld.logger.Debugf("Module '%s' (%s) loaded.", info.Name, info.Version)
	return m, nil
}

// logFailure reports err at the level its category calls for: a repeated
// file or name is expected and at most a warning, an inert module is an
// error on a registered module, anything else abandons the file.
func (ld *Loader) logFailure(path string, m dvalmod.Module, err error) {
	switch {
	case errors.Is(err, ErrAlreadyLoaded):
		ld.logger.Debug("package already loaded", "path", path)
	case errors.Is(err, dvalmod.ErrModuleExists):
		ld.logger.Warn("module discarded", "path", path, "err", err)
	case m != nil && errors.Is(err, dvalmod.ErrActivation):
		info := m.Info()
		ld.logger.Error("module loaded inert", "module", info.Name, "entry", info.EntryPoint, "err", err)
	default:
		ld.logger.Error("module not loaded", "path", path, "err", Describe(err))
	}
}

// Describe adds remediation hints to malformed-package errors.
func Describe(err error) error {
	switch {
	case errors.Is(err, ErrUnknownFormat):
		return issue.NewErrorContext().
			WithOperation("load module").
			WithSuggestion("Build packages with 'dval module pack'").
			Wrap(err).
			BuildError()
	case errors.Is(err, ErrManifestMissing):
		return issue.NewErrorContext().
			WithOperation("load module").
			WithSuggestion("Add META-INF/MANIFEST.MF or rebuild with 'dval module pack'").
			Wrap(err).
			BuildError()
	}
	return err
}

// LoadAll loads every path independently and reports the outcome. Modules
// that registered but failed activation appear in both lists.
func (ld *Loader) LoadAll(ctx context.Context, paths []string) Report {
	var rep Report
	for _, p := range paths {
		if ctx.Err() != nil {
			rep.Failed = append(rep.Failed, Failure{Path: p, Err: ctx.Err()})
			continue
		}
		m, err := ld.Load(ctx, p)
		if m != nil {
			rep.Loaded = append(rep.Loaded, m)
		}
		if err != nil {
			rep.Failed = append(rep.Failed, Failure{Path: p, Err: err})
		}
	}
	return rep
}

func (ld *Loader) wasSeen(path string) bool {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	_, ok := ld.seen[path]
	return ok
}

func (ld *Loader) markSeen(path string) {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	ld.seen[path] = struct{}{}
}

// sniff checks the package signature without opening the archive.
func sniff(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open module %s: %w", path, err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	if binary.BigEndian.Uint32(magic[:]) != dvalmod.ArchiveMagic {
		return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	return nil
}

func (ld *Loader) readInfo(archive *dvalmod.Archive) (dvalmod.Info, error) {
	rc, err := archive.Open(manifest.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return dvalmod.Info{}, fmt.Errorf("%s: %w", archive.Path(), ErrManifestMissing)
		}
		return dvalmod.Info{}, fmt.Errorf("open manifest of %s: %w", archive.Path(), err)
	}
	defer rc.Close()

	mf, err := manifest.Parse(rc)
	if err != nil {
		return dvalmod.Info{}, fmt.Errorf("manifest of %s: %w", archive.Path(), err)
	}

	name := strings.TrimSpace(mf.Get(manifest.AttrName))
	if name == "" {
		name = dvalmod.UnnamedModule
	}

	label := mf.Get(manifest.AttrVersionName)
	raw := mf.Get(manifest.AttrVersion)
	if raw == "" {
		raw = dvalmod.DefaultVersion
	}
	v, err := version.Parse(raw, label)
	if err != nil {
		ld.logger.Warn("invalid module version, using default", "module", name, "version", raw, "err", err)
		v = version.MustParse(dvalmod.DefaultVersion, label)
	}

	return dvalmod.Info{
		Name:       name,
		Version:    v,
		Author:     mf.Get(manifest.AttrAuthor),
		EntryPoint: mf.Get(manifest.AttrMainClass),
	}, nil
}
