// SPDX-License-Identifier: MPL-2.0

package dvalmod

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// ArchiveMagic is the big-endian signature of a ZIP local file header.
const ArchiveMagic uint32 = 0x504B0304

// ErrArchiveClosed is returned when reading from a released archive.
var ErrArchiveClosed = errors.New("archive closed")

type (
	// Source is a random-access view of a module package.
	Source interface {
		io.ReaderAt
		io.Closer
		Size() int64
	}

	// Opener opens the package at path for random access.
	Opener func(path string) (Source, error)

	// Archive is an open ZIP package. The handle is shared by every entry of
	// the module built on it and released once, by Close.
	Archive struct {
		path string

		mu     sync.RWMutex
		src    Source
		reader *zip.Reader
	}

	// ArchiveModule is a Module backed by an Archive. Entries are indexed from
	// the central directory; content is read lazily through the shared handle.
	ArchiveModule struct {
		*Base
		archive *Archive
		loadMu  sync.Mutex
	}

	fileSource struct {
		*os.File
		size int64
	}
)

// OpenFile is the default Opener backed by the filesystem.
func OpenFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileSource{File: f, size: st.Size()}, nil
}

func (f *fileSource) Size() int64 { return f.size }

// OpenArchive opens the package at path with open (OpenFile when nil).
func OpenArchive(path string, open Opener) (*Archive, error) {
	if open == nil {
		open = OpenFile
	}
	src, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("open package %s: %w", path, err)
	}
	zr, err := zip.NewReader(src, src.Size())
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("read package %s: %w", path, err)
	}
	return &Archive{path: path, src: src, reader: zr}, nil
}

// Path returns the package location.
func (a *Archive) Path() string { return a.path }

// Files returns the package's directory. Nil after Close.
func (a *Archive) Files() []*zip.File {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.reader == nil {
		return nil
	}
	return a.reader.File
}

// Open opens one item by its archive path.
func (a *Archive) Open(name string) (io.ReadCloser, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.reader == nil {
		return nil, ErrArchiveClosed
	}
	f, err := a.reader.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Has reports whether the package contains name.
func (a *Archive) Has(name string) bool {
	rc, err := a.Open(name)
	if err != nil {
		return false
	}
	_ = rc.Close()
	return true
}

// Close releases the package handle. Further calls are no-ops.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.src == nil {
		return nil
	}
	err := a.src.Close()
	a.src, a.reader = nil, nil
	if err != nil && !errors.Is(err, fs.ErrClosed) {
		return fmt.Errorf("close package %s: %w", a.path, err)
	}
	return nil
}

// opener returns an OpenFunc for f that fails once the archive is released.
func (a *Archive) opener(f *zip.File) OpenFunc {
	return func() (io.ReadCloser, error) {
		a.mu.RLock()
		defer a.mu.RUnlock()
		if a.reader == nil {
			return nil, ErrArchiveClosed
		}
		return f.Open()
	}
}

// NewArchiveModule creates a module for info backed by archive. The module
// takes ownership of the archive and releases it on Close.
func NewArchiveModule(info Info, archive *Archive, logger *log.Logger) *ArchiveModule {
	info.Source = archive.Path()
	return &ArchiveModule{Base: NewBase(info, logger), archive: archive}
}

// Archive returns the backing package.
func (m *ArchiveModule) Archive() *Archive { return m.archive }

// Load indexes the package's items. Only the directory is read; directory
// markers and META-INF/ paths are skipped.
func (m *ArchiveModule) Load() error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if m.State() != StateNotLoaded {
		return fmt.Errorf("load %q: already %s", m.info.Name, m.State())
	}

	files := m.archive.Files()
	if files == nil {
		return fmt.Errorf("load %q: %w", m.info.Name, ErrArchiveClosed)
	}
	for _, f := range files {
		if !IsIndexable(f.Name) {
			continue
		}
		name, kind := LogicalName(f.Name)
		m.index.Add(NewEntry(name, kind, m.archive.opener(f)))
	}

	m.MarkLoaded()
	return nil
}

// Close stops the entry point and releases the package handle.
func (m *ArchiveModule) Close(ctx context.Context) error {
	return errors.Join(m.Base.Close(ctx), m.archive.Close())
}
