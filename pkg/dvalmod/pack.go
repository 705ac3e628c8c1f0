// SPDX-License-Identifier: MPL-2.0

package dvalmod

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"dval/pkg/manifest"
)

// PackOptions sets manifest attributes of a packed module. Empty fields keep
// the value from the directory's own manifest, if it has one.
type PackOptions struct {
	Name        string
	Version     string
	VersionName string
	Author      string
	MainClass   string
}

// Pack writes the contents of dir as a module archive at out. The manifest is
// always the first item of the archive. On failure no partial archive is
// left behind. Returns the absolute path of the archive.
func Pack(dir, out string, opts PackOptions) (archivePath string, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve module directory: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return "", fmt.Errorf("failed to stat module directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", absDir)
	}

	mf, err := packManifest(absDir, opts)
	if err != nil {
		return "", err
	}

	if out == "" {
		out = filepath.Base(absDir) + ".zip"
	}
	absOut, err := filepath.Abs(out)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path: %w", err)
	}

	f, err := os.Create(absOut)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(absOut)
		}
	}()

	zw := zip.NewWriter(f)
	if err = writeArchive(zw, absDir, absOut, mf); err != nil {
		_ = zw.Close()
		return "", err
	}
	if err = zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish archive: %w", err)
	}
	return absOut, nil
}

func packManifest(dir string, opts PackOptions) (*manifest.Manifest, error) {
	mf := manifest.New()

	existing, err := os.Open(filepath.Join(dir, filepath.FromSlash(manifest.Path)))
	switch {
	case err == nil:
		mf, err = manifest.Parse(existing)
		_ = existing.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", manifest.Path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to open %s: %w", manifest.Path, err)
	}

	for _, attr := range [...]struct{ key, value string }{
		{manifest.AttrName, opts.Name},
		{manifest.AttrVersion, opts.Version},
		{manifest.AttrVersionName, opts.VersionName},
		{manifest.AttrAuthor, opts.Author},
		{manifest.AttrMainClass, opts.MainClass},
	} {
		if attr.value != "" {
			mf.Set(attr.key, attr.value)
		}
	}
	return mf, nil
}

func writeArchive(zw *zip.Writer, dir, out string, mf *manifest.Manifest) error {
	w, err := zw.Create(manifest.Path)
	if err != nil {
		return fmt.Errorf("failed to create manifest entry: %w", err)
	}
	if _, err := mf.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == out {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		name := filepath.ToSlash(rel)
		if d.IsDir() || name == manifest.Path {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return fmt.Errorf("symlinks are not allowed in modules: %s", name)
		}
		return addFile(zw, path, name, d)
	})
}

func addFile(zw *zip.Writer, path, name string, d fs.DirEntry) error {
	fi, err := d.Info()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}
	header, err := zip.FileInfoHeader(fi)
	if err != nil {
		return fmt.Errorf("failed to create file header: %w", err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create file in archive: %w", err)
	}
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
