// SPDX-License-Identifier: MPL-2.0

package applock

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// MarkerSuffix is appended to the token to name the marker file.
const MarkerSuffix = ".port.tmp"

type marker struct {
	f *os.File
}

func openMarker(path string) (*marker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock marker: %w", err)
	}
	return &marker{f: f}, nil
}

// port returns the recorded port. A short or out-of-range record means no
// port is known.
func (m *marker) port() (int, bool) {
	var buf [4]byte
	if _, err := m.f.ReadAt(buf[:], 0); err != nil {
		return 0, false
	}
	return decodePort(buf[:])
}

func (m *marker) store(port int) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(port))
	if _, err := m.f.WriteAt(buf[:], 0); err != nil {
		return fmt.Errorf("write lock marker: %w", err)
	}
	return nil
}

func (m *marker) close() error {
	return m.f.Close()
}

// readMarker reads the recorded port without creating the file.
func readMarker(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	return decodePort(data)
}

func decodePort(data []byte) (int, bool) {
	if len(data) < 4 {
		return 0, false
	}
	p := binary.BigEndian.Uint32(data[:4])
	if p == 0 || p > 65535 {
		return 0, false
	}
	return int(p), true
}
