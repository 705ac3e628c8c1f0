// SPDX-License-Identifier: MPL-2.0

// Package manifest reads and writes module manifests.
//
// A manifest is the main section of a JAR-style META-INF/MANIFEST.MF file:
// "Key: Value" lines, where a line starting with a single space continues the
// previous value. Lines starting with '#' or '!' are comments. Parsing stops
// at the first blank line; per-entry sections are not used by dval.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Path is the archive path of the manifest inside a module package.
const Path = "META-INF/MANIFEST.MF"

// Attribute names consumed by the module loader.
const (
	AttrName        = "Name"
	AttrVersion     = "Version"
	AttrVersionName = "Version-Name"
	AttrAuthor      = "Author"
	AttrMainClass   = "Main-Class"
	AttrManifestVer = "Manifest-Version"
)

// ErrMalformed is returned for lines that are neither attributes, comments
// nor continuations.
var ErrMalformed = errors.New("malformed manifest")

// Manifest is an ordered set of main-section attributes.
// Lookups are case-insensitive, as in the JAR format.
type Manifest struct {
	keys   []string
	values map[string]string
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{values: make(map[string]string)}
}

// Parse reads the main section of a manifest from r.
func Parse(r io.Reader) (*Manifest, error) {
	m := New()
	sc := bufio.NewScanner(r)

	last := ""
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		switch {
		case line == "":
			return m, nil
		case line[0] == '#' || line[0] == '!':
			continue
		case line[0] == ' ':
			if last == "" {
				return nil, fmt.Errorf("%w: line %d: continuation without attribute", ErrMalformed, lineNo)
			}
			m.values[canonical(last)] += line[1:]
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformed, lineNo, line)
		}
		m.Set(key, strings.TrimPrefix(value, " "))
		last = key
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return m, nil
}

// Get returns the trimmed value for key, or "" if absent.
func (m *Manifest) Get(key string) string {
	return strings.TrimSpace(m.values[canonical(key)])
}

// Lookup returns the value for key and whether it was present.
func (m *Manifest) Lookup(key string) (string, bool) {
	v, ok := m.values[canonical(key)]
	return strings.TrimSpace(v), ok
}

// Set stores value under key, preserving first-insertion order.
func (m *Manifest) Set(key, value string) {
	c := canonical(key)
	if _, ok := m.values[c]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[c] = value
}

// Keys returns attribute names in insertion order.
func (m *Manifest) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// WriteTo encodes the manifest, wrapping lines at 72 bytes.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	if _, ok := m.values[canonical(AttrManifestVer)]; !ok {
		writeAttr(&sb, AttrManifestVer, "1.0")
	}
	for _, k := range m.keys {
		writeAttr(&sb, k, m.values[canonical(k)])
	}
	sb.WriteString("\r\n")

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

func writeAttr(sb *strings.Builder, key, value string) {
	line := key + ": " + value
	const width = 72
	for len(line) > width {
		// Never split a UTF-8 sequence across lines.
		cut := width
		for cut > 1 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		sb.WriteString(line[:cut])
		sb.WriteString("\r\n")
		line = " " + line[cut:]
	}
	sb.WriteString(line)
	sb.WriteString("\r\n")
}

func canonical(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
