// Package storage manages the upload directory: sanitized names, saving,
// listing, and serving stored images.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Store is a flat directory of uploaded images.
type Store struct {
	dir string
}

// New creates the directory if needed and returns a store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SecureName reduces an untrusted filename to a safe flat name: path
// components are stripped, disallowed characters collapse to underscores,
// and leading dots go away so no name can hide or traverse. An empty result
// means the name was unusable.
func SecureName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// Save writes r under the given (already sanitized) name, replacing any
// existing file. Concurrent saves to the same name are last-writer-wins.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// List returns the stored filenames whose extension is in allowed, sorted.
func (s *Store) List(allowed []string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, a := range allowed {
			if ext == a {
				names = append(names, e.Name())
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Open opens a stored file for reading.
func (s *Store) Open(name string) (*os.File, error) {
	return os.Open(filepath.Join(s.dir, name))
}

// Path returns the on-disk path of a stored name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}
