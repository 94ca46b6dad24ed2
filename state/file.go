package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File is a file-backed Store. Saves write a temporary file in the same
// directory and rename it over the target, so readers never see a torn document.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a file-backed store. The directory containing path
// will be created on the first Save if it does not exist.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the document location.
func (f *File) Path() string {
	return f.path
}

// Load reads the document. A missing file yields the empty state.
func (f *File) Load(_ context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{Watches: []Watch{}}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("state/file: read %s: %w", f.path, err)
	}

	s, err := Decode(data)
	if err != nil {
		return State{}, fmt.Errorf("state/file: %s: %w", f.path, err)
	}
	return s, nil
}

// Save atomically replaces the document with s.
func (f *File) Save(_ context.Context, s State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("state/file: encode: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state/file: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("state/file: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("state/file: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("state/file: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state/file: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("state/file: chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("state/file: rename: %w", err)
	}
	return nil
}
