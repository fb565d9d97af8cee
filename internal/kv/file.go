package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a Store that keeps each key in its own JSON file under a
// directory. Writes are atomic (tmp file, fsync, rename). Update is
// serialized within the process only.
type File struct {
	root string
	mu   sync.Mutex
}

// OpenFile opens a file store rooted at dir, creating it if needed.
func OpenFile(dir string) (*File, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("kv: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("kv: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("kv: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("kv: root is not a directory: %s", abs)
	}
	return &File{root: abs}, nil
}

// Root returns the directory holding the key files.
func (f *File) Root() string { return f.root }

func (f *File) path(key string) string {
	return filepath.Join(f.root, key+".json")
}

// Get implements Store.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return f.read(key)
}

// Set implements Store.
func (f *File) Set(_ context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(key, value)
}

// Update implements Store.
func (f *File) Update(_ context.Context, key string, fn func(old []byte) ([]byte, error)) error {
	if err := checkKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	old, err := f.read(key)
	if err != nil {
		return err
	}
	next, err := fn(old)
	if err != nil {
		return err
	}
	return f.write(key, next)
}

// Close implements Store.
func (f *File) Close() error { return nil }

func (f *File) read(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv: read %s: %w", key, err)
	}
	return data, nil
}

func (f *File) write(key string, content []byte) error {
	tmp, err := os.CreateTemp(f.root, ".scraps-tmp-*")
	if err != nil {
		return fmt.Errorf("kv: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("kv: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("kv: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kv: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		return fmt.Errorf("kv: rename: %w", err)
	}
	success = true
	return nil
}
