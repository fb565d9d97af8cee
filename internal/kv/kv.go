// Package kv defines the durable key-value boundary the local store and the
// sync engine persist through. Values are opaque bytes; the JSON helpers
// store lists of records under a single key.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

// Drivers.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

// Store is a durable key-value store.
type Store interface {
	// Get returns the value stored under key, or nil if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Update atomically replaces the value under key with fn's result.
	// fn receives nil when the key is absent.
	Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error
	Close() error
}

var keyRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

func checkKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("kv: invalid key %q", key)
	}
	return nil
}

// Open opens a store for the given driver. For DriverSQLite path is the
// database file; for DriverFile it is a directory.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(path)
	case DriverFile:
		return OpenFile(path)
	default:
		return nil, fmt.Errorf("kv: unknown driver %q", driver)
	}
}

// GetList decodes the JSON list stored under key. An absent key yields an
// empty list.
func GetList[T any](ctx context.Context, s Store, key string) ([]T, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return decodeList[T](key, raw)
}

// SetList stores items as a JSON list under key.
func SetList[T any](ctx context.Context, s Store, key string, items []T) error {
	raw, err := encodeList(key, items)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw)
}

// UpdateList atomically rewrites the list stored under key.
func UpdateList[T any](ctx context.Context, s Store, key string, fn func([]T) ([]T, error)) error {
	return s.Update(ctx, key, func(old []byte) ([]byte, error) {
		items, err := decodeList[T](key, old)
		if err != nil {
			return nil, err
		}
		items, err = fn(items)
		if err != nil {
			return nil, err
		}
		return encodeList(key, items)
	})
}

func decodeList[T any](key string, raw []byte) ([]T, error) {
	if len(raw) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("kv: decode %s: %w", key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func encodeList[T any](key string, items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return raw, nil
}
