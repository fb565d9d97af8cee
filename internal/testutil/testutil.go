// Package testutil provides shared test helpers for stores and the remote.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/starford/scraps/internal/apperr"
	"github.com/starford/scraps/internal/kv"
	"github.com/starford/scraps/internal/models"
)

// TestKV opens a temporary SQLite key-value store that is closed on cleanup.
func TestKV(t *testing.T) kv.Store {
	t.Helper()
	s, err := kv.Open(kv.DriverSQLite, filepath.Join(t.TempDir(), "scraps.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestFileKV opens a temporary file-backed store and returns its directory.
func TestFileKV(t *testing.T) (string, kv.Store) {
	t.Helper()
	dir := t.TempDir()
	s, err := kv.Open(kv.DriverFile, dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return dir, s
}

// Call is one write made against a FakeRemote.
type Call struct {
	Op       string
	RemoteID string
	Title    string
	Body     string
}

// FakeRemote is an in-memory remote document store. Documents carry the
// lastModified value they were last written with, like a database that
// declares the last modified property.
type FakeRemote struct {
	mu    sync.Mutex
	docs  map[string]models.RemoteDocument
	order []string
	seq   int
	calls []Call

	// ListErr fails ListAll when set.
	ListErr error
	// Fail, when set, is consulted before every write.
	Fail func(op, title string) error
}

// NewFakeRemote returns an empty FakeRemote.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{docs: map[string]models.RemoteDocument{}}
}

func (f *FakeRemote) ListAll(_ context.Context) ([]models.RemoteDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]models.RemoteDocument, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.docs[id])
	}
	return out, nil
}

func (f *FakeRemote) Create(_ context.Context, title, body string, lastModified int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("create", title); err != nil {
		return "", err
	}
	f.seq++
	id := fmt.Sprintf("remote-%d", f.seq)
	f.docs[id] = models.RemoteDocument{RemoteID: id, Title: title, Body: body, LastEditedTime: lastModified}
	f.order = append(f.order, id)
	f.calls = append(f.calls, Call{Op: "create", RemoteID: id, Title: title, Body: body})
	return id, nil
}

func (f *FakeRemote) Update(_ context.Context, remoteID, title, body string, lastModified int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("update", title); err != nil {
		return err
	}
	if _, ok := f.docs[remoteID]; !ok {
		return fmt.Errorf("fake remote: update %s: %w", remoteID, apperr.ErrNotFound)
	}
	f.docs[remoteID] = models.RemoteDocument{RemoteID: remoteID, Title: title, Body: body, LastEditedTime: lastModified}
	f.calls = append(f.calls, Call{Op: "update", RemoteID: remoteID, Title: title, Body: body})
	return nil
}

func (f *FakeRemote) Archive(_ context.Context, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("archive", ""); err != nil {
		return err
	}
	if _, ok := f.docs[remoteID]; !ok {
		return fmt.Errorf("fake remote: archive %s: %w", remoteID, apperr.ErrNotFound)
	}
	f.removeLocked(remoteID)
	f.calls = append(f.calls, Call{Op: "archive", RemoteID: remoteID})
	return nil
}

func (f *FakeRemote) fail(op, title string) error {
	if f.Fail == nil {
		return nil
	}
	return f.Fail(op, title)
}

// Put inserts or replaces a document as if edited remotely.
func (f *FakeRemote) Put(doc models.RemoteDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[doc.RemoteID]; !ok {
		f.order = append(f.order, doc.RemoteID)
	}
	f.docs[doc.RemoteID] = doc
}

// Remove deletes a document as if removed remotely.
func (f *FakeRemote) Remove(remoteID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(remoteID)
}

func (f *FakeRemote) removeLocked(remoteID string) {
	delete(f.docs, remoteID)
	if i := slices.Index(f.order, remoteID); i >= 0 {
		f.order = slices.Delete(f.order, i, i+1)
	}
}

// Doc returns a stored document.
func (f *FakeRemote) Doc(remoteID string) (models.RemoteDocument, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[remoteID]
	return d, ok
}

// Calls returns the writes made so far.
func (f *FakeRemote) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// ResetCalls forgets recorded writes.
func (f *FakeRemote) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
