// Package notes implements the local note collection: CRUD over the kv
// boundary with change notification for UI subscribers.
package notes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/scraps/internal/apperr"
	"github.com/starford/scraps/internal/kv"
	"github.com/starford/scraps/internal/models"
)

// Key is the kv key holding the full note collection.
const Key = "notes"

// DefaultTitle is used for notes created or pushed without a title.
const DefaultTitle = "Untitled"

// Store is the local note collection. Every operation reads through to the
// kv store, so processes sharing the same backing store observe each
// other's writes.
type Store struct {
	kv  kv.Store
	now func() time.Time

	mu        sync.Mutex
	observers map[chan models.NoteEvent]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store persisting through kvs.
func New(kvs kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:        kvs,
		now:       time.Now,
		observers: make(map[chan models.NoteEvent]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers an observer. The returned function unsubscribes and
// closes the channel. Slow observers miss events rather than block writers.
func (s *Store) Subscribe() (<-chan models.NoteEvent, func()) {
	ch := make(chan models.NoteEvent, 64)
	s.mu.Lock()
	s.observers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) notify(kind, source string, n models.Note) {
	ev := models.NoteEvent{Kind: kind, Source: source, NoteID: n.ID, Title: n.Title}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.observers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// List returns every note, most recently modified first.
func (s *Store) List(ctx context.Context) ([]models.Note, error) {
	all, err := kv.GetList[models.Note](ctx, s.kv, Key)
	if err != nil {
		return nil, fmt.Errorf("notes: list: %w", err)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].LastModified != all[j].LastModified {
			return all[i].LastModified > all[j].LastModified
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

// Get returns the note with the given id.
func (s *Store) Get(ctx context.Context, id string) (models.Note, error) {
	all, err := kv.GetList[models.Note](ctx, s.kv, Key)
	if err != nil {
		return models.Note{}, fmt.Errorf("notes: get: %w", err)
	}
	for _, n := range all {
		if n.ID == id {
			return n, nil
		}
	}
	return models.Note{}, fmt.Errorf("notes: %s: %w", id, apperr.ErrNotFound)
}

// Search returns notes whose title or body contains query, case-insensitively.
func (s *Store) Search(ctx context.Context, query string) ([]models.Note, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all, nil
	}
	out := make([]models.Note, 0, len(all))
	for _, n := range all {
		if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Body), q) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Create adds a new empty note with a fresh id.
func (s *Store) Create(ctx context.Context, title string) (models.Note, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	n := models.Note{
		ID:           uuid.NewString(),
		Title:        title,
		LastModified: s.now().UnixMilli(),
	}
	err := kv.UpdateList(ctx, s.kv, Key, func(all []models.Note) ([]models.Note, error) {
		return append(all, n), nil
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("notes: create: %w", err)
	}
	s.notify(models.EventCreated, models.SourceLocal, n)
	return n, nil
}

// Update replaces a note's title and body and advances LastModified.
func (s *Store) Update(ctx context.Context, id, title, body string) (models.Note, error) {
	return s.edit(ctx, id, func(n *models.Note) {
		n.Title = title
		n.Body = body
	})
}

// Rename changes only the title.
func (s *Store) Rename(ctx context.Context, id, title string) (models.Note, error) {
	return s.edit(ctx, id, func(n *models.Note) { n.Title = title })
}

func (s *Store) edit(ctx context.Context, id string, fn func(*models.Note)) (models.Note, error) {
	var out models.Note
	err := s.mutate(ctx, id, func(n *models.Note) error {
		fn(n)
		n.LastModified = s.nextModified(n.LastModified)
		out = *n
		return nil
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("notes: update: %w", err)
	}
	s.notify(models.EventUpdated, models.SourceLocal, out)
	return out, nil
}

// mutate applies fn to the note with the given id and saves the collection.
// It wraps apperr.ErrNotFound when no note has that id.
func (s *Store) mutate(ctx context.Context, id string, fn func(*models.Note) error) error {
	return kv.UpdateList(ctx, s.kv, Key, func(all []models.Note) ([]models.Note, error) {
		for i := range all {
			if all[i].ID == id {
				if err := fn(&all[i]); err != nil {
					return nil, err
				}
				return all, nil
			}
		}
		return nil, fmt.Errorf("%s: %w", id, apperr.ErrNotFound)
	})
}

// nextModified keeps LastModified strictly increasing across local edits
// even when the clock stalls or steps backwards.
func (s *Store) nextModified(prev int64) int64 {
	now := s.now().UnixMilli()
	if now <= prev {
		return prev + 1
	}
	return now
}

// Delete removes a note and returns it as it was.
func (s *Store) Delete(ctx context.Context, id string) (models.Note, error) {
	n, err := s.remove(ctx, func(n models.Note) bool { return n.ID == id })
	if err != nil {
		return models.Note{}, fmt.Errorf("notes: delete %s: %w", id, err)
	}
	s.notify(models.EventDeleted, models.SourceLocal, n)
	return n, nil
}

// Forget removes the note bound to remoteID because the remote document
// disappeared. It wraps apperr.ErrNotFound when no note is bound to it.
func (s *Store) Forget(ctx context.Context, remoteID string) (models.Note, error) {
	n, err := s.remove(ctx, func(n models.Note) bool { return n.RemoteID == remoteID })
	if err != nil {
		return models.Note{}, fmt.Errorf("notes: forget %s: %w", remoteID, err)
	}
	s.notify(models.EventDeleted, models.SourceSync, n)
	return n, nil
}

func (s *Store) remove(ctx context.Context, match func(models.Note) bool) (models.Note, error) {
	var removed models.Note
	found := false
	err := kv.UpdateList(ctx, s.kv, Key, func(all []models.Note) ([]models.Note, error) {
		out := all[:0]
		for _, n := range all {
			if !found && match(n) {
				removed = n
				found = true
				continue
			}
			out = append(out, n)
		}
		if !found {
			return nil, apperr.ErrNotFound
		}
		return out, nil
	})
	return removed, err
}

// ApplyRemote writes a pulled document into the collection. An existing
// note bound to doc.RemoteID is overwritten; otherwise a new bound note is
// created. created reports which happened.
func (s *Store) ApplyRemote(ctx context.Context, doc models.RemoteDocument) (n models.Note, created bool, err error) {
	err = kv.UpdateList(ctx, s.kv, Key, func(all []models.Note) ([]models.Note, error) {
		for i := range all {
			if all[i].RemoteID == doc.RemoteID {
				all[i].Title = doc.Title
				all[i].Body = doc.Body
				all[i].SyncedBody = doc.Body
				all[i].LastModified = doc.LastEditedTime
				n = all[i]
				return all, nil
			}
		}
		created = true
		n = models.Note{
			ID:           uuid.NewString(),
			RemoteID:     doc.RemoteID,
			Title:        doc.Title,
			Body:         doc.Body,
			SyncedBody:   doc.Body,
			LastModified: doc.LastEditedTime,
		}
		return append(all, n), nil
	})
	if err != nil {
		return models.Note{}, false, fmt.Errorf("notes: apply remote %s: %w", doc.RemoteID, err)
	}
	kind := models.EventUpdated
	if created {
		kind = models.EventCreated
	}
	s.notify(kind, models.SourceSync, n)
	return n, created, nil
}

// MarkPushed records a successful push: the remote id (for creates) and the
// body actually stored remotely. If the note was edited after snapshotModified
// only the binding is recorded, so the newer local edit survives for the
// next pass.
func (s *Store) MarkPushed(ctx context.Context, id, remoteID, pushedBody string, snapshotModified int64) (models.Note, error) {
	var out models.Note
	err := kv.UpdateList(ctx, s.kv, Key, func(all []models.Note) ([]models.Note, error) {
		idx := -1
		for i := range all {
			if all[i].ID == id {
				idx = i
				continue
			}
			if remoteID != "" && all[i].RemoteID == remoteID {
				return nil, fmt.Errorf("remote id %s already bound to note %s: %w", remoteID, all[i].ID, apperr.ErrConflict)
			}
		}
		if idx < 0 {
			return nil, apperr.ErrNotFound
		}
		n := &all[idx]
		if n.RemoteID == "" {
			n.RemoteID = remoteID
		}
		if n.LastModified == snapshotModified {
			n.Body = pushedBody
			n.SyncedBody = pushedBody
		}
		out = *n
		return all, nil
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("notes: mark pushed %s: %w", id, err)
	}
	s.notify(models.EventUpdated, models.SourceSync, out)
	return out, nil
}
