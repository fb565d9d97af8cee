// Package noteservice is the UI-facing note API. Every mutation runs under
// the sync engine guard so it never interleaves with a pass.
package noteservice

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/scraps/internal/apperr"
	"github.com/starford/scraps/internal/checksum"
	"github.com/starford/scraps/internal/models"
	"github.com/starford/scraps/internal/notes"
	"github.com/starford/scraps/internal/status"
	"github.com/starford/scraps/internal/syncer"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID        string    `json:"id"`
	RemoteID  string    `json:"remote_id,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Checksum  string    `json:"checksum"`
	Synced    bool      `json:"synced"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Synced    bool      `json:"synced"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteUpdate carries the fields to change. Nil fields are kept.
type NoteUpdate struct {
	Title *string
	Body  *string
}

// Service coordinates the local store and the sync engine.
type Service struct {
	notes  *notes.Store
	engine *syncer.Engine
}

// NewService creates a new note service.
func NewService(store *notes.Store, engine *syncer.Engine) *Service {
	return &Service{notes: store, engine: engine}
}

// ListNotes returns notes, newest first, optionally filtered by query.
func (s *Service) ListNotes(ctx context.Context, query string) ([]NoteListItem, error) {
	var (
		all []models.Note
		err error
	)
	if query != "" {
		all, err = s.notes.Search(ctx, query)
	} else {
		all, err = s.notes.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	items := make([]NoteListItem, len(all))
	for i, n := range all {
		items[i] = NoteListItem{
			ID:        n.ID,
			Title:     n.Title,
			Synced:    synced(n),
			UpdatedAt: n.ModifiedAt(),
		}
	}
	return items, nil
}

// GetNote returns a single note.
func (s *Service) GetNote(ctx context.Context, id string) (*NoteDetail, error) {
	n, err := s.notes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail(n), nil
}

// CreateNote adds a note with the given title and body.
func (s *Service) CreateNote(ctx context.Context, title, body string) (*NoteDetail, error) {
	var out models.Note
	err := s.engine.Exclusive(ctx, func(ctx context.Context) error {
		n, err := s.notes.Create(ctx, title)
		if err != nil {
			return err
		}
		if body != "" {
			if n, err = s.notes.Update(ctx, n.ID, n.Title, body); err != nil {
				return err
			}
		}
		out = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail(out), nil
}

// UpdateNote applies upd. A non-empty ifMatch must equal the current
// checksum, otherwise apperr.ErrConflict is returned.
func (s *Service) UpdateNote(ctx context.Context, id string, upd NoteUpdate, ifMatch string) (*NoteDetail, error) {
	var out models.Note
	err := s.engine.Exclusive(ctx, func(ctx context.Context) error {
		cur, err := s.notes.Get(ctx, id)
		if err != nil {
			return err
		}
		if ifMatch != "" && ifMatch != sum(cur) {
			return fmt.Errorf("note %s changed: %w", id, apperr.ErrConflict)
		}
		title, body := cur.Title, cur.Body
		if upd.Title != nil {
			title = *upd.Title
		}
		if upd.Body != nil {
			body = *upd.Body
		}
		if title == cur.Title && body == cur.Body {
			out = cur
			return nil
		}
		out, err = s.notes.Update(ctx, id, title, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail(out), nil
}

// DeleteNote removes a note and, when it was synced, queues the remote
// archive.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	_, err := s.engine.DeleteNote(ctx, id)
	return err
}

// SyncNow starts a pass in the background.
func (s *Service) SyncNow(ctx context.Context) error {
	return s.engine.Start(ctx)
}

// SyncStatus returns the current sync state.
func (s *Service) SyncStatus() status.Snapshot {
	return s.engine.Status().Current()
}

func detail(n models.Note) *NoteDetail {
	return &NoteDetail{
		ID:        n.ID,
		RemoteID:  n.RemoteID,
		Title:     n.Title,
		Body:      n.Body,
		Checksum:  sum(n),
		Synced:    synced(n),
		UpdatedAt: n.ModifiedAt(),
	}
}

func sum(n models.Note) string { return checksum.Sum(n.Title, n.Body) }

// synced reports whether the local body matches what was last synced.
func synced(n models.Note) bool { return n.Bound() && n.Body == n.SyncedBody }

// ListTombstones returns the remote ids that will never be pulled again.
func (s *Service) ListTombstones(ctx context.Context) ([]string, error) {
	return s.engine.Tombstones(ctx)
}

// ClearTombstone removes a tombstone. It reports apperr.ErrNotFound when
// the id was not tombstoned.
func (s *Service) ClearTombstone(ctx context.Context, remoteID string) error {
	removed, err := s.engine.ClearTombstone(ctx, remoteID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("tombstone %s: %w", remoteID, apperr.ErrNotFound)
	}
	return nil
}
