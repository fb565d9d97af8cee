// Package models defines the domain types for scraps.
package models

import "time"

// Note is a locally owned note. RemoteID is empty until the first
// successful remote create and is the join key for merge.
type Note struct {
	ID           string `json:"id"`
	RemoteID     string `json:"remote_id,omitempty"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	LastModified int64  `json:"last_modified"` // unix ms

	// SyncedBody is the body as of the last successful push or pull.
	SyncedBody string `json:"synced_body,omitempty"`
}

// Bound reports whether the note is linked to a remote document.
func (n Note) Bound() bool { return n.RemoteID != "" }

// ModifiedAt returns LastModified as a time.Time.
func (n Note) ModifiedAt() time.Time { return time.UnixMilli(n.LastModified) }

// RemoteDocument is a remote page reconstructed on every pull. It is never
// persisted as such.
type RemoteDocument struct {
	RemoteID       string `json:"remote_id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	LastEditedTime int64  `json:"last_edited_time"` // unix ms
}

// Event kinds emitted by the local store.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event sources.
const (
	SourceLocal = "local"
	SourceSync  = "sync"
)

// NoteEvent describes a change to the local note collection.
type NoteEvent struct {
	Kind   string `json:"kind"`
	Source string `json:"source"`
	NoteID string `json:"note_id"`
	Title  string `json:"title,omitempty"`
}

// SyncFailure is a note-level failure recorded during a pass.
type SyncFailure struct {
	NoteID   string `json:"note_id,omitempty"`
	Title    string `json:"title,omitempty"`
	RemoteID string `json:"remote_id,omitempty"`
	Op       string `json:"op"`
	Error    string `json:"error"`
}

// SyncReport summarizes one synchronization pass.
type SyncReport struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Created      int           `json:"created"`
	Updated      int           `json:"updated"`
	Pulled       int           `json:"pulled"`
	PulledNew    int           `json:"pulled_new"`
	DeletedLocal int           `json:"deleted_local"`
	Archived     int           `json:"archived"`
	Skipped      int           `json:"skipped"`
	Failures     []SyncFailure `json:"failures,omitempty"`
}

// Writes counts remote write calls made by the pass.
func (r *SyncReport) Writes() int { return r.Created + r.Updated + r.Archived }
