package api

import (
	"github.com/starford/scraps/internal/noteservice"
	"github.com/starford/scraps/internal/status"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title string `json:"title" example:"Groceries"`
	Body  string `json:"body" example:"- milk\n- eggs"`
}

// UpdateNoteRequest is the request body for updating a note. Omitted
// fields keep their current value.
type UpdateNoteRequest struct {
	Title *string `json:"title,omitempty" example:"Groceries"`
	Body  *string `json:"body,omitempty" example:"- milk"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// StatusResponse is the sync status.
type StatusResponse = status.Snapshot

// SyncStartedResponse is returned when a pass was started.
type SyncStartedResponse struct {
	Started bool `json:"started" example:"true"`
}

// TombstonesResponse lists tombstoned remote ids.
type TombstonesResponse struct {
	RemoteIDs []string `json:"remote_ids" validate:"required"`
}
