package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/scraps/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

const maxBody = 10 << 20

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, newest first
//	@Tags			notes
//	@Produce		json
//	@Param			q	query		string	false	"Case-insensitive substring filter"
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListNotes(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, "get note", err, slog.String("note_id", id))
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Title, req.Body)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path	string				true	"Note id"
//	@Param			If-Match	header	string				false	"Checksum for optimistic concurrency"
//	@Param			body		body	UpdateNoteRequest	true	"Fields to change"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	id := chi.URLParam(r, "id")

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Title == nil && req.Body == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("title or body is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	note, err := h.svc.UpdateNote(r.Context(), id, noteservice.NoteUpdate{Title: req.Title, Body: req.Body}, ifMatch)
	if err != nil {
		writeError(w, "update note", err, slog.String("note_id", id))
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note; a synced note is archived remotely on the next pass
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeError(w, "delete note", err, slog.String("note_id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncNow handles POST /api/sync.
//
//	@Summary		Start a sync pass in the background
//	@Tags			sync
//	@Produce		json
//	@Success		202	{object}	SyncStartedResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) SyncNow(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SyncNow(r.Context()); err != nil {
		writeError(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusAccepted, SyncStartedResponse{Started: true})
}

// Status handles GET /api/status.
//
//	@Summary		Current sync state and last report
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.SyncStatus())
}

// ListTombstones handles GET /api/tombstones.
//
//	@Summary		Remote ids deleted locally that will not be pulled again
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	TombstonesResponse
//	@Security		BearerAuth
//	@Router			/tombstones [get]
func (h *Handler) ListTombstones(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.ListTombstones(r.Context())
	if err != nil {
		writeError(w, "list tombstones", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, TombstonesResponse{RemoteIDs: ids})
}

// ClearTombstone handles DELETE /api/tombstones/{remoteID}.
//
//	@Summary		Clear a tombstone so the document may be pulled again
//	@Tags			sync
//	@Param			remoteID	path	string	true	"Remote document id"
//	@Success		204	"Tombstone cleared"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tombstones/{remoteID} [delete]
func (h *Handler) ClearTombstone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "remoteID")
	if err := h.svc.ClearTombstone(r.Context(), id); err != nil {
		writeError(w, "clear tombstone", err, slog.String("remote_id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
