// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes scraps tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/scraps/internal/apperr"
	"github.com/starford/scraps/internal/noteservice"
)

// Server wraps the MCP server with note and sync tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"scraps",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, newest first. One line per note: id, sync marker, title."),
		mcp.WithString("query", mcp.Description("Optional case-insensitive filter on title and body")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note as JSON, including the checksum required for safe updates."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. The body should follow the format described by the "+
			NoteFormatURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("body", mcp.Description("Markdown body")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Change a note's title and/or body. Omitted fields are kept."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("body", mcp.Description("New Markdown body")),
		mcp.WithString("checksum", mcp.Description("Checksum from read_note; the update fails if the note changed since")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note. A synced note is archived remotely on the next sync."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("sync_now",
		mcp.WithDescription("Start a sync with the remote store in the background."),
	), s.syncNow)

	s.mcp.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Current sync state and the report of the last pass, as JSON."),
	), s.syncStatus)

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format",
			mcp.WithResourceDescription("Markdown subset preserved by sync."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListNotes(ctx, req.GetString("query", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	lines := make([]string, len(items))
	for i, it := range items {
		mark := " "
		if it.Synced {
			mark = "*"
		}
		lines[i] = fmt.Sprintf("%s %s %s", it.ID, mark, it.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, id)
	if err != nil {
		return toolError(err, id), nil
	}
	return jsonResult(note), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.CreateNote(ctx, title, req.GetString("body", ""))
	if err != nil {
		return toolError(err, title), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.ID)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var upd noteservice.NoteUpdate
	args := req.GetArguments()
	if _, ok := args["title"]; ok {
		t := req.GetString("title", "")
		upd.Title = &t
	}
	if _, ok := args["body"]; ok {
		b := req.GetString("body", "")
		upd.Body = &b
	}
	if upd.Title == nil && upd.Body == nil {
		return mcp.NewToolResultError("title or body is required"), nil
	}
	note, err := s.svc.UpdateNote(ctx, id, upd, req.GetString("checksum", ""))
	if err != nil {
		return toolError(err, id), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (checksum %s)", note.ID, note.Checksum)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteNote(ctx, id); err != nil {
		return toolError(err, id), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) syncNow(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.SyncNow(ctx); err != nil {
		return toolError(err, ""), nil
	}
	return mcp.NewToolResultText("sync started"), nil
}

func (s *Server) syncStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.SyncStatus()), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func toolError(err error, subject string) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", subject))
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("note changed since it was read; read it again")
	case errors.Is(err, apperr.ErrSyncInProgress):
		return mcp.NewToolResultError("sync in progress; retry shortly")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}
