// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the daybook over stdio transport, so LLM clients can search and
// read journal notes through the same API the sync layer uses.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/skald/internal/notes"
)

// API is the slice of the gateway the MCP tools use.
type API interface {
	Get(ctx context.Context, path string, params url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

// Server wraps the MCP server with daybook tools.
type Server struct {
	mcp   *server.MCPServer
	api   API
	notes *notes.Service
}

// New creates a new MCP server with all daybook tools registered.
func New(api API) *Server {
	s := &Server{api: api, notes: notes.NewService(api)}

	s.mcp = server.NewMCPServer(
		"Skald",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through journal notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note by its UUID."),
		mcp.WithString("uuid", mcp.Required(), mcp.Description("Note UUID")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("day_note",
		mcp.WithDescription("Read the journal note for a given day."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Day in MM-dd-yyyy form (e.g. 03-15-2026)")),
	), s.dayNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes with their UUIDs and titles."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_sidebar",
		mcp.WithDescription("Fetch the sidebar overview: tags, projects, open tasks and settings."),
	), s.getSidebar)

	s.mcp.AddTool(mcp.NewTool("save_task",
		mcp.WithDescription("Update a task line. The name MUST follow the task format "+
			"(see the get_task_format tool or the skald://task-format resource)."),
		mcp.WithString("uuid", mcp.Required(), mcp.Description("Task UUID")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Full task line, e.g. \"- [x] water the plants\"")),
	), s.saveTask)

	s.mcp.AddTool(mcp.NewTool("list_external_calendars",
		mcp.WithDescription("List the subscribed external calendar feeds."),
	), s.listCalendars)

	s.mcp.AddTool(mcp.NewTool("get_task_format",
		mcp.WithDescription("Returns the canonical task and day-note format contract. "+
			"Call this before writing tasks to ensure correct structure."),
	), s.getTaskFormat)

	// Resource: task format contract.
	s.mcp.AddResource(
		mcp.NewResource("skald://task-format", "Task Format Contract",
			mcp.WithResourceDescription("Canonical task line and day-note format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTaskFormatResource,
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

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var resp struct {
		Notes []notes.Note `json:"notes"`
	}
	if err := s.api.Post(ctx, "/search", map[string]string{"query": query}, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(resp.Notes, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uuid, err := req.RequireString("uuid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.Get(ctx, uuid)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", uuid)), nil
	}
	return mcp.NewToolResultText(n.Data), nil
}

func (s *Server) dayNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.DayNote(ctx, date)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no day note for %s", date)), nil
	}
	return mcp.NewToolResultText(n.Data), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := s.notes.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	type entry struct {
		UUID   string `json:"uuid"`
		Title  string `json:"title,omitempty"`
		IsDate bool   `json:"is_date,omitempty"`
	}
	entries := make([]entry, 0, len(all))
	for _, n := range all {
		entries = append(entries, entry{UUID: n.UUID, Title: n.Title, IsDate: n.IsDate})
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getSidebar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp map[string]any
	if err := s.api.Get(ctx, "/sidebar", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(resp, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) saveTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uuid, err := req.RequireString("uuid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body := map[string]string{"uuid": uuid, "name": name}
	if err := s.api.Put(ctx, "/save_task", body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", uuid)), nil
}

func (s *Server) listCalendars(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cals, err := s.notes.Calendars(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(cals, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getTaskFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TaskFormatContract), nil
}

func (s *Server) readTaskFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "skald://task-format",
			MIMEType: "text/markdown",
			Text:     TaskFormatContract,
		},
	}, nil
}
