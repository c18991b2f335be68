// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note graph to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/noteservice"
)

const wikilinkSyntaxURI = "notegraph://wikilink-syntax"

// Server wraps the MCP server with note graph tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Notegraph",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Ranked full-text search over note titles and content. "+
			"Returns hits best first with <mark> highlights."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query; a single word matches as a prefix")),
		mcp.WithString("field", mcp.Description("Restrict to one field"), mcp.Enum("all", "title", "content")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the content of a note by its exact title."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Exact note title")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. [[Title]] references in the content become links "+
			"to existing notes. Read the notegraph://wikilink-syntax resource first."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Unique single-line title, at most 255 characters")),
		mcp.WithString("content", mcp.Description("Note text, may contain [[wiki-links]]")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note_content",
		mcp.WithDescription("Replace the content of a note; its outgoing links are re-derived."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Exact note title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New note text")),
	), s.updateNoteContent)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List note titles, optionally only those containing a substring."),
		mcp.WithString("title_part", mcp.Description("Optional case-insensitive title substring")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_outgoing_links",
		mcp.WithDescription("List the titles of notes the given note links to."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Exact note title")),
	), s.getOutgoingLinks)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("List the titles of notes that link to the given note."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Exact note title")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_wikilink_syntax",
		mcp.WithDescription("Returns the title and wiki-link rules. "+
			"Call this before creating or updating notes."),
	), s.getWikilinkSyntax)

	s.mcp.AddResource(
		mcp.NewResource(wikilinkSyntaxURI, "Wiki-link Syntax",
			mcp.WithResourceDescription("Title rules and how [[wiki-links]] become graph edges."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readWikilinkSyntaxResource,
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
	field, err := index.ParseField(req.GetString("field", "all"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Query(ctx, query, field)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNoteByTitle(ctx, title)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", title)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.CreateNote(ctx, title, req.GetString("content", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (id %d)", note.Title, note.ID)), nil
}

func (s *Server) updateNoteContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNoteByTitle(ctx, title)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", title)), nil
	}
	if _, err := s.svc.UpdateNoteContent(ctx, note.ID, content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", note.Title)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.svc.SearchByTitlePart(ctx, req.GetString("title_part", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(joinTitles(notes)), nil
}

func (s *Server) getOutgoingLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.linked(ctx, req, s.svc.OutgoingLinkedNotes, "no outgoing links found")
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.linked(ctx, req, s.svc.IncomingLinkedNotes, "no backlinks found")
}

func (s *Server) linked(
	ctx context.Context,
	req mcp.CallToolRequest,
	list func(context.Context, int64) ([]models.Note, error),
	empty string,
) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNoteByTitle(ctx, title)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", title)), nil
	}
	notes, err := list(ctx, note.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText(empty), nil
	}
	return mcp.NewToolResultText(joinTitles(notes)), nil
}

func (s *Server) getWikilinkSyntax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(WikilinkSyntax), nil
}

func (s *Server) readWikilinkSyntaxResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      wikilinkSyntaxURI,
			MIMEType: "text/markdown",
			Text:     WikilinkSyntax,
		},
	}, nil
}

func joinTitles(notes []models.Note) string {
	titles := make([]string, 0, len(notes))
	for _, n := range notes {
		titles = append(titles, n.Title)
	}
	return strings.Join(titles, "\n")
}
