package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/store"
	"github.com/joescharf/bugboard/internal/tracker"
	"github.com/joescharf/bugboard/internal/validation"
)

// Server exposes a bug tracking session as MCP tools.
type Server struct {
	tracker *tracker.Tracker
	version string

	// formMu keeps the open, edit, submit sequence of bugs_create atomic.
	formMu sync.Mutex
}

// NewServer creates the MCP server wrapper. The tracker should already be
// loaded.
func NewServer(t *tracker.Tracker, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{tracker: t, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("bugboard", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listBugsTool())
	srv.AddTool(s.boardTool())
	srv.AddTool(s.createBugTool())
	srv.AddTool(s.changeStatusTool())
	srv.AddTool(s.deleteBugTool())
	srv.AddTool(s.commentsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any, what string) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal %s: %v", what, err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// parseBugID accepts "7" or "#7".
func parseBugID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid bug id %q", raw)
	}
	return id, nil
}

func (s *Server) requireBugID(request mcp.CallToolRequest) (int64, *mcp.CallToolResult) {
	raw, err := request.RequireString("id")
	if err != nil {
		return 0, mcp.NewToolResultError("missing required parameter: id")
	}
	id, err := parseBugID(raw)
	if err != nil {
		return 0, mcp.NewToolResultError(err.Error())
	}
	return id, nil
}

// bugOut is the compact bug shape returned by every tool.
type bugOut struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Severity    string   `json:"severity"`
	Status      string   `json:"status"`
	Reporter    string   `json:"reporter"`
	Assignee    string   `json:"assignee"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func toOut(b *models.Bug, withDescription bool) bugOut {
	out := bugOut{
		ID:        b.ID,
		Title:     b.Title,
		Severity:  string(b.Severity),
		Status:    string(b.Status),
		Reporter:  b.Reporter,
		Assignee:  b.Assignee,
		Tags:      b.Tags,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if withDescription {
		out.Description = b.Description
	}
	return out
}

func toOuts(bugs []*models.Bug) []bugOut {
	out := make([]bugOut, len(bugs))
	for i, b := range bugs {
		out[i] = toOut(b, false)
	}
	return out
}

// view derives a board view for the tool's query and status arguments.
func (s *Server) view(request mcp.CallToolRequest) (tracker.BoardView, error) {
	filter, err := models.ParseStatusFilter(request.GetString("status", ""))
	if err != nil {
		return tracker.BoardView{}, err
	}
	st := s.tracker.Snapshot()
	st.Query = request.GetString("query", "")
	st.Filter = filter
	return tracker.Derive(st), nil
}

// bugs_list
func (s *Server) listBugsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_list",
		mcp.WithDescription("List bugs, newest first. Returns a JSON array with id, title, severity, status, assignee and tags."),
		mcp.WithString("query", mcp.Description("Case-insensitive text matched against title, description and id")),
		mcp.WithString("status", mcp.Description("Filter by status: all, todo, in-progress, resolved (default: all)")),
	)
	return tool, s.handleListBugs
}

func (s *Server) handleListBugs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := s.view(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(toOuts(v.Filtered), "bugs")
}

// bugs_board
func (s *Server) boardTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_board",
		mcp.WithDescription("Get the bug board: bugs grouped into todo, in-progress and resolved columns, plus total, active, critical and resolved counts."),
		mcp.WithString("query", mcp.Description("Case-insensitive text matched against title, description and id")),
	)
	return tool, s.handleBoard
}

func (s *Server) handleBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := s.view(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := map[string]any{
		"todo":        toOuts(v.Columns.Todo),
		"in-progress": toOuts(v.Columns.InProgress),
		"resolved":    toOuts(v.Columns.Resolved),
		"stats":       v.Stats,
	}
	return jsonResult(result, "board")
}

// bugs_create
func (s *Server) createBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_create",
		mcp.WithDescription("Log a new bug. Returns the created bug as JSON."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Bug title, at most 100 characters")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What happens and how to reproduce it")),
		mcp.WithString("severity", mcp.Description("low, medium, high, critical (default: medium)")),
		mcp.WithString("status", mcp.Description("todo, in-progress, resolved (default: todo)")),
		mcp.WithString("reporter", mcp.Description("Who reported the bug (default: Dev Team)")),
		mcp.WithString("assignee", mcp.Description("Who owns the fix (default: Unassigned)")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
	)
	return tool, s.handleCreateBug
}

func (s *Server) handleCreateBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	description, err := request.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: description"), nil
	}

	var (
		severity models.Severity
		status   models.Status
	)
	if v := request.GetString("severity", ""); v != "" {
		if severity, err = models.ParseSeverity(v); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if v := request.GetString("status", ""); v != "" {
		if status, err = models.ParseStatus(v); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	reporter := request.GetString("reporter", "")
	assignee := request.GetString("assignee", "")
	tags := strings.Split(request.GetString("tags", ""), ",")

	s.formMu.Lock()
	defer s.formMu.Unlock()

	s.tracker.OpenCreateForm()
	_, err = s.tracker.UpdateDraft(func(d *models.Draft) {
		d.Title = title
		d.Description = description
		if severity != "" {
			d.Severity = severity
		}
		if status != "" {
			d.Status = status
		}
		if reporter != "" {
			d.Reporter = reporter
		}
		if assignee != "" {
			d.Assignee = assignee
		}
		for _, tag := range tags {
			d.AddTag(tag)
		}
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create bug: %v", err)), nil
	}

	bug, err := s.tracker.SubmitForm(ctx)
	if err != nil {
		s.tracker.CloseForm()
		var fields validation.Errors
		if errors.As(err, &fields) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid bug: %s", fields.Error())), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to create bug: %v", err)), nil
	}
	return jsonResult(toOut(bug, true), "bug")
}

// bugs_change_status
func (s *Server) changeStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_change_status",
		mcp.WithDescription("Move a bug to another status column. Returns the updated bug as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bug id, e.g. 7 or #7")),
		mcp.WithString("status", mcp.Required(), mcp.Description("New status: todo, in-progress, resolved")),
	)
	return tool, s.handleChangeStatus
}

func (s *Server) handleChangeStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := s.requireBugID(request)
	if errResult != nil {
		return errResult, nil
	}
	raw, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}
	status, err := models.ParseStatus(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	bug, err := s.tracker.ChangeStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("bug not found: #%d", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to change status: %v", err)), nil
	}
	return jsonResult(toOut(bug, false), "bug")
}

// bugs_delete
func (s *Server) deleteBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_delete",
		mcp.WithDescription("Delete a bug. Its comments are kept."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bug id, e.g. 7 or #7")),
	)
	return tool, s.handleDeleteBug
}

func (s *Server) handleDeleteBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := s.requireBugID(request)
	if errResult != nil {
		return errResult, nil
	}
	if err := s.tracker.DeleteBug(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("bug not found: #%d", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete bug: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Bug #%d deleted", id)), nil
}

// bugs_comments
func (s *Server) commentsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_comments",
		mcp.WithDescription("Show a bug with its discussion comments, oldest first."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bug id, e.g. 7 or #7")),
	)
	return tool, s.handleComments
}

func (s *Server) handleComments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := s.requireBugID(request)
	if errResult != nil {
		return errResult, nil
	}
	st := s.tracker.Snapshot()
	bug, ok := st.Bug(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("bug not found: #%d", id)), nil
	}

	type commentOut struct {
		Author    string `json:"author"`
		Content   string `json:"content"`
		CreatedAt string `json:"created_at"`
	}
	comments := models.CommentsFor(st.Comments, id)
	out := make([]commentOut, len(comments))
	for i, c := range comments {
		out[i] = commentOut{
			Author:    c.Author,
			Content:   c.Content,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		}
	}
	return jsonResult(map[string]any{"bug": toOut(bug, true), "comments": out}, "comments")
}
