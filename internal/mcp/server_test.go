package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/store"
	"github.com/joescharf/bugboard/internal/tracker"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore(store.WithSeed(store.DemoSeed()))
	tr := tracker.New(ms, ms)
	require.NoError(t, tr.LoadAll(context.Background()))
	return NewServer(tr, "test"), ms
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target), "failed to parse result JSON: %s", text)
}

func TestNewServer(t *testing.T) {
	srv, _ := newTestServer(t)
	require.NotNil(t, srv.MCPServer())
}

func TestParseBugID(t *testing.T) {
	id, err := parseBugID("#7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	id, err = parseBugID(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseBugID(bad)
		assert.Error(t, err, bad)
	}
}

// ---------------------------------------------------------------------------
// bugs_list and bugs_board
// ---------------------------------------------------------------------------

func TestHandleListBugs(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleListBugs(ctx, callToolReq("bugs_list", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var bugs []bugOut
	resultJSON(t, result, &bugs)
	require.Len(t, bugs, 6)
	assert.Equal(t, int64(6), bugs[0].ID)
}

func TestHandleListBugs_Query(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleListBugs(context.Background(), callToolReq("bugs_list", map[string]any{"query": "CRASH"}))
	require.NoError(t, err)

	var bugs []bugOut
	resultJSON(t, result, &bugs)
	require.Len(t, bugs, 1)
	assert.Equal(t, int64(3), bugs[0].ID)
}

func TestHandleListBugs_BadStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleListBugs(context.Background(), callToolReq("bugs_list", map[string]any{"status": "blocked"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleBoard(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleBoard(context.Background(), callToolReq("bugs_board", nil))
	require.NoError(t, err)

	var board struct {
		Todo       []bugOut `json:"todo"`
		InProgress []bugOut `json:"in-progress"`
		Resolved   []bugOut `json:"resolved"`
		Stats      struct {
			Total    int `json:"total"`
			Critical int `json:"critical"`
		} `json:"stats"`
	}
	resultJSON(t, result, &board)
	assert.Len(t, board.Todo, 2)
	assert.Len(t, board.InProgress, 2)
	assert.Len(t, board.Resolved, 2)
	assert.Equal(t, 6, board.Stats.Total)
	assert.Equal(t, 1, board.Stats.Critical)
}

// ---------------------------------------------------------------------------
// bugs_create
// ---------------------------------------------------------------------------

func TestHandleCreateBug(t *testing.T) {
	srv, ms := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleCreateBug(ctx, callToolReq("bugs_create", map[string]any{
		"title":       "Null pointer",
		"description": "Crash on save",
		"severity":    "critical",
		"tags":        "crash, ,backend,crash",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out bugOut
	resultJSON(t, result, &out)
	assert.Equal(t, int64(7), out.ID)
	assert.Equal(t, "critical", out.Severity)
	assert.Equal(t, "todo", out.Status)
	assert.Equal(t, models.DefaultAssignee, out.Assignee)
	assert.Equal(t, []string{"crash", "backend"}, out.Tags)

	stored, err := ms.GetBug(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Null pointer", stored.Title)
}

func TestHandleCreateBug_MissingTitle(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleCreateBug(context.Background(), callToolReq("bugs_create", map[string]any{"description": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "title")
}

func TestHandleCreateBug_Invalid(t *testing.T) {
	srv, ms := newTestServer(t)

	result, err := srv.handleCreateBug(context.Background(), callToolReq("bugs_create", map[string]any{
		"title":       strings.Repeat("x", 101),
		"description": "too long",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "TITLE_TOO_LONG")

	bugs, err := ms.ListBugs(context.Background())
	require.NoError(t, err)
	assert.Len(t, bugs, 6)
}

func TestHandleCreateBug_BadSeverity(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleCreateBug(context.Background(), callToolReq("bugs_create", map[string]any{
		"title":       "t",
		"description": "d",
		"severity":    "urgent",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// ---------------------------------------------------------------------------
// bugs_change_status and bugs_delete
// ---------------------------------------------------------------------------

func TestHandleChangeStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleChangeStatus(context.Background(), callToolReq("bugs_change_status", map[string]any{
		"id":     "#4",
		"status": "in_progress",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out bugOut
	resultJSON(t, result, &out)
	assert.Equal(t, "in-progress", out.Status)
}

func TestHandleChangeStatus_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleChangeStatus(context.Background(), callToolReq("bugs_change_status", map[string]any{
		"id":     "42",
		"status": "resolved",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

func TestHandleChangeStatus_MissingArgs(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleChangeStatus(context.Background(), callToolReq("bugs_change_status", map[string]any{"status": "todo"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleChangeStatus(context.Background(), callToolReq("bugs_change_status", map[string]any{"id": "4"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleDeleteBug(t *testing.T) {
	srv, ms := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleDeleteBug(ctx, callToolReq("bugs_delete", map[string]any{"id": "1"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "#1")

	_, err = ms.GetBug(ctx, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	result, err = srv.handleDeleteBug(ctx, callToolReq("bugs_delete", map[string]any{"id": "1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// ---------------------------------------------------------------------------
// bugs_comments
// ---------------------------------------------------------------------------

func TestHandleComments(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleComments(context.Background(), callToolReq("bugs_comments", map[string]any{"id": "6"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out struct {
		Bug      bugOut `json:"bug"`
		Comments []struct {
			Author string `json:"author"`
		} `json:"comments"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, int64(6), out.Bug.ID)
	require.Len(t, out.Comments, 2)
	assert.Equal(t, "Priya", out.Comments[0].Author)
}

func TestHandleComments_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleComments(context.Background(), callToolReq("bugs_comments", map[string]any{"id": "99"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
