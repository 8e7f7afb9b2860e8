package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvra/branchmind/internal/adapter"
	"github.com/memvra/branchmind/internal/config"
	"github.com/memvra/branchmind/internal/memory"
	"github.com/memvra/branchmind/internal/session"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	local := adapter.NewLocal(0)
	sess, err := session.Open(session.Options{
		Root:         t.TempDir(),
		Config:       config.Default(),
		Embedder:     local,
		Summarizer:   local,
		NoDiskCache:  true,
		ApproxTokens: true,
		Now:          func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return NewServer(sess, "test", nil)
}

func call(t *testing.T, s *Server, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := s.Call(context.Background(), name, args)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestToolsRegistered(t *testing.T) {
	s := newServer(t)
	names := s.ToolNames()
	for _, want := range []string{
		"create_branch", "add_thought", "add_thoughts", "link_thoughts", "merge_branches", "set_active_branch",
		"get_branch", "list_branches", "get_active_branch", "branch_history", "branch_status", "get_insights",
		"get_cross_references", "recompute", "hub_thoughts", "semantic_search", "visualize",
		"summarize_branch", "summarize_thought", "extract_tasks", "list_tasks", "summarize_tasks",
		"update_task_status", "assign_task", "add_snippet", "search_snippets", "cache_stats", "clear_cache",
	} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, s.MCPServer())
}

func TestThoughtAndTaskFlow(t *testing.T) {
	s := newServer(t)

	_, isErr := call(t, s, "create_branch", map[string]any{"id": "B1"})
	require.False(t, isErr)

	out, isErr := call(t, s, "add_thought", map[string]any{
		"content":    "TODO(alice): fix bug by 2025-06-01",
		"branchId":   "B1",
		"confidence": 0.9,
		"keyPoints":  []any{"bug"},
	})
	require.False(t, isErr, out)
	assert.Contains(t, out, `"branchId": "B1"`)

	out, isErr = call(t, s, "extract_tasks", map[string]any{"branchId": "B1"})
	require.False(t, isErr, out)
	var tasks []memory.Task
	require.NoError(t, json.Unmarshal([]byte(out), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "alice", tasks[0].Assignee)

	out, isErr = call(t, s, "update_task_status", map[string]any{"taskId": tasks[0].ID, "status": "closed", "user": "bob"})
	require.False(t, isErr, out)
	assert.Contains(t, out, "status:open->closed")

	out, _ = call(t, s, "list_tasks", map[string]any{"status": "open"})
	assert.Equal(t, "No tasks found.", out)
}

func TestBatchAndSearch(t *testing.T) {
	s := newServer(t)
	out, isErr := call(t, s, "add_thoughts", map[string]any{"thoughts": []any{
		map[string]any{"content": "badger keeps embeddings on disk", "branchId": "storage"},
		map[string]any{"content": "k-means groups nodes into clusters", "branchId": "viz"},
	}})
	require.False(t, isErr, out)

	out, isErr = call(t, s, "semantic_search", map[string]any{"query": "embeddings on disk", "limit": 1})
	require.False(t, isErr, out)
	assert.Contains(t, out, "badger keeps embeddings on disk")
	assert.NotContains(t, out, "k-means")

	out, isErr = call(t, s, "visualize", map[string]any{"format": "mermaid", "level": "detailed"})
	require.False(t, isErr, out)
	assert.True(t, strings.HasPrefix(out, "flowchart LR"))

	out, isErr = call(t, s, "cache_stats", nil)
	require.False(t, isErr)
	assert.Contains(t, out, `"embeddings"`)
}

func TestErrorsArePrefixedByKind(t *testing.T) {
	s := newServer(t)

	out, isErr := call(t, s, "add_thought", map[string]any{"content": "   "})
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(out, "validation:"), out)

	out, isErr = call(t, s, "get_branch", map[string]any{"id": "missing"})
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(out, "not_found:"), out)

	out, isErr = call(t, s, "visualize", map[string]any{"format": "png"})
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(out, "validation:"), out)

	out, isErr = call(t, s, "clear_cache", map[string]any{"tier": "bogus"})
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(out, "validation:"), out)

	out, isErr = call(t, s, "no_such_tool", nil)
	assert.True(t, isErr)
	assert.Contains(t, out, "unknown tool")

	out, isErr = call(t, s, "link_thoughts", map[string]any{"fromId": "a", "toId": "b", "type": "supports"})
	assert.False(t, isErr)
	assert.Contains(t, out, "unknown thought id")
}

func TestPanicsBecomeInternalErrors(t *testing.T) {
	s := newServer(t)
	h := s.guard("boom", func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		panic("kaboom")
	})
	res, err := h(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.True(t, res.IsError)
	text := res.Content[0].(mcp.TextContent).Text
	assert.True(t, strings.HasPrefix(text, "internal:"), text)
	assert.Contains(t, text, "kaboom")

	// The lock is released after a panic.
	_, isErr := call(t, s, "list_branches", nil)
	assert.False(t, isErr)
}
