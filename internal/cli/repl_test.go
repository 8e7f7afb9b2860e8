package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	bmmcp "github.com/memvra/branchmind/internal/mcp"
)

func TestParseReplLine(t *testing.T) {
	tests := []struct {
		line string
		tool string
		args map[string]any
	}{
		{"branch ideas", "create_branch", map[string]any{"id": "ideas"}},
		{"branch ideas/cache ideas", "create_branch", map[string]any{"id": "ideas/cache", "parentId": "ideas"}},
		{"switch ideas", "set_active_branch", map[string]any{"id": "ideas"}},
		{"think  caching   matters", "add_thought", map[string]any{"content": "caching   matters"}},
		{"link a b Supports because", "link_thoughts", map[string]any{"fromId": "a", "toId": "b", "type": "supports", "reason": "because"}},
		{"merge a b", "merge_branches", map[string]any{"sourceId": "a", "targetId": "b"}},
		{"history", "branch_history", map[string]any{}},
		{"status ideas", "branch_status", map[string]any{"branchId": "ideas"}},
		{"search retry policy", "semantic_search", map[string]any{"query": "retry policy"}},
		{"hubs 3", "hub_thoughts", map[string]any{"limit": 3}},
		{"viz", "visualize", map[string]any{"format": "mermaid"}},
		{"viz DOT", "visualize", map[string]any{"format": "dot"}},
		{"stats", "cache_stats", map[string]any{}},
	}
	for _, tt := range tests {
		calls, err := parseReplLine(tt.line)
		if err != nil {
			t.Errorf("parseReplLine(%q): %v", tt.line, err)
			continue
		}
		if len(calls) != 1 || calls[0].tool != tt.tool {
			t.Errorf("parseReplLine(%q) = %+v, want tool %s", tt.line, calls, tt.tool)
			continue
		}
		if len(calls[0].args) != len(tt.args) {
			t.Errorf("parseReplLine(%q) args = %v, want %v", tt.line, calls[0].args, tt.args)
			continue
		}
		for k, v := range tt.args {
			if calls[0].args[k] != v {
				t.Errorf("parseReplLine(%q) args[%s] = %v, want %v", tt.line, k, calls[0].args[k], v)
			}
		}
	}
}

func TestParseReplLine_Errors(t *testing.T) {
	if _, err := parseReplLine("quit"); !errors.Is(err, errQuit) {
		t.Errorf("quit: got %v", err)
	}
	for _, line := range []string{"branch", "think", "link a b", "merge a", "hubs zero", "dance"} {
		if _, err := parseReplLine(line); err == nil {
			t.Errorf("parseReplLine(%q) should fail", line)
		}
	}
	calls, err := parseReplLine("tasks")
	if err != nil || len(calls) != 2 || calls[0].tool != "extract_tasks" {
		t.Errorf("tasks = %+v, %v", calls, err)
	}
}

func TestRunRepl_Script(t *testing.T) {
	root := isolate(t)
	sess, err := openSession(root)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	defer sess.Close()

	script := strings.Join([]string{
		"# comments and blank lines are skipped",
		"",
		"branch ideas",
		"think TODO(bob): benchmark the cache by 2030-01-01",
		"think caching keeps embeddings warm",
		"tasks",
		"switch nowhere",
		"viz",
		"quit",
		"think never reached",
	}, "\n")

	var out bytes.Buffer
	srv := bmmcp.NewServer(sess, "test", logger)
	if err := runRepl(context.Background(), srv, strings.NewReader(script), &out, false); err != nil {
		t.Fatalf("runRepl: %v", err)
	}

	got := out.String()
	for _, want := range []string{"benchmark the cache", "not_found", "flowchart LR"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "branchmind>") {
		t.Error("non-interactive run should not print prompts")
	}
	if strings.Contains(got, "never reached") {
		t.Error("commands after quit should not run")
	}

	b, err := sess.GetBranch("ideas")
	if err != nil {
		t.Fatalf("GetBranch: %v", err)
	}
	if len(b.Thoughts) != 2 {
		t.Errorf("ideas has %d thoughts, want 2", len(b.Thoughts))
	}
}
