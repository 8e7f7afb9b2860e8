package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/memvra/branchmind/internal/errs"
	"github.com/memvra/branchmind/internal/export"
	"github.com/memvra/branchmind/internal/graph"
	"github.com/memvra/branchmind/internal/memory"
	"github.com/memvra/branchmind/internal/visualize"
)

func (s *Server) registerTools() {
	// ---- Mutation ----
	s.add(mcp.NewTool("create_branch",
		mcp.WithDescription("Create an empty branch if it does not exist. The first branch becomes active."),
		mcp.WithString("id", mcp.Description("Branch id; generated when empty")),
		mcp.WithString("parentId", mcp.Description("Optional parent branch id")),
	), s.handleCreateBranch)

	s.add(mcp.NewTool("add_thought",
		mcp.WithDescription("Add a thought to a branch (explicit id, else the active branch, else a new one)."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Thought text")),
		mcp.WithString("branchId", mcp.Description("Target branch; created on demand")),
		mcp.WithString("parentBranchId", mcp.Description("Parent for a newly created branch")),
		mcp.WithString("type", mcp.Description("Free-form thought type (default analysis)")),
		mcp.WithNumber("confidence", mcp.Description("Confidence in [0,1] (default 0.5)")),
		mcp.WithArray("keyPoints", mcp.Items(map[string]any{"type": "string"}), mcp.Description("Key points")),
		mcp.WithArray("crossRefs", mcp.Items(map[string]any{"type": "object"}),
			mcp.Description("Branch cross-references: {toBranch, type, reason, strength, touchpoints}")),
	), s.handleAddThought)

	s.add(mcp.NewTool("add_thoughts",
		mcp.WithDescription("Add a batch of thoughts. The batch is validated first; an invalid item aborts it."),
		mcp.WithArray("thoughts", mcp.Required(), mcp.Items(map[string]any{"type": "object"}),
			mcp.Description("Thought inputs with the same fields as add_thought")),
	), s.handleAddThoughts)

	s.add(mcp.NewTool("link_thoughts",
		mcp.WithDescription("Record an explicit link between two thoughts."),
		mcp.WithString("fromId", mcp.Required()),
		mcp.WithString("toId", mcp.Required()),
		mcp.WithString("type", mcp.Required(), mcp.Enum("supports", "contradicts", "related", "expands", "refines")),
		mcp.WithString("reason"),
	), s.handleLinkThoughts)

	s.add(mcp.NewTool("merge_branches",
		mcp.WithDescription("Move every thought, insight and cross-reference of source into target, then delete source."),
		mcp.WithString("sourceId", mcp.Required()),
		mcp.WithString("targetId", mcp.Required()),
	), s.handleMergeBranches)

	s.add(mcp.NewTool("set_active_branch",
		mcp.WithDescription("Switch the active branch."),
		mcp.WithString("id", mcp.Required()),
	), s.handleSetActiveBranch)

	// ---- Query ----
	s.add(mcp.NewTool("get_branch",
		mcp.WithDescription("Return a branch with its thoughts as JSON."),
		mcp.WithString("id", mcp.Required()),
	), s.handleGetBranch)

	s.add(mcp.NewTool("list_branches",
		mcp.WithDescription("List every branch with its metrics."),
	), s.handleListBranches)

	s.add(mcp.NewTool("get_active_branch",
		mcp.WithDescription("Return the active branch as JSON."),
	), s.handleGetActiveBranch)

	s.add(mcp.NewTool("branch_history",
		mcp.WithDescription("Render the markdown history of a branch (default: active)."),
		mcp.WithString("branchId"),
	), s.handleBranchHistory)

	s.add(mcp.NewTool("branch_status",
		mcp.WithDescription("Render a short status block of a branch (default: active)."),
		mcp.WithString("branchId"),
	), s.handleBranchStatus)

	s.add(mcp.NewTool("get_insights",
		mcp.WithDescription("Return the latest insights of a branch (default: active)."),
		mcp.WithString("branchId"),
		mcp.WithNumber("limit", mcp.Description("Latest N insights; 0 for all")),
	), s.handleGetInsights)

	s.add(mcp.NewTool("get_cross_references",
		mcp.WithDescription("Return branch-level and computed thought-level cross-references of a branch."),
		mcp.WithString("branchId"),
	), s.handleCrossRefs)

	s.add(mcp.NewTool("recompute",
		mcp.WithDescription("Run a full cross-reference and scoring pass."),
	), s.handleRecompute)

	s.add(mcp.NewTool("hub_thoughts",
		mcp.WithDescription("Top thoughts by score plus degree from the last pass."),
		mcp.WithNumber("limit", mcp.DefaultNumber(5)),
	), s.handleHubThoughts)

	s.add(mcp.NewTool("semantic_search",
		mcp.WithDescription("Recompute, then rank every thought against a query."),
		mcp.WithString("query", mcp.Required()),
		mcp.WithNumber("limit", mcp.DefaultNumber(5)),
	), s.handleSemanticSearch)

	s.add(mcp.NewTool("visualize",
		mcp.WithDescription("Project branches into nodes and edges, optionally clustered and centrality-annotated."),
		mcp.WithArray("branches", mcp.Items(map[string]any{"type": "string"}), mcp.Description("Branch ids; empty for all")),
		mcp.WithString("level", mcp.Enum(string(visualize.LevelBasic), string(visualize.LevelDetailed), string(visualize.LevelFull))),
		mcp.WithBoolean("cluster"),
		mcp.WithBoolean("centrality"),
		mcp.WithString("focus", mcp.Description("Node id to highlight")),
		mcp.WithString("format", mcp.Enum(export.ValidFormats()...), mcp.Description("Output format (default json)")),
	), s.handleVisualize)

	s.add(mcp.NewTool("summarize_branch",
		mcp.WithDescription("Summarize a branch (default: active). Cached until the branch changes or the TTL expires."),
		mcp.WithString("branchId"),
	), s.handleSummarizeBranch)

	s.add(mcp.NewTool("summarize_thought",
		mcp.WithDescription("Summarize a single thought."),
		mcp.WithString("thoughtId", mcp.Required()),
	), s.handleSummarizeThought)

	// ---- Tasks and snippets ----
	s.add(mcp.NewTool("extract_tasks",
		mcp.WithDescription("Extract TODO/FIXME/ACTION/TASK markers from one branch, or all branches."),
		mcp.WithString("branchId"),
	), s.handleExtractTasks)

	s.add(mcp.NewTool("list_tasks",
		mcp.WithDescription("List stored tasks."),
		mcp.WithString("branchId"),
		mcp.WithString("status", mcp.Enum("open", "in_progress", "closed")),
		mcp.WithString("assignee"),
		mcp.WithString("type", mcp.Enum("TODO", "FIXME", "ACTION", "TASK")),
	), s.handleListTasks)

	s.add(mcp.NewTool("summarize_tasks",
		mcp.WithDescription("Count tasks by status and type, and list overdue ones."),
	), s.handleSummarizeTasks)

	s.add(mcp.NewTool("update_task_status",
		mcp.WithDescription("Change a task's status; the transition is recorded in its audit trail."),
		mcp.WithString("taskId", mcp.Required()),
		mcp.WithString("status", mcp.Required(), mcp.Enum("open", "in_progress", "closed")),
		mcp.WithString("user"),
	), s.handleUpdateTaskStatus)

	s.add(mcp.NewTool("assign_task",
		mcp.WithDescription("Assign a task; recorded in its audit trail."),
		mcp.WithString("taskId", mcp.Required()),
		mcp.WithString("assignee", mcp.Required()),
		mcp.WithString("user"),
	), s.handleAssignTask)

	s.add(mcp.NewTool("add_snippet",
		mcp.WithDescription("Store a code snippet and index it for semantic search."),
		mcp.WithString("content", mcp.Required()),
		mcp.WithString("language"),
		mcp.WithString("description"),
		mcp.WithArray("tags", mcp.Items(map[string]any{"type": "string"})),
	), s.handleAddSnippet)

	s.add(mcp.NewTool("search_snippets",
		mcp.WithDescription("Rank stored snippets against a query."),
		mcp.WithString("query", mcp.Required()),
		mcp.WithNumber("limit", mcp.DefaultNumber(5)),
	), s.handleSearchSnippets)

	// ---- Cache ----
	s.add(mcp.NewTool("cache_stats",
		mcp.WithDescription("Entry counts and hit/miss counters of every cache tier."),
	), s.handleCacheStats)

	s.add(mcp.NewTool("clear_cache",
		mcp.WithDescription("Clear one cache tier, or all of them."),
		mcp.WithString("tier", mcp.Enum("embeddings", "persistent", "summaries", "formatting", "all")),
	), s.handleClearCache)
}

// ---- Mutation ----

func (s *Server) handleCreateBranch(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := s.sess.CreateBranch(req.GetString("id", ""), req.GetString("parentId", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(b)
}

func (s *Server) handleAddThought(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in graph.ThoughtInput
	if err := bind("addThought", req, &in); err != nil {
		return errorResult(err), nil
	}
	t, err := s.sess.AddThought(in)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(t)
}

func (s *Server) handleAddThoughts(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Thoughts []graph.ThoughtInput `json:"thoughts"`
	}
	if err := bind("addThoughts", req, &args); err != nil {
		return errorResult(err), nil
	}
	t, err := s.sess.AddThoughts(args.Thoughts)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(t)
}

func (s *Server) handleLinkThoughts(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("fromId")
	if err != nil {
		return errorResult(errs.Validation("linkThoughts", "missing required parameter: fromId")), nil
	}
	to, err := req.RequireString("toId")
	if err != nil {
		return errorResult(errs.Validation("linkThoughts", "missing required parameter: toId")), nil
	}
	typ := graph.LinkType(req.GetString("type", ""))
	ok, err := s.sess.LinkThoughts(from, to, typ, req.GetString("reason", ""))
	if err != nil {
		return errorResult(err), nil
	}
	if !ok {
		return mcp.NewToolResultText("Not linked: unknown thought id."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Linked %s -[%s]-> %s.", from, typ, to)), nil
}

func (s *Server) handleMergeBranches(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := s.sess.MergeBranches(req.GetString("sourceId", ""), req.GetString("targetId", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(b)
}

func (s *Server) handleSetActiveBranch(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if err := s.sess.SetActiveBranch(id); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Active branch: %s", id)), nil
}

// ---- Query ----

func (s *Server) handleGetBranch(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := s.sess.GetBranch(req.GetString("id", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(b)
}

func (s *Server) handleListBranches(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type row struct {
		ID         string  `json:"id"`
		Parent     string  `json:"parentBranchId,omitempty"`
		State      string  `json:"state"`
		Thoughts   int     `json:"thoughts"`
		Priority   float64 `json:"priority"`
		Confidence float64 `json:"confidence"`
		Score      float64 `json:"score"`
		Active     bool    `json:"active,omitempty"`
	}
	active, _ := s.sess.ActiveBranch()
	var rows []row
	for _, b := range s.sess.Branches() {
		rows = append(rows, row{
			ID: b.ID, Parent: b.ParentBranchID, State: string(b.State), Thoughts: len(b.Thoughts),
			Priority: b.Priority, Confidence: b.Confidence, Score: b.Score,
			Active: active != nil && active.ID == b.ID,
		})
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("No branches yet."), nil
	}
	return jsonResult(rows)
}

func (s *Server) handleGetActiveBranch(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := s.sess.ActiveBranch()
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(b)
}

func (s *Server) handleBranchHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.sess.BranchHistory(req.GetString("branchId", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleBranchStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.sess.BranchStatus(req.GetString("branchId", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleGetInsights(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	insights, err := s.sess.Insights(req.GetString("branchId", ""), req.GetInt("limit", 0))
	if err != nil {
		return errorResult(err), nil
	}
	if len(insights) == 0 {
		return mcp.NewToolResultText("No insights yet."), nil
	}
	return jsonResult(insights)
}

func (s *Server) handleCrossRefs(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.sess.CrossRefs(req.GetString("branchId", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(report)
}

func (s *Server) handleRecompute(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.sess.Recompute(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Recomputed %d thoughts: %d direct and %d multi-hop references in %s.",
		stats.Thoughts, stats.DirectRefs, stats.MultiHopRefs, stats.Duration.Round(time.Microsecond))), nil
}

func (s *Server) handleHubThoughts(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hubs := s.sess.HubThoughts(req.GetInt("limit", 5))
	if len(hubs) == 0 {
		return mcp.NewToolResultText("No thoughts yet."), nil
	}
	var sb strings.Builder
	for i, h := range hubs {
		fmt.Fprintf(&sb, "%d. %s [%s] rank %.2f: %s\n", i+1, h.Thought.ID, h.Thought.BranchID, h.Rank, h.Thought.Content)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleSemanticSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, err := s.sess.SemanticSearch(ctx, req.GetString("query", ""), req.GetInt("limit", 5))
	if err != nil {
		return errorResult(err), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No results found."), nil
	}
	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "- %s [%s] (%.2f) %s\n", r.Thought.ID, r.Thought.BranchID, r.Similarity, r.Thought.Content)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleVisualize(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		visualize.Options
		Format string `json:"format"`
	}
	if err := bind("visualize", req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Format == "" {
		args.Format = "json"
	}
	exp, ok := export.Get(args.Format)
	if !ok {
		return errorResult(errs.Validation("visualize", "unknown format %q (valid: %s)",
			args.Format, strings.Join(export.ValidFormats(), ", "))), nil
	}
	g, err := s.sess.Visualize(args.Options)
	if err != nil {
		return errorResult(err), nil
	}
	out, err := exp.Export(export.ExportData{Graph: g})
	if err != nil {
		return errorResult(errs.Internal("visualize", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleSummarizeBranch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.sess.SummarizeBranch(ctx, req.GetString("branchId", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleSummarizeThought(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.sess.SummarizeThought(ctx, req.GetString("thoughtId", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(out), nil
}

// ---- Tasks and snippets ----

func (s *Server) handleExtractTasks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := s.sess.ExtractTasks(req.GetString("branchId", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return tasksResult(tasks)
}

func (s *Server) handleListTasks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks := s.sess.ListTasks(memory.TaskFilter{
		BranchID: req.GetString("branchId", ""),
		Status:   memory.TaskStatus(req.GetString("status", "")),
		Assignee: req.GetString("assignee", ""),
		Type:     memory.TaskType(strings.ToUpper(req.GetString("type", ""))),
	})
	return tasksResult(tasks)
}

func tasksResult(tasks []memory.Task) (*mcp.CallToolResult, error) {
	if len(tasks) == 0 {
		return mcp.NewToolResultText("No tasks found."), nil
	}
	return jsonResult(tasks)
}

func (s *Server) handleSummarizeTasks(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sess.SummarizeTasks())
}

func (s *Server) handleUpdateTaskStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := s.sess.UpdateTaskStatus(req.GetString("taskId", ""),
		memory.TaskStatus(req.GetString("status", "")), req.GetString("user", "mcp"))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(t)
}

func (s *Server) handleAssignTask(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := s.sess.AssignTask(req.GetString("taskId", ""), req.GetString("assignee", ""), req.GetString("user", "mcp"))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(t)
}

func (s *Server) handleAddSnippet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in memory.SnippetInput
	if err := bind("addSnippet", req, &in); err != nil {
		return errorResult(err), nil
	}
	sn, err := s.sess.AddSnippet(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Snippet stored (id: %s)", sn.ID)), nil
}

func (s *Server) handleSearchSnippets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hits, err := s.sess.SearchSnippets(ctx, req.GetString("query", ""), req.GetInt("limit", 5))
	if err != nil {
		return errorResult(err), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("No snippets found."), nil
	}
	var sb strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&sb, "### %s (%.2f) %s\n```%s\n%s\n```\n\n", h.Snippet.ID, h.Similarity, h.Snippet.Description, h.Snippet.Language, h.Snippet.Content)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// ---- Cache ----

func (s *Server) handleCacheStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sess.CacheStats())
}

func (s *Server) handleClearCache(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tier := req.GetString("tier", "all")
	if err := s.sess.ClearCache(tier); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Cleared %s cache.", tier)), nil
}
