package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/memvra/branchmind/internal/errs"
	"github.com/memvra/branchmind/internal/graph"
)

type staticEmbedder struct {
	vecs map[string][]float32
	err  error
}

func (e staticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vecs[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0, 1}, nil
}

func setupService(t *testing.T, emb Embedder) (*Service, *Store) {
	t.Helper()
	database, store := setupTestDB(t)
	svc := NewService(store, NewVectorStore(database), emb, nil)
	svc.SetClock(func() time.Time { return t0 })
	return svc, store
}

func TestService_ExtractTasks_EndToEnd(t *testing.T) {
	svc, _ := setupService(t, nil)
	thoughts := []*graph.Thought{{ID: "thought-1", BranchID: "B1", Content: "TODO(alice): fix bug by 2025-06-01"}}

	tasks := svc.ExtractTasks(thoughts)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	got := tasks[0]
	if got.Type != TaskTodo || got.Assignee != "alice" || got.Due != "2025-06-01" || got.Status != StatusOpen {
		t.Errorf("unexpected task: %+v", got)
	}
	if got.Content != "fix bug" || got.BranchID != "B1" || got.ThoughtID != "thought-1" {
		t.Errorf("unexpected task fields: %+v", got)
	}
}

func TestService_ExtractTasks_Idempotent(t *testing.T) {
	svc, store := setupService(t, nil)
	thoughts := []*graph.Thought{
		{ID: "thought-1", BranchID: "B1", Content: "TODO: a\nFIXME: b"},
		{ID: "thought-2", BranchID: "B1", Content: "no markers here"},
	}

	first := svc.ExtractTasks(thoughts)
	second := svc.ExtractTasks(thoughts)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 tasks per run, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("task %d id changed: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
	if n, _ := store.CountTasks(); n != 2 {
		t.Errorf("expected 2 stored tasks, got %d", n)
	}
}

func TestService_ExtractTasks_KeepsUpdates(t *testing.T) {
	svc, _ := setupService(t, nil)
	thoughts := []*graph.Thought{{ID: "thought-1", BranchID: "B1", Content: "TODO: a"}}
	id := svc.ExtractTasks(thoughts)[0].ID

	if _, err := svc.UpdateTaskStatus(id, StatusClosed, "bob"); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	again := svc.ExtractTasks(thoughts)
	if again[0].Status != StatusClosed {
		t.Errorf("re-extraction reset status to %q", again[0].Status)
	}
}

func TestService_UpdateTaskStatus(t *testing.T) {
	svc, _ := setupService(t, nil)
	id := svc.ExtractTasks([]*graph.Thought{{ID: "thought-1", BranchID: "B1", Content: "TASK: ship"}})[0].ID

	got, err := svc.UpdateTaskStatus(id, "IN_PROGRESS", "alice")
	if err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Errorf("status = %q", got.Status)
	}
	if len(got.AuditTrail) != 1 || got.AuditTrail[0].Action != "status:open->in_progress" || got.AuditTrail[0].User != "alice" {
		t.Errorf("unexpected audit trail: %+v", got.AuditTrail)
	}

	if _, err := svc.UpdateTaskStatus(id, "done", "alice"); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("invalid status: expected validation error, got %v", err)
	}
	if _, err := svc.UpdateTaskStatus("task-unknown", StatusClosed, "alice"); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("unknown task: expected validation error, got %v", err)
	}
}

func TestService_AssignTask(t *testing.T) {
	svc, _ := setupService(t, nil)
	id := svc.ExtractTasks([]*graph.Thought{{ID: "thought-1", BranchID: "B1", Content: "ACTION: call"}})[0].ID

	got, err := svc.AssignTask(id, "carol", "alice")
	if err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if got.Assignee != "carol" || got.AuditTrail[0].Action != "assign:carol" {
		t.Errorf("unexpected task: %+v", got)
	}
	if _, err := svc.AssignTask(id, " ", "alice"); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_SummarizeTasks(t *testing.T) {
	svc, _ := setupService(t, nil)
	svc.ExtractTasks([]*graph.Thought{{ID: "thought-1", BranchID: "B1", Content: "TODO: late by 2025-04-01\nFIXME: soon by 2025-06-01\nTODO: whenever"}})

	sum := svc.SummarizeTasks()
	if sum.Total != 3 || sum.ByStatus[StatusOpen] != 3 || sum.ByType[TaskTodo] != 2 || sum.ByType[TaskFixme] != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if len(sum.Overdue) != 1 || sum.Overdue[0].Content != "late" {
		t.Errorf("unexpected overdue list: %+v", sum.Overdue)
	}
}

func TestService_ReadsDegradeWhenDatabaseClosed(t *testing.T) {
	database, store := setupTestDB(t)
	svc := NewService(store, NewVectorStore(database), nil, nil)
	database.Close()

	if got := svc.ListTasks(TaskFilter{}); got != nil {
		t.Errorf("expected empty list, got %v", got)
	}
	tasks := svc.ExtractTasks([]*graph.Thought{{ID: "thought-1", BranchID: "B1", Content: "TODO: x"}})
	if len(tasks) != 1 {
		t.Errorf("extraction should still report parsed tasks, got %d", len(tasks))
	}
	if _, err := svc.UpdateTaskStatus(tasks[0].ID, StatusClosed, "u"); !errs.IsKind(err, errs.KindPersistence) {
		t.Errorf("expected persistence error, got %v", err)
	}
}

func TestService_Snippets(t *testing.T) {
	emb := staticEmbedder{vecs: map[string][]float32{
		"prints\nfmt.Println()": {1, 0, 0, 0},
		"SELECT 1":              {0, 1, 0, 0},
		"printing":              {0.9, 0.1, 0, 0},
	}}
	svc, _ := setupService(t, emb)

	if _, err := svc.AddSnippet(context.Background(), SnippetInput{Content: "  "}); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	a, err := svc.AddSnippet(context.Background(), SnippetInput{Content: "fmt.Println()", Description: "prints", Language: "go"})
	if err != nil {
		t.Fatalf("AddSnippet: %v", err)
	}
	if _, err := svc.AddSnippet(context.Background(), SnippetInput{Content: "SELECT 1"}); err != nil {
		t.Fatalf("AddSnippet: %v", err)
	}
	if got := svc.ListSnippets(0); len(got) != 2 {
		t.Errorf("expected 2 snippets, got %d", len(got))
	}

	if !svc.vectors.Enabled() {
		t.Skip("sqlite-vec not available")
	}
	hits, err := svc.SearchSnippets(context.Background(), "printing", 1)
	if err != nil {
		t.Fatalf("SearchSnippets: %v", err)
	}
	if len(hits) != 1 || hits[0].Snippet.ID != a.ID {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestService_SearchSnippets_GatewayError(t *testing.T) {
	svc, _ := setupService(t, staticEmbedder{err: errs.Gateway("embed", errors.New("down"))})
	if !svc.vectors.Enabled() {
		t.Skip("sqlite-vec not available")
	}
	if _, err := svc.SearchSnippets(context.Background(), "x", 3); !errs.IsKind(err, errs.KindTransientGateway) {
		t.Errorf("expected gateway error, got %v", err)
	}
}
