package memory

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/memvra/branchmind/internal/db"
)

func setupTestDB(t *testing.T) (*db.DB, *Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open(dbPath, db.WithEmbeddingDimension(4))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database, NewStore(database)
}

var t0 = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func sampleTask(id, branch string, typ TaskType) Task {
	return Task{
		ID: id, BranchID: branch, ThoughtID: "thought-1", Type: typ,
		Content: "do it", Status: StatusOpen, Priority: PriorityNormal,
		CreatedAt: t0, UpdatedAt: t0,
	}
}

func TestStore_InsertTaskIfAbsent(t *testing.T) {
	_, store := setupTestDB(t)

	inserted, err := store.InsertTaskIfAbsent(sampleTask("task-a", "B1", TaskTodo))
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}
	dup := sampleTask("task-a", "B1", TaskTodo)
	dup.Content = "changed"
	inserted, err = store.InsertTaskIfAbsent(dup)
	if err != nil || inserted {
		t.Fatalf("duplicate insert: inserted=%v err=%v", inserted, err)
	}

	got, err := store.GetTask("task-a")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Content != "do it" {
		t.Errorf("existing task was overwritten: %q", got.Content)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("created_at: got %v, want %v", got.CreatedAt, t0)
	}
	if n, _ := store.CountTasks(); n != 1 {
		t.Errorf("expected 1 task, got %d", n)
	}
}

func TestStore_GetTask_NotFound(t *testing.T) {
	_, store := setupTestDB(t)
	if _, err := store.GetTask("task-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListTasks_Filter(t *testing.T) {
	_, store := setupTestDB(t)
	store.InsertTaskIfAbsent(sampleTask("task-1", "B1", TaskTodo))
	store.InsertTaskIfAbsent(sampleTask("task-2", "B2", TaskFixme))
	store.InsertTaskIfAbsent(sampleTask("task-3", "B1", TaskFixme))

	all, err := store.ListTasks(TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 tasks, got %d", len(all))
	}

	b1fix, _ := store.ListTasks(TaskFilter{BranchID: "B1", Type: TaskFixme})
	if len(b1fix) != 1 || b1fix[0].ID != "task-3" {
		t.Errorf("unexpected filtered tasks: %+v", b1fix)
	}
}

func TestStore_UpdateTask_AppendsAudit(t *testing.T) {
	_, store := setupTestDB(t)
	store.InsertTaskIfAbsent(sampleTask("task-1", "B1", TaskTodo))

	at := t0.Add(time.Hour)
	got, err := store.UpdateTask("task-1", "alice", at, func(task *Task) string {
		task.Status = StatusClosed
		return "status:open->closed"
	})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if got.Status != StatusClosed || !got.UpdatedAt.Equal(at) {
		t.Errorf("unexpected task after update: %+v", got)
	}
	if len(got.AuditTrail) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(got.AuditTrail))
	}
	if e := got.AuditTrail[0]; e.Action != "status:open->closed" || e.User != "alice" {
		t.Errorf("unexpected audit entry: %+v", e)
	}

	listed, _ := store.ListTasks(TaskFilter{Status: StatusClosed})
	if len(listed) != 1 || len(listed[0].AuditTrail) != 1 {
		t.Errorf("ListTasks should include audit trail: %+v", listed)
	}
}

func TestStore_UpdateTask_NotFound(t *testing.T) {
	_, store := setupTestDB(t)
	_, err := store.UpdateTask("task-x", "u", t0, func(*Task) string { return "noop" })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Snippets(t *testing.T) {
	_, store := setupTestDB(t)
	older := Snippet{ID: "snippet-1", Content: "fmt.Println()", Language: "go", Tags: []string{"io"}, CreatedAt: t0}
	newer := Snippet{ID: "snippet-2", Content: "SELECT 1", Language: "sql", CreatedAt: t0.Add(time.Minute)}
	for _, sn := range []Snippet{older, newer} {
		if err := store.InsertSnippet(sn); err != nil {
			t.Fatalf("InsertSnippet: %v", err)
		}
	}

	got, err := store.GetSnippet("snippet-1")
	if err != nil {
		t.Fatalf("GetSnippet: %v", err)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "io" {
		t.Errorf("tags not round-tripped: %v", got.Tags)
	}

	list, _ := store.ListSnippets(0)
	if len(list) != 2 || list[0].ID != "snippet-2" {
		t.Errorf("expected newest first, got %+v", list)
	}
	limited, _ := store.ListSnippets(1)
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d", len(limited))
	}

	if _, err := store.GetSnippet("snippet-x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2025-05-01T09:00:00Z", "2025-05-01 09:00:00", "2025-05-01T09:00:00"} {
		if got := parseTime(s); !got.Equal(t0) {
			t.Errorf("parseTime(%q) = %v", s, got)
		}
	}
	if !parseTime("garbage").IsZero() {
		t.Error("expected zero time for unparseable input")
	}
}
