package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/memvra/branchmind/internal/db"
)

// ErrNotFound is returned (wrapped) when a task or snippet id is unknown.
var ErrNotFound = errors.New("not found")

// Store provides read/write access to the branchmind SQLite database.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given DB.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Conn exposes the underlying *sql.DB for low-level queries.
func (s *Store) Conn() *sql.DB {
	return s.db.Conn()
}

// ---- Tasks ----

const taskColumns = `id, branch_id, thought_id, task_type, content, status, assignee, due, priority, match_offset, created_at, updated_at`

// InsertTaskIfAbsent stores t unless a task with the same id exists.
// It reports whether a row was written.
func (s *Store) InsertTaskIfAbsent(t Task) (bool, error) {
	res, err := s.db.Conn().Exec(`
		INSERT OR IGNORE INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.BranchID, t.ThoughtID, string(t.Type), t.Content, string(t.Status),
		t.Assignee, t.Due, t.Priority, t.Offset, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("store: insert task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetTask returns a task with its audit trail.
func (s *Store) GetTask(id string) (Task, error) {
	row := s.db.Conn().QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("store: task %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("store: get task: %w", err)
	}
	trail, err := s.auditTrail(id)
	if err != nil {
		return t, err
	}
	t.AuditTrail = trail
	return t, nil
}

// ListTasks returns tasks matching f, oldest first.
func (s *Store) ListTasks(f TaskFilter) ([]Task, error) {
	var where []string
	var args []any
	if f.BranchID != "" {
		where = append(where, "branch_id = ?")
		args = append(args, f.BranchID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Assignee != "" {
		where = append(where, "assignee = ?")
		args = append(args, f.Assignee)
	}
	if f.Type != "" {
		where = append(where, "task_type = ?")
		args = append(args, string(f.Type))
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, branch_id, thought_id, match_offset"

	rows, err := s.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// The connection pool holds a single connection; the rows above must be
	// closed before the audit queries run.
	for i := range tasks {
		trail, err := s.auditTrail(tasks[i].ID)
		if err != nil {
			return nil, err
		}
		tasks[i].AuditTrail = trail
	}
	return tasks, nil
}

// UpdateTask applies mutate to the stored task and appends an audit entry
// with the action it returns, in a single transaction.
func (s *Store) UpdateTask(id, user string, at time.Time, mutate func(*Task) string) (Task, error) {
	tx, err := s.db.Conn().BeginTx(context.Background(), nil)
	if err != nil {
		return Task{}, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := scanTask(tx.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("store: task %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Task{}, fmt.Errorf("store: get task: %w", err)
	}

	entry := AuditEntry{Action: mutate(&t), User: user, Timestamp: at}
	t.UpdatedAt = at
	if _, err := tx.Exec(
		`UPDATE tasks SET status = ?, assignee = ?, updated_at = ? WHERE id = ?`,
		string(t.Status), t.Assignee, formatTime(t.UpdatedAt), id,
	); err != nil {
		return Task{}, fmt.Errorf("store: update task: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO task_audit (task_id, action, actor, created_at) VALUES (?, ?, ?, ?)`,
		id, entry.Action, entry.User, formatTime(entry.Timestamp),
	); err != nil {
		return Task{}, fmt.Errorf("store: insert audit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Task{}, fmt.Errorf("store: commit: %w", err)
	}
	return s.GetTask(id)
}

// CountTasks returns the total number of stored tasks.
func (s *Store) CountTasks() (int, error) {
	var n int
	err := s.db.Conn().QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

func (s *Store) auditTrail(taskID string) ([]AuditEntry, error) {
	rows, err := s.db.Conn().Query(
		`SELECT action, actor, created_at FROM task_audit WHERE task_id = ? ORDER BY id`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: audit trail: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts string
		if err := rows.Scan(&e.Action, &e.User, &ts); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- Snippets ----

// InsertSnippet persists a snippet; the caller assigns the id.
func (s *Store) InsertSnippet(sn Snippet) error {
	tags := "[]"
	if len(sn.Tags) > 0 {
		b, _ := json.Marshal(sn.Tags)
		tags = string(b)
	}
	_, err := s.db.Conn().Exec(`
		INSERT INTO snippets (id, content, language, description, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sn.ID, sn.Content, sn.Language, sn.Description, tags, formatTime(sn.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("store: insert snippet: %w", err)
	}
	return nil
}

// GetSnippet returns a single snippet by its ID.
func (s *Store) GetSnippet(id string) (Snippet, error) {
	row := s.db.Conn().QueryRow(
		`SELECT id, content, language, description, tags, created_at FROM snippets WHERE id = ?`, id,
	)
	sn, err := scanSnippet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sn, fmt.Errorf("store: snippet %q: %w", id, ErrNotFound)
	}
	return sn, err
}

// ListSnippets returns up to limit snippets, newest first. limit <= 0 means all.
func (s *Store) ListSnippets(limit int) ([]Snippet, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Conn().Query(
		`SELECT id, content, language, description, tags, created_at
		 FROM snippets ORDER BY created_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list snippets: %w", err)
	}
	defer rows.Close()

	var out []Snippet
	for rows.Next() {
		sn, err := scanSnippet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// ---- Helpers ----

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (Task, error) {
	var t Task
	var typ, status, createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.BranchID, &t.ThoughtID, &typ, &t.Content, &status,
		&t.Assignee, &t.Due, &t.Priority, &t.Offset, &createdAt, &updatedAt)
	if err != nil {
		return t, err
	}
	t.Type = TaskType(typ)
	t.Status = TaskStatus(status)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func scanSnippet(row scanner) (Snippet, error) {
	var sn Snippet
	var tags, createdAt string
	if err := row.Scan(&sn.ID, &sn.Content, &sn.Language, &sn.Description, &tags, &createdAt); err != nil {
		return sn, err
	}
	if tags != "" && tags != "[]" {
		_ = json.Unmarshal([]byte(tags), &sn.Tags)
	}
	sn.CreatedAt = parseTime(createdAt)
	return sn, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime tries multiple SQLite timestamp layouts.
func parseTime(s string) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
