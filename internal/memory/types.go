// Package memory is the persistent side of branchmind: tasks extracted from
// thought markers with their audit trail, and code snippets with an optional
// vector index. It survives restarts independently of the in-memory graph.
package memory

import "time"

// TaskType is the marker keyword a task was extracted from.
type TaskType string

const (
	TaskTodo   TaskType = "TODO"
	TaskFixme  TaskType = "FIXME"
	TaskAction TaskType = "ACTION"
	TaskTask   TaskType = "TASK"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusInProgress TaskStatus = "in_progress"
	StatusClosed     TaskStatus = "closed"
)

// ValidTaskStatus returns true if s is a recognised status.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// AuditEntry records one change to a task.
type AuditEntry struct {
	Action    string    `json:"action"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is a work item found in a thought.
type Task struct {
	ID         string       `json:"id"`
	BranchID   string       `json:"branch_id"`
	ThoughtID  string       `json:"thought_id"`
	Type       TaskType     `json:"type"`
	Content    string       `json:"content"`
	Status     TaskStatus   `json:"status"`
	Assignee   string       `json:"assignee,omitempty"`
	Due        string       `json:"due,omitempty"` // YYYY-MM-DD
	Priority   string       `json:"priority"`
	Offset     int          `json:"offset"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	AuditTrail []AuditEntry `json:"audit_trail,omitempty"`
}

// TaskFilter narrows ListTasks. Empty fields match everything.
type TaskFilter struct {
	BranchID string
	Status   TaskStatus
	Assignee string
	Type     TaskType
}

// TaskSummary aggregates the task list.
type TaskSummary struct {
	Total    int                `json:"total"`
	ByStatus map[TaskStatus]int `json:"by_status"`
	ByType   map[TaskType]int   `json:"by_type"`
	Overdue  []Task             `json:"overdue,omitempty"`
}

// Snippet is a stored piece of code or text worth retrieving later.
type Snippet struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Language    string    `json:"language,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SnippetInput is the caller-supplied part of a new snippet.
type SnippetInput struct {
	Content     string   `json:"content" validate:"required"`
	Language    string   `json:"language" validate:"omitempty,max=32"`
	Description string   `json:"description"`
	Tags        []string `json:"tags" validate:"dive,required"`
}

// SnippetHit is a snippet search result.
type SnippetHit struct {
	Snippet    Snippet `json:"snippet"`
	Similarity float64 `json:"similarity"`
}
