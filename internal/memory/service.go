package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memvra/branchmind/internal/errs"
	"github.com/memvra/branchmind/internal/graph"
)

// Embedder turns text into a vector; the session passes the cache resolver.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service coordinates task extraction, task updates and snippet storage.
// Reads follow the best-effort policy: a failing database yields empty
// results and a warning, never an error.
type Service struct {
	store    *Store
	vectors  *VectorStore
	embedder Embedder
	validate *validator.Validate
	now      func() time.Time
	log      *zap.Logger
}

// NewService creates a Service. embedder may be nil, in which case snippets
// are stored without embeddings and snippet search returns nothing.
func NewService(store *Store, vectors *VectorStore, embedder Embedder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		validate: validator.New(),
		now:      time.Now,
		log:      log,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ExtractTasks scans thoughts for markers, stores tasks not seen before and
// returns one task per marker found. Previously stored tasks are returned as
// stored, so status changes and assignments survive re-extraction.
func (s *Service) ExtractTasks(thoughts []*graph.Thought) []Task {
	now := s.now().UTC()
	var out []Task
	for _, th := range thoughts {
		for _, m := range ParseMarkers(th.Content) {
			task := NewTask(th.BranchID, th.ID, m, now)
			errs.Try(s.log, "insert task", func() error {
				_, err := s.store.InsertTaskIfAbsent(task)
				return err
			})
			stored := errs.OrEmpty(s.log, "load task", func() (Task, error) {
				return s.store.GetTask(task.ID)
			})
			if stored.ID == "" {
				stored = task
			}
			out = append(out, stored)
		}
	}
	return out
}

// UpdateTaskStatus moves a task to status and records the transition.
func (s *Service) UpdateTaskStatus(id string, status TaskStatus, user string) (Task, error) {
	const op = "update task status"
	status = TaskStatus(strings.ToLower(string(status)))
	if !ValidTaskStatus(status) {
		return Task{}, errs.Validation(op, "invalid status %q (want open, in_progress or closed)", status)
	}
	return s.mutate(op, id, user, func(t *Task) string {
		action := fmt.Sprintf("status:%s->%s", t.Status, status)
		t.Status = status
		return action
	})
}

// AssignTask sets the assignee of a task and records who did it.
func (s *Service) AssignTask(id, assignee, user string) (Task, error) {
	const op = "assign task"
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return Task{}, errs.Validation(op, "assignee must not be empty")
	}
	return s.mutate(op, id, user, func(t *Task) string {
		t.Assignee = assignee
		return "assign:" + assignee
	})
}

func (s *Service) mutate(op, id, user string, apply func(*Task) string) (Task, error) {
	t, err := s.store.UpdateTask(id, user, s.now().UTC(), apply)
	if errors.Is(err, ErrNotFound) {
		return Task{}, errs.Validation(op, "unknown task id %q", id)
	}
	if err != nil {
		return Task{}, errs.Persistence(op, err)
	}
	return t, nil
}

// ListTasks returns stored tasks matching f.
func (s *Service) ListTasks(f TaskFilter) []Task {
	return errs.OrEmpty(s.log, "list tasks", func() ([]Task, error) {
		return s.store.ListTasks(f)
	})
}

// SummarizeTasks counts tasks by status and type and lists open tasks whose
// due date has passed.
func (s *Service) SummarizeTasks() TaskSummary {
	tasks := s.ListTasks(TaskFilter{})
	sum := TaskSummary{
		Total:    len(tasks),
		ByStatus: make(map[TaskStatus]int),
		ByType:   make(map[TaskType]int),
	}
	today := s.now().UTC().Format("2006-01-02")
	for _, t := range tasks {
		sum.ByStatus[t.Status]++
		sum.ByType[t.Type]++
		// YYYY-MM-DD compares correctly as a string.
		if t.Status != StatusClosed && t.Due != "" && t.Due < today {
			sum.Overdue = append(sum.Overdue, t)
		}
	}
	return sum
}

// AddSnippet stores a snippet and indexes its embedding when possible.
func (s *Service) AddSnippet(ctx context.Context, in SnippetInput) (Snippet, error) {
	const op = "add snippet"
	in.Content = strings.TrimSpace(in.Content)
	if err := s.validate.Struct(in); err != nil {
		return Snippet{}, errs.Validation(op, "invalid snippet: %v", err)
	}
	sn := Snippet{
		ID:          "snippet-" + uuid.NewString()[:8],
		Content:     in.Content,
		Language:    in.Language,
		Description: in.Description,
		Tags:        in.Tags,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.InsertSnippet(sn); err != nil {
		return Snippet{}, errs.Persistence(op, err)
	}
	if s.embedder != nil && s.vectors.Enabled() {
		errs.Try(s.log, "index snippet", func() error {
			vec, err := s.embedder.Embed(ctx, snippetText(sn))
			if err != nil {
				return err
			}
			return s.vectors.UpsertSnippetEmbedding(sn.ID, vec)
		})
	}
	return sn, nil
}

// ListSnippets returns up to limit snippets, newest first.
func (s *Service) ListSnippets(limit int) []Snippet {
	return errs.OrEmpty(s.log, "list snippets", func() ([]Snippet, error) {
		return s.store.ListSnippets(limit)
	})
}

// SearchSnippets returns the snippets nearest to query. A gateway failure
// while embedding the query is returned; an unavailable index yields no hits.
func (s *Service) SearchSnippets(ctx context.Context, query string, topK int) ([]SnippetHit, error) {
	const op = "search snippets"
	if strings.TrimSpace(query) == "" {
		return nil, errs.Validation(op, "query must not be empty")
	}
	if topK <= 0 {
		topK = 5
	}
	if s.embedder == nil || !s.vectors.Enabled() {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	matches := errs.OrEmpty(s.log, op, func() ([]VectorMatch, error) {
		return s.vectors.SearchSnippets(vec, topK, 0)
	})
	var hits []SnippetHit
	for _, m := range matches {
		sn := errs.OrEmpty(s.log, "load snippet", func() (Snippet, error) {
			return s.store.GetSnippet(m.ID)
		})
		if sn.ID == "" {
			continue
		}
		hits = append(hits, SnippetHit{Snippet: sn, Similarity: m.Similarity()})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	return hits, nil
}

func snippetText(sn Snippet) string {
	if sn.Description == "" {
		return sn.Content
	}
	return sn.Description + "\n" + sn.Content
}
