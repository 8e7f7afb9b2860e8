// Package session is the top-level context of one branchmind process. A
// Session owns the graph store, the scoring engine, the cache tiers, the
// task service and the gateway, and exposes every operation as a method
// returning either a result or a classified error.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/memvra/branchmind/internal/adapter"
	"github.com/memvra/branchmind/internal/cache"
	"github.com/memvra/branchmind/internal/config"
	bmcontext "github.com/memvra/branchmind/internal/context"
	"github.com/memvra/branchmind/internal/db"
	"github.com/memvra/branchmind/internal/engine"
	"github.com/memvra/branchmind/internal/errs"
	"github.com/memvra/branchmind/internal/graph"
	"github.com/memvra/branchmind/internal/memory"
	"github.com/memvra/branchmind/internal/visualize"
)

// Options configures Open.
type Options struct {
	// Root is the project directory; state lives under Root/.branchmind.
	Root   string
	Config config.Config

	// Embedder and Summarizer override the providers named in Config.
	Embedder   adapter.LLMAdapter
	Summarizer adapter.LLMAdapter

	// NoDiskCache keeps embeddings in memory only.
	NoDiskCache bool
	// ApproxTokens skips loading the tiktoken encoding and estimates
	// token counts instead.
	ApproxTokens bool

	Now func() time.Time
	Log *zap.Logger
}

// Session wires every component together. Methods are safe for use by one
// caller at a time; the store itself guards concurrent readers.
type Session struct {
	cfg       config.Config
	store     *graph.Store
	cache     *cache.Layer
	engine    *engine.Engine
	tasks     *memory.Service
	viz       *visualize.Builder
	gateway   *adapter.Gateway
	formatter *bmcontext.Formatter
	sources   *bmcontext.Builder
	database  *db.DB
	ingested  map[string]string
	merged    map[string]string // merged-away branch id -> merge target
	now       func() time.Time
	log       *zap.Logger
}

// Open creates a session rooted at opts.Root.
func Open(opts Options) (*Session, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errs.Validation("open", "project root is required")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Config

	embedder, summarizer := opts.Embedder, opts.Summarizer
	var err error
	if embedder == nil {
		if embedder, err = newProvider(cfg, cfg.DefaultEmbedder); err != nil {
			return nil, errs.Validation("open", "%v", err)
		}
	}
	if summarizer == nil {
		if summarizer, err = newProvider(cfg, cfg.DefaultSummarizer); err != nil {
			return nil, errs.Validation("open", "%v", err)
		}
	}
	gateway := adapter.NewGateway(embedder, summarizer, adapter.GatewayOptions{
		BreakerMaxFailures: cfg.Gateway.BreakerMaxFailures,
		BreakerTimeout:     cfg.Gateway.BreakerTimeout(),
	}, log.Named("gateway"))

	var tokenizer *bmcontext.Tokenizer
	if !opts.ApproxTokens {
		if tokenizer, err = bmcontext.NewTokenizer(); err != nil {
			log.Warn("tokenizer unavailable, estimating token counts", zap.Error(err))
			tokenizer = nil
		}
	}
	var trunc cache.Truncator
	if tokenizer != nil {
		trunc = tokenizer
	}

	var kv cache.KV
	if !opts.NoDiskCache {
		badger, err := cache.OpenBadger(config.ProjectEmbeddingsPath(opts.Root))
		if err != nil {
			// Degraded but usable: embeddings stay in memory.
			log.Warn("persistent embedding cache unavailable", zap.Error(err))
		} else {
			kv = badger
		}
	}

	layer, err := cache.New(cache.Config{
		EmbeddingLRUSize: cfg.Cache.EmbeddingLRUSize,
		SummaryTTL:       cfg.Cache.SummaryTTL(),
		FormatCacheSize:  cfg.Cache.FormatCacheSize,
		MaxEmbedTokens:   cfg.Cache.MaxEmbedTokens,
		EmbedBatchSize:   cfg.Cache.EmbedBatchSize,
	}, gateway, kv, trunc, log.Named("cache"))
	if err != nil {
		if kv != nil {
			kv.Close()
		}
		return nil, errs.Internal("open", err)
	}

	var dbOpts []db.Option
	if dim := embedder.Info().EmbeddingDimension; dim > 0 {
		dbOpts = append(dbOpts, db.WithEmbeddingDimension(dim))
	}
	database, err := db.Open(config.ProjectDBPath(opts.Root), dbOpts...)
	if err != nil {
		layer.Close()
		return nil, errs.Persistence("open", err)
	}

	store := graph.NewStore(
		graph.WithClock(now),
		graph.WithListener(layer),
		graph.WithLogger(log.Named("graph")),
	)

	eng := engine.New(store, layer.Embeddings, engine.Config{
		DirectThreshold:      cfg.Engine.DirectThreshold,
		VerySimilarThreshold: cfg.Engine.VerySimilarThreshold,
		MultiHopThreshold:    cfg.Engine.MultiHopThreshold,
		MaxDirect:            cfg.Engine.MaxDirect,
		MaxCrossRefs:         cfg.Engine.MaxCrossRefs,
	}, log.Named("engine"))
	eng.SetClock(now)

	tasks := memory.NewService(memory.NewStore(database), memory.NewVectorStore(database), layer.Embeddings, log.Named("tasks"))
	tasks.SetClock(now)

	s := &Session{
		cfg:       cfg,
		store:     store,
		cache:     layer,
		engine:    eng,
		tasks:     tasks,
		viz:       visualize.NewBuilder(layer.Embeddings, log.Named("visualize")),
		gateway:   gateway,
		formatter: bmcontext.NewFormatter(),
		sources:   bmcontext.NewBuilder(tokenizer),
		database:  database,
		ingested:  make(map[string]string),
		merged:    make(map[string]string),
		now:       now,
		log:       log,
	}
	info := embedder.Info()
	log.Info("session opened",
		zap.String("root", opts.Root),
		zap.String("embedder", info.Provider),
		zap.Bool("vectors", database.VectorsEnabled()))
	return s, nil
}

func newProvider(cfg config.Config, provider string) (adapter.LLMAdapter, error) {
	o := adapter.Options{APIKey: cfg.APIKey(provider)}
	if provider == adapter.ProviderOllama {
		o.Host = cfg.Ollama.Host
		o.EmbedModel = cfg.Ollama.EmbedModel
		o.CompletionModel = cfg.Ollama.CompletionModel
	}
	return adapter.New(provider, o)
}

// Close flushes the persistent embedding map and closes the databases.
func (s *Session) Close() error {
	return errors.Join(s.cache.Close(), s.database.Close())
}

// Config returns the effective configuration.
func (s *Session) Config() config.Config { return s.cfg }

// ---- Branches and thoughts ----

// CreateBranch inserts an empty branch if absent.
func (s *Session) CreateBranch(id, parentID string) (*graph.Branch, error) {
	return s.store.CreateBranch(id, parentID)
}

// AddThought adds one thought.
func (s *Session) AddThought(in graph.ThoughtInput) (*graph.Thought, error) {
	return s.store.AddThought(in)
}

// AddThoughts adds a batch and returns the last thought added.
func (s *Session) AddThoughts(ins []graph.ThoughtInput) (*graph.Thought, error) {
	return s.store.AddThoughts(ins)
}

// LinkThoughts records an explicit link. It reports false when either id
// is unknown.
func (s *Session) LinkThoughts(fromID, toID string, typ graph.LinkType, reason string) (bool, error) {
	return s.store.LinkThoughts(fromID, toID, typ, reason)
}

// MergeBranches folds source into target.
func (s *Session) MergeBranches(sourceID, targetID string) (*graph.Branch, error) {
	b, err := s.store.MergeBranches(sourceID, targetID)
	if err != nil {
		return nil, err
	}
	// The source note keeps its own hash; later changes to it are routed
	// into the target, where paragraphs already present are skipped.
	delete(s.merged, targetID)
	s.merged[sourceID] = targetID
	return b, nil
}

// noteBranch returns the branch that holds a note's thoughts: its own
// branch, or the branch it was last merged into.
func (s *Session) noteBranch(id string) string {
	for range len(s.merged) {
		if _, err := s.store.Branch(id); err == nil {
			return id
		}
		next, ok := s.merged[id]
		if !ok {
			break
		}
		id = next
	}
	return id
}

// SetActiveBranch switches the active branch.
func (s *Session) SetActiveBranch(id string) error {
	return s.store.SetActiveBranch(id)
}

// GetBranch returns one branch.
func (s *Session) GetBranch(id string) (*graph.Branch, error) {
	return s.store.Branch(id)
}

// Branches returns every branch in creation order.
func (s *Session) Branches() []*graph.Branch {
	return s.store.Branches()
}

// ActiveBranch returns the active branch, or NotFound before any exists.
func (s *Session) ActiveBranch() (*graph.Branch, error) {
	b, ok := s.store.ActiveBranch()
	if !ok {
		return nil, errs.NotFound("getActiveBranch", "branch", "active")
	}
	return b, nil
}

// GetThought returns one thought.
func (s *Session) GetThought(id string) (*graph.Thought, error) {
	return s.store.Thought(id)
}

// resolveBranch returns the named branch, or the active one for "".
func (s *Session) resolveBranch(op, id string) (*graph.Branch, error) {
	if id == "" {
		b, ok := s.store.ActiveBranch()
		if !ok {
			return nil, errs.Validation(op, "no branch given and no active branch")
		}
		return b, nil
	}
	b, err := s.store.Branch(id)
	if err != nil {
		return nil, errs.NotFound(op, "branch", id)
	}
	return b, nil
}

// ---- Rendered views ----

// BranchHistory renders the markdown history of a branch ("" = active).
func (s *Session) BranchHistory(id string) (string, error) {
	b, err := s.resolveBranch("getBranchHistory", id)
	if err != nil {
		return "", err
	}
	return s.cache.Formatting.GetOrBuild(cache.ViewHistory, b.ID, func() (string, error) {
		return s.formatter.FormatHistory(b, b.ID == s.store.ActiveBranchID()), nil
	})
}

// BranchStatus renders a short status block of a branch ("" = active).
func (s *Session) BranchStatus(id string) (string, error) {
	b, err := s.resolveBranch("getBranchStatus", id)
	if err != nil {
		return "", err
	}
	return s.cache.Formatting.GetOrBuild(cache.ViewStatus, b.ID, func() (string, error) {
		return s.formatter.FormatStatus(b, b.ID == s.store.ActiveBranchID()), nil
	})
}

// Insights returns the latest n insights of a branch ("" = active).
func (s *Session) Insights(branchID string, n int) ([]*graph.Insight, error) {
	b, err := s.resolveBranch("getInsights", branchID)
	if err != nil {
		return nil, err
	}
	return s.store.Insights(b.ID, n)
}

// InsightsReport renders every insight of a branch, cached per branch.
func (s *Session) InsightsReport(branchID string) (string, error) {
	b, err := s.resolveBranch("getInsights", branchID)
	if err != nil {
		return "", err
	}
	return s.cache.Formatting.GetOrBuild(cache.ViewInsights, b.ID, func() (string, error) {
		return s.formatter.FormatInsights(b.Insights), nil
	})
}

// ---- Engine ----

// CrossRefReport lists the cross-references touching one branch.
type CrossRefReport struct {
	BranchID string                        `json:"branchId"`
	Branch   []*graph.CrossReference       `json:"branch"`
	Thoughts map[string][]graph.ThoughtRef `json:"thoughts"`
}

// Recompute runs a full cross-reference and scoring pass.
func (s *Session) Recompute(ctx context.Context) (engine.RecomputeStats, error) {
	return s.engine.RecomputeAll(ctx)
}

// CrossRefs returns the branch-level references of a branch and the
// computed thought-level references of its thoughts from the last pass.
func (s *Session) CrossRefs(branchID string) (CrossRefReport, error) {
	b, err := s.resolveBranch("getCrossReferences", branchID)
	if err != nil {
		return CrossRefReport{}, err
	}
	report := CrossRefReport{
		BranchID: b.ID,
		Branch:   b.CrossRefs,
		Thoughts: make(map[string][]graph.ThoughtRef, len(b.Thoughts)),
	}
	for _, t := range b.Thoughts {
		report.Thoughts[t.ID] = t.CrossRefs
	}
	return report, nil
}

// HubThoughts ranks thoughts by score plus degree.
func (s *Session) HubThoughts(topN int) []engine.Hub {
	return s.engine.HubThoughts(topN)
}

// SemanticSearch recomputes the graph and ranks thoughts against query.
func (s *Session) SemanticSearch(ctx context.Context, query string, topN int) ([]engine.SearchResult, error) {
	return s.engine.SemanticSearch(ctx, query, topN)
}

// Visualize projects the graph, with task state merged onto nodes.
func (s *Session) Visualize(opts visualize.Options) (*visualize.Graph, error) {
	tasks := s.tasks.ListTasks(memory.TaskFilter{})
	return s.viz.Build(s.store, tasks, opts)
}

// ---- Summaries ----

// SummarizeBranch summarizes a branch ("" = active). Results are cached
// until the TTL expires or the branch changes; failures are not cached.
func (s *Session) SummarizeBranch(ctx context.Context, id string) (string, error) {
	const op = "summarizeBranch"
	b, err := s.resolveBranch(op, id)
	if err != nil {
		return "", err
	}
	if cached, ok := s.cache.Summaries.Get(b.ID); ok {
		return cached, nil
	}
	if len(b.Thoughts) == 0 {
		return "", errs.Validation(op, "branch %q has no thoughts", b.ID)
	}
	src := s.sources.BranchSource(b, s.cfg.Summary.MaxSourceTokens)
	summary, err := s.gateway.Summarize(ctx, src.Text, s.summaryOptions())
	if err != nil {
		return "", err
	}
	s.cache.Summaries.Put(b.ID, summary)
	s.log.Debug("branch summarized",
		zap.String("branch", b.ID),
		zap.Int("thoughts", src.ThoughtsUsed),
		zap.Bool("truncated", src.Truncated))
	return summary, nil
}

// SummarizeThought summarizes a single thought. It is not cached.
func (s *Session) SummarizeThought(ctx context.Context, id string) (string, error) {
	t, err := s.store.Thought(id)
	if err != nil {
		return "", err
	}
	return s.gateway.Summarize(ctx, t.Content, s.summaryOptions())
}

func (s *Session) summaryOptions() adapter.SummaryOptions {
	return adapter.SummaryOptions{MinLength: s.cfg.Summary.MinLength, MaxLength: s.cfg.Summary.MaxLength}
}

// ---- Tasks and snippets ----

// ExtractTasks scans one branch, or every branch for "", for task markers.
func (s *Session) ExtractTasks(branchID string) ([]memory.Task, error) {
	var thoughts []*graph.Thought
	if branchID == "" {
		thoughts = s.store.Thoughts()
	} else {
		b, err := s.store.Branch(branchID)
		if err != nil {
			return nil, errs.NotFound("extractTasks", "branch", branchID)
		}
		thoughts = b.Thoughts
	}
	return s.tasks.ExtractTasks(thoughts), nil
}

// ListTasks returns the stored tasks matching f.
func (s *Session) ListTasks(f memory.TaskFilter) []memory.Task {
	return s.tasks.ListTasks(f)
}

// SummarizeTasks aggregates the stored tasks.
func (s *Session) SummarizeTasks() memory.TaskSummary {
	return s.tasks.SummarizeTasks()
}

// UpdateTaskStatus changes a task's status and records the transition.
func (s *Session) UpdateTaskStatus(id string, status memory.TaskStatus, user string) (memory.Task, error) {
	return s.tasks.UpdateTaskStatus(id, status, user)
}

// AssignTask sets a task's assignee and records it.
func (s *Session) AssignTask(id, assignee, user string) (memory.Task, error) {
	return s.tasks.AssignTask(id, assignee, user)
}

// AddSnippet stores a code snippet and indexes its embedding.
func (s *Session) AddSnippet(ctx context.Context, in memory.SnippetInput) (memory.Snippet, error) {
	return s.tasks.AddSnippet(ctx, in)
}

// ListSnippets returns the newest snippets.
func (s *Session) ListSnippets(limit int) []memory.Snippet {
	return s.tasks.ListSnippets(limit)
}

// SearchSnippets ranks snippets against query.
func (s *Session) SearchSnippets(ctx context.Context, query string, topK int) ([]memory.SnippetHit, error) {
	return s.tasks.SearchSnippets(ctx, query, topK)
}

// ---- Cache ----

// CacheStats reports every cache tier.
func (s *Session) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// ClearCache empties one tier, or all of them for "" or "all".
func (s *Session) ClearCache(tier string) error {
	if !s.cache.Clear(tier) {
		return errs.Validation("clearCache", "unknown cache tier %q (valid: %s)", tier,
			strings.Join([]string{cache.TierEmbeddings, cache.TierPersistent, cache.TierSummaries, cache.TierFormatting, cache.TierAll}, ", "))
	}
	return nil
}

// Metrics exposes the cache and gateway collectors.
func (s *Session) Metrics() *cache.Metrics {
	return s.cache.Metrics()
}

// EmbedderInfo describes the embedding provider.
func (s *Session) EmbedderInfo() adapter.ModelInfo {
	return s.gateway.EmbedderInfo()
}
