// Package engine computes thought-to-thought cross-references and scores
// over the whole graph, and answers ranked queries (semantic search, hubs)
// on top of the last pass.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/memvra/branchmind/internal/errs"
	"github.com/memvra/branchmind/internal/graph"
)

// Embeddings resolves text to vectors, normally through the cache layer.
type Embeddings interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds the similarity thresholds and list caps of a pass.
type Config struct {
	DirectThreshold      float64
	VerySimilarThreshold float64
	MultiHopThreshold    float64
	MaxDirect            int
	MaxCrossRefs         int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		DirectThreshold:      0.70,
		VerySimilarThreshold: 0.85,
		MultiHopThreshold:    0.50,
		MaxDirect:            3,
		MaxCrossRefs:         6,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DirectThreshold <= 0 {
		c.DirectThreshold = d.DirectThreshold
	}
	if c.VerySimilarThreshold <= 0 {
		c.VerySimilarThreshold = d.VerySimilarThreshold
	}
	if c.MultiHopThreshold <= 0 {
		c.MultiHopThreshold = d.MultiHopThreshold
	}
	if c.MaxDirect <= 0 {
		c.MaxDirect = d.MaxDirect
	}
	if c.MaxCrossRefs <= 0 {
		c.MaxCrossRefs = d.MaxCrossRefs
	}
	return c
}

// RecomputeStats summarises one full pass.
type RecomputeStats struct {
	Thoughts     int           `json:"thoughts"`
	DirectRefs   int           `json:"directRefs"`
	MultiHopRefs int           `json:"multiHopRefs"`
	Duration     time.Duration `json:"duration"`
}

// Engine runs scoring passes against a graph store.
type Engine struct {
	store *graph.Store
	emb   Embeddings
	cfg   Config
	now   func() time.Time
	log   *zap.Logger
	rank  *Ranker

	// passes are serialised so two commits never interleave.
	mu sync.Mutex
}

// New creates an Engine. A nil logger is replaced with a no-op one.
func New(store *graph.Store, emb Embeddings, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store: store,
		emb:   emb,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
		log:   log,
		rank:  NewRanker(),
	}
}

// SetClock overrides the time source used for recency bonuses.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// RecomputeAll embeds every thought, rebuilds all cross-reference lists and
// scores, and commits them in a single store update. When embedding fails
// the graph is left exactly as it was.
func (e *Engine) RecomputeAll(ctx context.Context) (RecomputeStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	stats, _, _, err := e.recomputeLocked(ctx)
	return stats, err
}

func (e *Engine) recomputeLocked(ctx context.Context) (RecomputeStats, []*graph.Thought, [][]float32, error) {
	start := time.Now()
	thoughts := e.store.Thoughts()

	texts := make([]string, len(thoughts))
	for i, t := range thoughts {
		texts[i] = t.Content
	}
	vecs, err := e.emb.EmbedAll(ctx, texts)
	if err != nil {
		return RecomputeStats{}, nil, nil, err
	}

	refs := crossReference(vecs, e.cfg)
	update := graph.ScoreUpdate{
		CrossRefs:    make(map[string][]graph.ThoughtRef, len(thoughts)),
		Scores:       make(map[string]float64, len(thoughts)),
		BranchScores: make(map[string]float64),
	}

	stats := RecomputeStats{Thoughts: len(thoughts)}
	now := e.now()
	for i, t := range thoughts {
		list := make([]graph.ThoughtRef, 0, len(refs[i]))
		for _, r := range refs[i] {
			list = append(list, graph.ThoughtRef{
				ToThoughtID: thoughts[r.to].ID,
				Score:       r.score,
				Kind:        r.kind,
			})
			if r.kind.Direct() {
				stats.DirectRefs++
			} else {
				stats.MultiHopRefs++
			}
		}
		update.CrossRefs[t.ID] = list

		targets := make([]*graph.Thought, len(refs[i]))
		for k, r := range refs[i] {
			targets[k] = thoughts[r.to]
		}
		update.Scores[t.ID] = ThoughtScore(t, list, targets, now)
		t.CrossRefs, t.Score = list, update.Scores[t.ID]
	}
	for _, b := range e.store.Branches() {
		update.BranchScores[b.ID] = BranchScore(b.ID, thoughts, update.Scores)
	}

	e.store.ApplyScores(update)
	stats.Duration = time.Since(start)
	e.log.Debug("recompute pass",
		zap.Int("thoughts", stats.Thoughts),
		zap.Int("direct", stats.DirectRefs),
		zap.Int("multi_hop", stats.MultiHopRefs),
		zap.Duration("took", stats.Duration))
	return stats, thoughts, vecs, nil
}

// SearchResult is one semantic search hit.
type SearchResult struct {
	Thought    *graph.Thought `json:"thought"`
	Similarity float64        `json:"similarity"`
}

// SemanticSearch refreshes the graph, embeds query and returns the topN
// thoughts by cosine similarity. Ties keep enumeration order.
func (e *Engine) SemanticSearch(ctx context.Context, query string, topN int) ([]SearchResult, error) {
	const op = "semantic search"
	if strings.TrimSpace(query) == "" {
		return nil, errs.Validation(op, "query must not be empty")
	}
	if topN <= 0 {
		topN = 5
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	_, thoughts, vecs, err := e.recomputeLocked(ctx)
	if err != nil {
		return nil, err
	}
	qv, err := e.emb.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	sims := make(map[string]float64, len(thoughts))
	for i, t := range thoughts {
		sims[t.ID] = cosine(qv, vecs[i])
	}
	ranked := e.rank.RankBySimilarity(thoughts, sims)
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	out := make([]SearchResult, len(ranked))
	for i, r := range ranked {
		out[i] = SearchResult{Thought: r.Thought, Similarity: r.FinalScore}
	}
	return out, nil
}

// Hub is a thought ranked by score plus degree.
type Hub struct {
	Thought *graph.Thought `json:"thought"`
	Rank    float64        `json:"rank"`
}

// HubThoughts returns the topN most connected thoughts as of the last pass.
func (e *Engine) HubThoughts(topN int) []Hub {
	if topN <= 0 {
		topN = 5
	}
	ranked := e.rank.RankHubs(e.store.Thoughts())
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	out := make([]Hub, len(ranked))
	for i, r := range ranked {
		out[i] = Hub{Thought: r.Thought, Rank: r.FinalScore}
	}
	return out
}
