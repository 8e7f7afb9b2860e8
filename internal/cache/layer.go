package cache

import (
	"time"

	"go.uber.org/zap"
)

// Config sizes the cache tiers.
type Config struct {
	EmbeddingLRUSize int
	SummaryTTL       time.Duration
	FormatCacheSize  int
	MaxEmbedTokens   int
	EmbedBatchSize   int
}

// TierStats describes one cache tier.
type TierStats struct {
	Name    string  `json:"name"`
	Entries int     `json:"entries"`
	Hits    float64 `json:"hits"`
	Misses  float64 `json:"misses"`
}

// Stats is a point-in-time view of every tier.
type Stats struct {
	Tiers         []TierStats `json:"tiers"`
	GatewayCalls  float64     `json:"gatewayCalls"`
	GatewayErrors float64     `json:"gatewayErrors"`
}

// Layer owns all cache tiers of a session. It implements graph.Listener so
// store mutations invalidate the branch-scoped tiers.
type Layer struct {
	Embeddings *Resolver
	Summaries  *SummaryCache
	Formatting *FormatCache

	disk    *PersistentMap
	metrics *Metrics
	log     *zap.Logger
}

// New assembles the cache layer. kv may be nil for a memory-only session.
func New(cfg Config, gateway Embedder, kv KV, trunc Truncator, log *zap.Logger) (*Layer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	metrics := NewMetrics()
	disk := NewPersistentMap(kv, log)
	resolver, err := NewResolver(cfg.EmbeddingLRUSize, cfg.EmbedBatchSize, disk, gateway,
		NewCanonicalizer(trunc, cfg.MaxEmbedTokens), metrics, log)
	if err != nil {
		return nil, err
	}
	formatting, err := NewFormatCache(cfg.FormatCacheSize, metrics)
	if err != nil {
		return nil, err
	}
	return &Layer{
		Embeddings: resolver,
		Summaries:  NewSummaryCache(cfg.SummaryTTL, metrics),
		Formatting: formatting,
		disk:       disk,
		metrics:    metrics,
		log:        log,
	}, nil
}

// Metrics returns the collectors of this layer.
func (l *Layer) Metrics() *Metrics { return l.metrics }

// BranchesChanged invalidates summaries and rendered views of the branches.
func (l *Layer) BranchesChanged(branchIDs ...string) {
	l.Summaries.Invalidate(branchIDs...)
	l.Formatting.Invalidate(branchIDs...)
}

// AnnotationsChanged drops all rendered views, since cross-refs and scores
// appear in them. Summaries only depend on content and are kept.
func (l *Layer) AnnotationsChanged() {
	l.Formatting.Purge()
}

// Stats reports entry counts and hit/miss counters per tier.
func (l *Layer) Stats() Stats {
	tier := func(name string, entries int) TierStats {
		return TierStats{
			Name:    name,
			Entries: entries,
			Hits:    l.metrics.lookupCount(name, "hit"),
			Misses:  l.metrics.lookupCount(name, "miss"),
		}
	}
	return Stats{
		Tiers: []TierStats{
			tier(TierEmbeddings, l.Embeddings.Len()),
			tier(TierPersistent, l.disk.Len()),
			tier(TierSummaries, l.Summaries.Len()),
			tier(TierFormatting, l.Formatting.Len()),
		},
		GatewayCalls:  counterValue(l.metrics.gatewayCalls),
		GatewayErrors: counterValue(l.metrics.gatewayErrors),
	}
}

// Clear empties one tier, or all of them. It reports false for an unknown tier.
func (l *Layer) Clear(tier string) bool {
	switch tier {
	case TierEmbeddings:
		l.Embeddings.Purge()
	case TierPersistent:
		l.disk.Clear()
	case TierSummaries:
		l.Summaries.Purge()
	case TierFormatting:
		l.Formatting.Purge()
	case TierAll, "":
		l.Embeddings.Purge()
		l.disk.Clear()
		l.Summaries.Purge()
		l.Formatting.Purge()
	default:
		return false
	}
	l.log.Info("cache cleared", zap.String("tier", tier))
	return true
}

// Close flushes the persistent map and closes its store.
func (l *Layer) Close() error {
	return l.disk.Close()
}
