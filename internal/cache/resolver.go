package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/memvra/branchmind/internal/errs"
)

// Defaults for the embedding tiers.
const (
	DefaultEmbeddingLRUSize = 1000
	DefaultEmbedBatchSize   = 4
)

// Embedder is the single-text embedding call the resolver falls back to.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Resolver answers embedding requests from the LRU, then the persistent
// map, and only then the gateway. Identical canonical content is embedded
// at most once.
type Resolver struct {
	lru     *lru.Cache[string, []float32]
	disk    *PersistentMap
	gateway Embedder
	canon   *Canonicalizer
	batch   int
	metrics *Metrics
	log     *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(size, batch int, disk *PersistentMap, gateway Embedder, canon *Canonicalizer, metrics *Metrics, log *zap.Logger) (*Resolver, error) {
	if size <= 0 {
		size = DefaultEmbeddingLRUSize
	}
	if batch <= 0 {
		batch = DefaultEmbedBatchSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("cache: create embedding lru: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		lru:     c,
		disk:    disk,
		gateway: gateway,
		canon:   canon,
		batch:   batch,
		metrics: metrics,
		log:     log,
	}, nil
}

// Key returns the cache key of text.
func (r *Resolver) Key(text string) string { return r.canon.Key(text) }

// Peek looks text up in the LRU and persistent tiers without calling the
// gateway and without touching hit counters.
func (r *Resolver) Peek(text string) ([]float32, bool) {
	key := r.canon.Key(text)
	if v, ok := r.lru.Peek(key); ok {
		return v, true
	}
	return r.disk.Get(key)
}

// Embed resolves a single text.
func (r *Resolver) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := r.EmbedAll(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedAll resolves every text, returning vectors in input order. Misses
// are sent to the gateway in fixed-size groups; each group runs
// concurrently and every call writes only its own key. The persistent map
// is flushed once the batch ends, even when it ends in failure.
func (r *Resolver) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	keys := make([]string, len(texts))
	canonical := make(map[string]string, len(texts))
	resolved := make(map[string][]float32, len(texts))
	var missing []string

	for i, text := range texts {
		c := r.canon.Canonical(text)
		key := ContentHash(c)
		keys[i] = key
		if _, seen := canonical[key]; seen {
			continue
		}
		canonical[key] = c

		if v, ok := r.lru.Get(key); ok {
			r.metrics.hit(TierEmbeddings)
			resolved[key] = v
			continue
		}
		r.metrics.miss(TierEmbeddings)
		if v, ok := r.disk.Get(key); ok {
			r.metrics.hit(TierPersistent)
			r.lru.Add(key, v)
			resolved[key] = v
			continue
		}
		r.metrics.miss(TierPersistent)
		missing = append(missing, key)
	}

	if len(missing) > 0 {
		defer r.disk.Flush()
	}
	for start := 0; start < len(missing); start += r.batch {
		end := min(start+r.batch, len(missing))
		group := missing[start:end]
		vecs := make([][]float32, len(group))

		g, gctx := errgroup.WithContext(ctx)
		for i, key := range group {
			g.Go(func() error {
				r.metrics.gatewayCalls.Inc()
				v, err := r.gateway.Embed(gctx, canonical[key])
				if err != nil {
					r.metrics.gatewayErrors.Inc()
					return err
				}
				if len(v) == 0 {
					r.metrics.gatewayErrors.Inc()
					return fmt.Errorf("empty embedding returned")
				}
				vecs[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if errs.KindOf(err) != errs.KindTransientGateway {
				err = errs.Gateway("embed", err)
			}
			return nil, err
		}
		for i, key := range group {
			r.lru.Add(key, vecs[i])
			r.disk.Put(key, vecs[i])
			resolved[key] = vecs[i]
		}
	}

	out := make([][]float32, len(texts))
	for i, key := range keys {
		out[i] = resolved[key]
	}
	if len(missing) > 0 {
		r.log.Debug("embeddings computed", zap.Int("requested", len(texts)), zap.Int("computed", len(missing)))
	}
	return out, nil
}

// Len returns the number of vectors in the LRU.
func (r *Resolver) Len() int { return r.lru.Len() }

// Purge empties the LRU.
func (r *Resolver) Purge() { r.lru.Purge() }
