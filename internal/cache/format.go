package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Rendered view kinds held by the formatting cache.
const (
	ViewHistory  = "history"
	ViewStatus   = "status"
	ViewInsights = "insights"
)

var viewKinds = []string{ViewHistory, ViewStatus, ViewInsights}

// FormatCache holds rendered per-branch views. Mutations invalidate; they
// never update in place.
type FormatCache struct {
	lru     *lru.Cache[string, string]
	metrics *Metrics
}

// DefaultFormatCacheSize bounds the number of rendered views kept.
const DefaultFormatCacheSize = 256

// NewFormatCache creates a FormatCache holding at most size views.
func NewFormatCache(size int, metrics *Metrics) (*FormatCache, error) {
	if size <= 0 {
		size = DefaultFormatCacheSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &FormatCache{lru: c, metrics: metrics}, nil
}

func viewKey(kind, branchID string) string { return kind + ":" + branchID }

// GetOrBuild returns the cached view, building and storing it on a miss.
// Build errors are returned and nothing is cached.
func (c *FormatCache) GetOrBuild(kind, branchID string, build func() (string, error)) (string, error) {
	key := viewKey(kind, branchID)
	if v, ok := c.lru.Get(key); ok {
		c.metrics.hit(TierFormatting)
		return v, nil
	}
	c.metrics.miss(TierFormatting)
	v, err := build()
	if err != nil {
		return "", err
	}
	c.lru.Add(key, v)
	return v, nil
}

// Invalidate drops every view of the given branches.
func (c *FormatCache) Invalidate(branchIDs ...string) {
	for _, id := range branchIDs {
		for _, kind := range viewKinds {
			c.lru.Remove(viewKey(kind, id))
		}
	}
}

// Purge drops every view.
func (c *FormatCache) Purge() { c.lru.Purge() }

// Len returns the number of cached views.
func (c *FormatCache) Len() int { return c.lru.Len() }
