package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultSummaryTTL is how long a branch summary is served without
// recomputation.
const DefaultSummaryTTL = 10 * time.Minute

// SummaryCache holds branch summaries keyed by branch id. Entries expire
// after a fixed TTL regardless of access.
type SummaryCache struct {
	lru     *expirable.LRU[string, string]
	metrics *Metrics
}

// NewSummaryCache creates a SummaryCache with the given TTL.
func NewSummaryCache(ttl time.Duration, metrics *Metrics) *SummaryCache {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	return &SummaryCache{
		lru:     expirable.NewLRU[string, string](0, nil, ttl),
		metrics: metrics,
	}
}

// Get returns a non-expired summary.
func (c *SummaryCache) Get(branchID string) (string, bool) {
	v, ok := c.lru.Get(branchID)
	if ok {
		c.metrics.hit(TierSummaries)
	} else {
		c.metrics.miss(TierSummaries)
	}
	return v, ok
}

// Put stores a summary.
func (c *SummaryCache) Put(branchID, summary string) {
	c.lru.Add(branchID, summary)
}

// Invalidate drops the summaries of the given branches.
func (c *SummaryCache) Invalidate(branchIDs ...string) {
	for _, id := range branchIDs {
		c.lru.Remove(id)
	}
}

// Purge drops every summary.
func (c *SummaryCache) Purge() { c.lru.Purge() }

// Len returns the number of cached summaries.
func (c *SummaryCache) Len() int { return c.lru.Len() }
