package cache

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/metrics"
	"github.com/sells-group/solar-cli/internal/model"
)

// LookupCache sits between coordinate resolution and the roof providers. It
// is injected into the pipeline; callers Put only successful results.
type LookupCache struct {
	store   Store
	metrics *metrics.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewLookupCache wraps store. m may be nil.
func NewLookupCache(store Store, m *metrics.Metrics) *LookupCache {
	return &LookupCache{store: store, metrics: m}
}

// Get returns the cached best surface for the exact coordinate pair.
func (c *LookupCache) Get(key model.Coordinates) (model.BestSurface, bool) {
	v, ok := c.store.Get(key)
	result := metrics.CacheMiss
	if ok {
		result = metrics.CacheHit
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
	zap.L().Debug("cache: lookup",
		zap.Float64("lat", key.Lat),
		zap.Float64("lng", key.Lng),
		zap.String("result", result),
	)
	return v, ok
}

// Put stores a best surface for the exact coordinate pair.
func (c *LookupCache) Put(key model.Coordinates, value model.BestSurface) {
	c.store.Put(key, value)
	if c.metrics != nil {
		c.metrics.CacheEntries.Set(float64(c.store.Len()))
	}
}

// Stats returns a snapshot of cache statistics.
func (c *LookupCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Entries: c.store.Len(),
		Hits:    hits,
		Misses:  misses,
		HitRate: rate,
	}
}
