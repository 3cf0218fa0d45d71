package churn

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sells-group/churn-cli/internal/model"
)

// CachedPredictor memoizes successful predictions by record. Prediction is
// deterministic for a fixed artifact, so a hit is identical to recomputing.
// A zero size disables caching and every call goes to the wrapped service.
type CachedPredictor struct {
	next   Service
	cache  *expirable.LRU[string, model.Prediction]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedPredictor wraps next with an LRU of up to size entries that expire
// after ttl. A ttl of zero keeps entries until evicted.
func NewCachedPredictor(next Service, size int, ttl time.Duration) *CachedPredictor {
	c := &CachedPredictor{next: next}
	if size > 0 {
		c.cache = expirable.NewLRU[string, model.Prediction](size, nil, ttl)
	}
	return c
}

// Predict implements Service.
func (c *CachedPredictor) Predict(ctx context.Context, e model.Employee) (model.Prediction, error) {
	if c.cache == nil {
		return c.next.Predict(ctx, e)
	}

	key := e.Key()
	if pred, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return pred, nil
	}
	c.misses.Add(1)

	pred, err := c.next.Predict(ctx, e)
	if err != nil {
		return pred, err
	}
	c.cache.Add(key, pred)
	return pred, nil
}

// CacheStats is a snapshot of cache effectiveness.
type CacheStats struct {
	Enabled bool
	Size    int
	Hits    int64
	Misses  int64
}

// Stats returns the current counters.
func (c *CachedPredictor) Stats() CacheStats {
	s := CacheStats{
		Enabled: c.cache != nil,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
	if c.cache != nil {
		s.Size = c.cache.Len()
	}
	return s
}
