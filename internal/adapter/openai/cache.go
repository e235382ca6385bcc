package openai

import (
	"container/list"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/couchcryptid/riverwatch-service/internal/domain"
)

// CachedPredictor wraps a Predictor with an in-memory LRU cache keyed on the
// trend. Polling an unchanged sheet yields the same trend every cycle, and
// the forecast for it is reused instead of requested again.
type CachedPredictor struct {
	inner domain.Predictor
	cache *lruCache
}

// NewCachedPredictor creates a cache decorator around a predictor.
func NewCachedPredictor(inner domain.Predictor, maxEntries int) *CachedPredictor {
	return &CachedPredictor{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedPredictor) Predict(ctx context.Context, trend domain.TrendResult, dangerLevelCM float64) (domain.Prediction, error) {
	key := cacheKey(trend, dangerLevelCM)
	if pred, ok := c.cache.get(key); ok {
		return pred, nil
	}
	pred, err := c.inner.Predict(ctx, trend, dangerLevelCM)
	if err != nil {
		return pred, err
	}
	c.cache.put(key, pred)
	return pred, nil
}

// cacheKey rounds to the precision the prompt renders, so trends that
// produce identical requests share an entry.
func cacheKey(trend domain.TrendResult, dangerLevelCM float64) string {
	return fmt.Sprintf("%.2f|%+.2f|%.1f|%.1f|%g",
		trend.CurrentLevel, trend.ChangePerMinute, trend.Temperature, trend.Humidity, dangerLevelCM)
}

// lruCache is a thread-safe LRU cache of predictions.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type cacheEntry struct {
	key   string
	value domain.Prediction
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (domain.Prediction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.Prediction{}, false
	}
	c.order.MoveToFront(el)
	return clonePrediction(el.Value.(*cacheEntry).value), true
}

func (c *lruCache) put(key string, value domain.Prediction) {
	value = clonePrediction(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, value: value})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// clonePrediction copies the action slice so callers never share it with
// the cache.
func clonePrediction(p domain.Prediction) domain.Prediction {
	p.ResidentActions = slices.Clone(p.ResidentActions)
	return p
}
