package earthengine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/burn-severity-service/internal/adapter/earthengine/expr"
	"github.com/couchcryptid/burn-severity-service/internal/observability"
)

// Engine is the remote computation surface the cache decorates.
type Engine interface {
	ComputeValue(ctx context.Context, n *expr.Node) (json.RawMessage, error)
	MapTiles(ctx context.Context, n *expr.Node) (string, error)
}

// Store is an optional shared cache tier behind the in-process LRU.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEngine memoises engine results by graph hash. Identical graphs
// reach the remote engine once per TTL.
type CachedEngine struct {
	inner   Engine
	memory  *lruCache
	store   Store
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedEngine wraps inner with an LRU of maxEntries. store may be nil.
func NewCachedEngine(inner Engine, maxEntries int, ttl time.Duration, store Store, metrics *observability.Metrics, logger *slog.Logger) *CachedEngine {
	return &CachedEngine{
		inner:   inner,
		memory:  newLRUCache(maxEntries, ttl, clockwork.NewRealClock()),
		store:   store,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *CachedEngine) ComputeValue(ctx context.Context, n *expr.Node) (json.RawMessage, error) {
	key := "compute:" + expr.Hash(n)
	if v, ok := c.lookup(ctx, key); ok {
		return json.RawMessage(v), nil
	}
	result, err := c.inner.ComputeValue(ctx, n)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, result)
	return result, nil
}

func (c *CachedEngine) MapTiles(ctx context.Context, n *expr.Node) (string, error) {
	key := "map:" + expr.Hash(n)
	if v, ok := c.lookup(ctx, key); ok {
		return string(v), nil
	}
	url, err := c.inner.MapTiles(ctx, n)
	if err != nil {
		return "", err
	}
	c.save(ctx, key, []byte(url))
	return url, nil
}

func (c *CachedEngine) lookup(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.memory.get(key); ok {
		c.metrics.EngineCache.WithLabelValues("memory", "hit").Inc()
		return v, true
	}
	c.metrics.EngineCache.WithLabelValues("memory", "miss").Inc()

	if c.store == nil {
		return nil, false
	}
	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache store read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		c.metrics.EngineCache.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	c.metrics.EngineCache.WithLabelValues("redis", "hit").Inc()
	c.memory.put(key, v)
	return v, true
}

func (c *CachedEngine) save(ctx context.Context, key string, v []byte) {
	c.memory.put(key, v)
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, v, c.ttl); err != nil {
		c.logger.Warn("cache store write failed", "key", key, "error", err)
	}
}

// lruCache is a thread-safe LRU cache whose entries expire after ttl.
type lruCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		c.remove(e)
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
