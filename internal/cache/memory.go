package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/virtend/virtend/internal/config"
	"github.com/virtend/virtend/internal/observability"
)

// cacheTracerName is the OpenTelemetry tracer name for cache operations.
const cacheTracerName = "virtend/cache"

// memoryStore is an in-process LRU store. Entries live on an intrusive
// doubly linked list ordered by recency; the map indexes the same
// nodes by key.
type memoryStore struct {
	logger     observability.Logger
	capacity   int
	defaultTTL time.Duration

	mu    sync.Mutex
	items map[string]*lruNode
	head  *lruNode // most recently used
	tail  *lruNode // next eviction candidate

	hits   atomic.Int64
	misses atomic.Int64

	quit chan struct{}
}

type lruNode struct {
	key        string
	value      []byte
	expiresAt  time.Time
	prev, next *lruNode
}

func (n *lruNode) expired(now time.Time) bool {
	return !n.expiresAt.IsZero() && now.After(n.expiresAt)
}

//nolint:unparam // error return mirrors the redis constructor
func newMemoryStore(cfg *config.CacheConfig, logger observability.Logger) (*memoryStore, error) {
	capacity := cfg.MaxEntries
	if capacity <= 0 {
		capacity = 10000
	}

	c := &memoryStore{
		logger:     logger,
		capacity:   capacity,
		defaultTTL: cfg.TTL.Duration(),
		items:      make(map[string]*lruNode),
		quit:       make(chan struct{}),
	}
	go c.cleanupLoop()

	logger.Info("memory cache initialized",
		observability.Int("maxEntries", capacity),
		observability.Duration("defaultTTL", c.defaultTTL))

	return c, nil
}

// observe opens a span and a latency observation for one store
// operation. The returned finish must be deferred.
func (c *memoryStore) observe(ctx context.Context, op, key string) (trace.Span, func()) {
	attrs := []attribute.KeyValue{attribute.String("cache.backend", "memory")}
	if key != "" {
		attrs = append(attrs, attribute.String("cache.key", key))
	}
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "cache."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))

	start := time.Now()
	return span, func() {
		GetCacheMetrics().opSeconds.WithLabelValues("memory", op).Observe(time.Since(start).Seconds())
		span.End()
	}
}

// Get returns the cached value for key, refreshing its recency.
func (c *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	span, finish := c.observe(ctx, "get", key)
	defer finish()

	c.mu.Lock()
	n, ok := c.items[key]
	if ok && n.expired(time.Now()) {
		c.drop(n)
		ok = false
	}
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		GetCacheMetrics().misses.WithLabelValues("memory").Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	}
	c.unlink(n)
	c.pushFront(n)
	value := n.value
	c.mu.Unlock()

	c.hits.Add(1)
	GetCacheMetrics().hits.WithLabelValues("memory").Inc()
	span.SetAttributes(
		attribute.Bool("cache.hit", true),
		attribute.Int("cache.value_size", len(value)))
	c.logger.Debug("cache hit", observability.String("key", key))

	return value, nil
}

// Set stores value under key. A zero ttl takes the store default; a
// negative one keeps the entry until eviction.
func (c *memoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	span, finish := c.observe(ctx, "set", key)
	defer finish()
	span.SetAttributes(attribute.Int("cache.value_size", len(value)))

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.items[key]; ok {
		n.value = value
		n.expiresAt = expiresAt
		c.unlink(n)
		c.pushFront(n)
		c.logger.Debug("cache updated",
			observability.String("key", key),
			observability.Duration("ttl", ttl))
		return nil
	}

	n := &lruNode{key: key, value: value, expiresAt: expiresAt}
	c.pushFront(n)
	c.items[key] = n

	for len(c.items) > c.capacity {
		c.evictTail()
	}

	GetCacheMetrics().entries.WithLabelValues("memory").Set(float64(len(c.items)))
	c.logger.Debug("cache set",
		observability.String("key", key),
		observability.Duration("ttl", ttl),
		observability.Int("size", len(c.items)))

	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *memoryStore) Delete(ctx context.Context, key string) error {
	_, finish := c.observe(ctx, "delete", key)
	defer finish()

	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.items[key]; ok {
		c.drop(n)
		c.logger.Debug("cache deleted", observability.String("key", key))
	}
	return nil
}

// Exists reports whether key holds a live entry.
func (c *memoryStore) Exists(ctx context.Context, key string) (bool, error) {
	span, finish := c.observe(ctx, "exists", key)
	defer finish()

	c.mu.Lock()
	n, ok := c.items[key]
	if ok && n.expired(time.Now()) {
		c.drop(n)
		ok = false
	}
	c.mu.Unlock()

	span.SetAttributes(attribute.Bool("cache.exists", ok))
	return ok, nil
}

// Flush empties the store.
func (c *memoryStore) Flush(ctx context.Context) error {
	_, finish := c.observe(ctx, "flush", "")
	defer finish()

	c.mu.Lock()
	removed := len(c.items)
	c.reset()
	c.mu.Unlock()

	GetCacheMetrics().entries.WithLabelValues("memory").Set(0)
	c.logger.Debug("cache flushed", observability.Int("removed", removed))
	return nil
}

// Close empties the store and stops its cleanup goroutine.
func (c *memoryStore) Close() error {
	close(c.quit)

	c.mu.Lock()
	c.reset()
	c.mu.Unlock()

	c.logger.Info("memory cache closed")
	return nil
}

// Stats returns hit, miss, and size counters.
func (c *memoryStore) Stats() Stats {
	c.mu.Lock()
	size := int64(len(c.items))
	c.mu.Unlock()

	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: size}
}

// List surgery below runs under c.mu.

func (c *memoryStore) pushFront(n *lruNode) {
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *memoryStore) unlink(n *lruNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *memoryStore) drop(n *lruNode) {
	c.unlink(n)
	delete(c.items, n.key)
}

func (c *memoryStore) evictTail() {
	n := c.tail
	if n == nil {
		return
	}
	c.drop(n)
	GetCacheMetrics().evictions.WithLabelValues("memory").Inc()
	c.logger.Debug("cache evicted oldest entry")
}

func (c *memoryStore) reset() {
	c.items = make(map[string]*lruNode)
	c.head, c.tail = nil, nil
}

func (c *memoryStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.quit:
			return
		}
	}
}

// cleanup drops expired entries under one write lock, so nothing can
// touch an entry between the scan and its removal.
func (c *memoryStore) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for n := c.tail; n != nil; {
		prev := n.prev
		if n.expired(now) {
			c.drop(n)
			removed++
		}
		n = prev
	}

	if removed > 0 {
		c.logger.Debug("cache cleanup completed", observability.Int("removed", removed))
	}
}
