package cache

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/virtend/virtend/internal/config"
	"github.com/virtend/virtend/internal/observability"
	"github.com/virtend/virtend/internal/retry"
)

// flushScanBatch is the SCAN page size used when flushing prefixed keys.
const flushScanBatch = 256

// redisStore keeps entries in a shared redis database, under a key
// prefix so several processes can share the instance.
type redisStore struct {
	logger     observability.Logger
	client     *redis.Client
	retryCfg   *retry.Config
	keyPrefix  string
	defaultTTL time.Duration
	ttlJitter  float64
	hashKeys   bool

	hits   atomic.Int64
	misses atomic.Int64
}

func newRedisStore(cfg *config.CacheConfig, logger observability.Logger) (*redisStore, error) {
	rc := cfg.Redis
	if rc == nil {
		return nil, errors.New("redis configuration is required")
	}
	if rc.URL == "" {
		return nil, errors.New("redis URL is required")
	}

	opts, err := redis.ParseURL(rc.URL)
	if err != nil {
		return nil, errors.New("invalid redis URL: " + err.Error())
	}
	if rc.PoolSize > 0 {
		opts.PoolSize = rc.PoolSize
	}
	if rc.ConnectTimeout > 0 {
		opts.DialTimeout = rc.ConnectTimeout.Duration()
	}
	if rc.ReadTimeout > 0 {
		opts.ReadTimeout = rc.ReadTimeout.Duration()
	}
	if rc.WriteTimeout > 0 {
		opts.WriteTimeout = rc.WriteTimeout.Duration()
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.New("redis connection failed: " + err.Error())
	}

	prefix := rc.KeyPrefix
	if prefix == "" {
		prefix = "virtend:"
	}

	c := &redisStore{
		logger:    logger,
		client:    client,
		keyPrefix: prefix,
		retryCfg: &retry.Config{
			MaxRetries:     rc.Retry.GetMaxRetries(),
			InitialBackoff: rc.Retry.GetInitialBackoff(),
			MaxBackoff:     rc.Retry.GetMaxBackoff(),
			JitterFactor:   retry.DefaultJitterFactor,
		},
		defaultTTL: cfg.TTL.Duration(),
		ttlJitter:  rc.TTLJitter,
		hashKeys:   rc.HashKeys,
	}

	logger.Info("redis cache initialized",
		observability.String("keyPrefix", prefix),
		observability.Duration("defaultTTL", c.defaultTTL),
		observability.Float64("ttlJitter", c.ttlJitter),
		observability.Bool("hashKeys", c.hashKeys))

	return c, nil
}

// isRetryableRedisError accepts everything except misses and context
// ends; what remains is connection or server trouble worth another
// attempt.
func isRetryableRedisError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, redis.Nil) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// applyTTLJitter spreads ttl by up to ±jitterFactor of its value, so
// entries written together do not expire together.
func applyTTLJitter(ttl time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 || ttl <= 0 {
		return ttl
	}
	jitterFactor = min(jitterFactor, 1.0)
	//nolint:gosec // G404: timing jitter, not security
	spread := time.Duration(float64(ttl) * jitterFactor * (2*rand.Float64() - 1))
	if ttl+spread <= 0 {
		return ttl
	}
	return ttl + spread
}

// resolveKey applies the key prefix and optional SHA256 hashing.
func (c *redisStore) resolveKey(key string) string {
	if c.hashKeys {
		return c.keyPrefix + HashKey(key)
	}
	return c.keyPrefix + key
}

// observe opens a client span and a latency observation for one round
// trip. The returned finish must be deferred.
func (c *redisStore) observe(ctx context.Context, op, key string) (context.Context, trace.Span, func()) {
	attrs := []attribute.KeyValue{attribute.String("cache.backend", "redis")}
	if key != "" {
		attrs = append(attrs, attribute.String("cache.key", key))
	}
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "cache."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))

	start := time.Now()
	return ctx, span, func() {
		GetCacheMetrics().opSeconds.WithLabelValues("redis", op).Observe(time.Since(start).Seconds())
		span.End()
	}
}

// call runs one redis round trip under the retry policy.
func (c *redisStore) call(ctx context.Context, op, key string, fn func() error) error {
	return retry.Do(ctx, c.retryCfg, fn,
		retry.WithShouldRetry(isRetryableRedisError),
		retry.WithOnRetry(func(attempt int, _ error, _ time.Duration) {
			c.logger.Debug("retrying redis "+op,
				observability.String("key", key),
				observability.Int("attempt", attempt))
		}))
}

// fail records a definitive round-trip failure on the span, the error
// counter, and the log.
func (c *redisStore) fail(span trace.Span, op, key string, err error) {
	GetCacheMetrics().failures.WithLabelValues("redis", op).Inc()
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)

	fields := []observability.Field{observability.Error(err)}
	if key != "" {
		fields = append(fields, observability.String("key", key))
	}
	c.logger.Error("redis "+op+" failed", fields...)
}

// Get returns the cached value for key.
func (c *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span, finish := c.observe(ctx, "get", key)
	defer finish()

	var value []byte
	err := c.call(ctx, "get", key, func() error {
		v, err := c.client.Get(ctx, c.resolveKey(key)).Bytes()
		if err == nil {
			value = v
		}
		return err
	})

	switch {
	case err == nil:
		c.hits.Add(1)
		GetCacheMetrics().hits.WithLabelValues("redis").Inc()
		span.SetAttributes(
			attribute.Bool("cache.hit", true),
			attribute.Int("cache.value_size", len(value)))
		c.logger.Debug("cache hit",
			observability.String("key", key),
			observability.Int("size", len(value)))
		return value, nil

	case errors.Is(err, redis.Nil):
		c.misses.Add(1)
		GetCacheMetrics().misses.WithLabelValues("redis").Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss

	default:
		c.fail(span, "get", key, err)
		return nil, err
	}
}

// Set stores value under key. A zero ttl takes the store default; the
// configured jitter then spreads whatever ttl results.
func (c *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span, finish := c.observe(ctx, "set", key)
	defer finish()
	span.SetAttributes(attribute.Int("cache.value_size", len(value)))

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	ttl = applyTTLJitter(ttl, c.ttlJitter)

	err := c.call(ctx, "set", key, func() error {
		return c.client.Set(ctx, c.resolveKey(key), value, ttl).Err()
	})
	if err != nil {
		c.fail(span, "set", key, err)
		return err
	}

	c.logger.Debug("cache set",
		observability.String("key", key),
		observability.Duration("ttl", ttl),
		observability.Int("size", len(value)))
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *redisStore) Delete(ctx context.Context, key string) error {
	ctx, span, finish := c.observe(ctx, "delete", key)
	defer finish()

	err := c.call(ctx, "delete", key, func() error {
		return c.client.Del(ctx, c.resolveKey(key)).Err()
	})
	if err != nil {
		c.fail(span, "delete", key, err)
		return err
	}

	c.logger.Debug("cache deleted", observability.String("key", key))
	return nil
}

// Exists reports whether key holds a live entry.
func (c *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span, finish := c.observe(ctx, "exists", key)
	defer finish()

	var n int64
	err := c.call(ctx, "exists", key, func() error {
		var err error
		n, err = c.client.Exists(ctx, c.resolveKey(key)).Result()
		return err
	})
	if err != nil {
		c.fail(span, "exists", key, err)
		return false, err
	}

	span.SetAttributes(attribute.Bool("cache.exists", n > 0))
	return n > 0, nil
}

// Flush removes every key under this store's prefix. Keys owned by
// other tenants of the same redis database are left alone.
func (c *redisStore) Flush(ctx context.Context) error {
	ctx, span, finish := c.observe(ctx, "flush", "")
	defer finish()

	var cursor uint64
	removed := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.keyPrefix+"*", flushScanBatch).Result()
		if err == nil && len(keys) > 0 {
			err = c.client.Del(ctx, keys...).Err()
		}
		if err != nil {
			c.fail(span, "flush", "", err)
			return err
		}

		removed += len(keys)
		if cursor = next; cursor == 0 {
			break
		}
	}

	span.SetAttributes(attribute.Int("cache.flushed", removed))
	c.logger.Debug("cache flushed", observability.Int("removed", removed))
	return nil
}

// Close closes the redis connection.
func (c *redisStore) Close() error {
	c.logger.Info("redis cache closing")
	return c.client.Close()
}

// Stats returns hit and miss counters. Size is not tracked for redis;
// the instance is shared.
func (c *redisStore) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
