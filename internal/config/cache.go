package config

import "time"

// Backend selectors for CacheConfig.Type.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Fallbacks for RedisRetryConfig fields left unset.
const (
	DefaultRetryMaxRetries     = 3
	DefaultRetryInitialBackoff = 100 * time.Millisecond
	DefaultRetryMaxBackoff     = 2 * time.Second
)

// CacheConfig selects and tunes the response cache backend.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Type    string `yaml:"type" json:"type"`

	// TTL bounds the lifetime of cached entries. Zero keeps entries
	// until eviction.
	TTL Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`

	// MaxEntries caps the memory backend. The redis backend ignores it.
	MaxEntries int `yaml:"maxEntries,omitempty" json:"maxEntries,omitempty"`

	Redis *RedisCacheConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// DefaultCacheConfig returns the memory backend, enabled, with no TTL.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{Enabled: true, Type: CacheTypeMemory}
}

// RedisCacheConfig tunes the redis backend.
type RedisCacheConfig struct {
	// URL is the connection string, redis://[user:password@]host:port[/db].
	URL string `yaml:"url" json:"url"`

	PoolSize       int      `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`
	ConnectTimeout Duration `yaml:"connectTimeout,omitempty" json:"connectTimeout,omitempty"`
	ReadTimeout    Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout   Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`

	// KeyPrefix namespaces every key this process writes.
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`

	// TTLJitter spreads entry expiry by up to this fraction of the TTL
	// (0..1), so entries written in a burst do not expire as one.
	TTLJitter float64 `yaml:"ttlJitter,omitempty" json:"ttlJitter,omitempty"`

	// HashKeys stores SHA256 digests in place of raw keys, for callers
	// whose signatures run long.
	HashKeys bool `yaml:"hashKeys,omitempty" json:"hashKeys,omitempty"`

	Retry *RedisRetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// RedisRetryConfig bounds retries around redis round trips. The Get*
// accessors substitute the package defaults for unset fields and are
// safe on a nil receiver.
type RedisRetryConfig struct {
	MaxRetries     int      `yaml:"maxRetries,omitempty" json:"maxRetries,omitempty"`
	InitialBackoff Duration `yaml:"initialBackoff,omitempty" json:"initialBackoff,omitempty"`
	MaxBackoff     Duration `yaml:"maxBackoff,omitempty" json:"maxBackoff,omitempty"`
}

// GetMaxRetries returns MaxRetries, defaulted.
func (c *RedisRetryConfig) GetMaxRetries() int {
	if c != nil && c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return DefaultRetryMaxRetries
}

// GetInitialBackoff returns InitialBackoff, defaulted.
func (c *RedisRetryConfig) GetInitialBackoff() time.Duration {
	if c != nil && c.InitialBackoff > 0 {
		return c.InitialBackoff.Duration()
	}
	return DefaultRetryInitialBackoff
}

// GetMaxBackoff returns MaxBackoff, defaulted.
func (c *RedisRetryConfig) GetMaxBackoff() time.Duration {
	if c != nil && c.MaxBackoff > 0 {
		return c.MaxBackoff.Duration()
	}
	return DefaultRetryMaxBackoff
}
