package cache

import (
	"context"
	"errors"
	"time"

	"github.com/virtend/virtend/internal/config"
	"github.com/virtend/virtend/internal/observability"
)

// Sentinel errors shared by every backend.
var (
	ErrCacheMiss        = errors.New("cache miss")
	ErrCacheDisabled    = errors.New("cache disabled")
	ErrInvalidConfig    = errors.New("invalid cache configuration")
	ErrConnectionFailed = errors.New("cache connection failed")
	ErrKeyTooLong       = errors.New("cache key too long")
)

// Store is the byte-level cache backend interface. Get reports an
// absent key as ErrCacheMiss; Set with a zero ttl applies the backend
// default, which may mean no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Flush removes every entry this store owns.
	Flush(ctx context.Context) error

	Close() error
}

// StoreWithStats is implemented by backends that count their traffic.
type StoreWithStats interface {
	Store
	Stats() Stats
}

// Stats counts a store's traffic.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int64 `json:"size"`
}

// HitRate returns the fraction of lookups answered from the store, as
// a percentage.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses) * 100
}

// New builds the store the configuration asks for. An empty Type means
// the memory backend.
func New(cfg *config.CacheConfig, logger observability.Logger) (Store, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if !cfg.Enabled {
		return NewDisabledStore(), nil
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Type {
	case config.CacheTypeMemory, "":
		return newMemoryStore(cfg, logger)
	case config.CacheTypeRedis:
		return newRedisStore(cfg, logger)
	default:
		return nil, errors.New("unknown cache type: " + cfg.Type)
	}
}

// NewDisabledStore returns a store whose every operation reports
// ErrCacheDisabled, so callers keep a non-nil store when caching is
// switched off.
func NewDisabledStore() Store {
	return disabledStore{}
}

type disabledStore struct{}

func (disabledStore) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheDisabled }

func (disabledStore) Set(context.Context, string, []byte, time.Duration) error {
	return ErrCacheDisabled
}

func (disabledStore) Delete(context.Context, string) error { return ErrCacheDisabled }

func (disabledStore) Exists(context.Context, string) (bool, error) {
	return false, ErrCacheDisabled
}

func (disabledStore) Flush(context.Context) error { return ErrCacheDisabled }

func (disabledStore) Close() error { return nil }
