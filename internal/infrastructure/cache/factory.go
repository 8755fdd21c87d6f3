package cache

import (
	"context"
	"fmt"
	"time"

	appinv "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// ReplayCache is a closable appinv.ReplayCache
type ReplayCache interface {
	appinv.ReplayCache
	Close() error
}

// ReplayCacheFactory creates replay caches based on configuration
type ReplayCacheFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ReplayCacheFactoryOption is a functional option for configuring the factory
type ReplayCacheFactoryOption func(*ReplayCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ReplayCacheFactoryOption {
	return func(f *ReplayCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory cache. Default is true.
func WithInMemoryFallback(allow bool) ReplayCacheFactoryOption {
	return func(f *ReplayCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewReplayCacheFactory creates a new factory
func NewReplayCacheFactory(cfg config.RedisConfig, opts ...ReplayCacheFactoryOption) *ReplayCacheFactory {
	f := &ReplayCacheFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the cache selected by cfg, or nil when caching is disabled.
// Losing the cache only costs a database lookup, so an unreachable Redis falls
// back to memory unless fallback was turned off.
func (f *ReplayCacheFactory) Create(ctx context.Context, cfg config.IdempotencyConfig) (ReplayCache, error) {
	if !cfg.CacheEnabled {
		return nil, nil
	}

	switch cfg.CacheBackend {
	case BackendMemory:
		f.logger.Info("Using in-memory idempotency replay cache", zap.Duration("ttl", cfg.CacheTTL))
		return f.CreateInMemory(cfg.CacheTTL), nil
	case BackendRedis, "":
	default:
		return nil, fmt.Errorf("unknown idempotency cache backend %q", cfg.CacheBackend)
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis idempotency replay cache",
			zap.String("addr", f.redisConfig.Addr()),
			zap.Duration("ttl", cfg.CacheTTL),
		)
		return NewRedisReplayCache(client, defaultKeyPrefix, cfg.CacheTTL), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency cache but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency replay cache",
		zap.Error(err),
	)
	return f.CreateInMemory(cfg.CacheTTL), nil
}

// CreateInMemory creates a process-local cache
func (f *ReplayCacheFactory) CreateInMemory(ttl time.Duration) *InMemoryReplayCache {
	cleanup := ttl
	if cleanup <= 0 || cleanup > 5*time.Minute {
		cleanup = 5 * time.Minute
	}
	return NewInMemoryReplayCache(ttl, cleanup)
}
