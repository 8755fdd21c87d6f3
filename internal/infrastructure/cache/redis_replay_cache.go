package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	appinv "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "invoicing:idempotency:"

// RedisReplayCache keeps completed idempotency records in Redis so that
// instances behind a load balancer share replays
type RedisReplayCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisClient creates a client and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisReplayCache wraps an existing client. ttl <= 0 keeps entries until evicted.
func NewRedisReplayCache(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisReplayCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisReplayCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// Get returns the cached record or nil on a miss
func (c *RedisReplayCache) Get(ctx context.Context, tenantID uuid.UUID, key string) (*invoicing.IdempotencyRecord, error) {
	raw, err := c.client.Get(ctx, c.key(tenantID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read replay cache: %w", err)
	}
	return decodeRecord(raw)
}

// Put stores a committed record
func (c *RedisReplayCache) Put(ctx context.Context, record *invoicing.IdempotencyRecord) error {
	raw, err := encodeRecord(record)
	if err != nil {
		return err
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key(record.TenantID, record.Key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write replay cache: %w", err)
	}
	return nil
}

func (c *RedisReplayCache) key(tenantID uuid.UUID, key string) string {
	return c.keyPrefix + tenantID.String() + ":" + key
}

// Close closes the underlying client
func (c *RedisReplayCache) Close() error {
	return c.client.Close()
}

// cachedRecord is the wire form of a record. ResponseBody is kept as a JSON
// string so the bytes survive unchanged.
type cachedRecord struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Key          string    `json:"key"`
	Operation    string    `json:"operation"`
	Fingerprint  string    `json:"fingerprint"`
	ResourceID   uuid.UUID `json:"resource_id"`
	ResponseBody string    `json:"response_body"`
	CreatedAt    time.Time `json:"created_at"`
}

func encodeRecord(r *invoicing.IdempotencyRecord) ([]byte, error) {
	raw, err := json.Marshal(cachedRecord{
		ID:           r.ID,
		TenantID:     r.TenantID,
		Key:          r.Key,
		Operation:    string(r.Operation),
		Fingerprint:  r.Fingerprint,
		ResourceID:   r.ResourceID,
		ResponseBody: string(r.ResponseBody),
		CreatedAt:    r.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode idempotency record: %w", err)
	}
	return raw, nil
}

func decodeRecord(raw []byte) (*invoicing.IdempotencyRecord, error) {
	var c cachedRecord
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency record: %w", err)
	}
	return &invoicing.IdempotencyRecord{
		ID:           c.ID,
		TenantID:     c.TenantID,
		Key:          c.Key,
		Operation:    invoicing.IdempotentOperation(c.Operation),
		Fingerprint:  c.Fingerprint,
		ResourceID:   c.ResourceID,
		ResponseBody: []byte(c.ResponseBody),
		CreatedAt:    c.CreatedAt,
	}, nil
}

var _ appinv.ReplayCache = (*RedisReplayCache)(nil)
