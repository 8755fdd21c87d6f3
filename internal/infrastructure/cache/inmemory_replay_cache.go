package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	appinv "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
)

type cacheKey struct {
	tenantID uuid.UUID
	key      string
}

type entry struct {
	record    invoicing.IdempotencyRecord
	expiresAt time.Time
}

// InMemoryReplayCache is a process-local ReplayCache for single-instance
// deployments and tests
type InMemoryReplayCache struct {
	mu        sync.RWMutex
	entries   map[cacheKey]entry
	ttl       time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryReplayCache creates a cache whose entries live for ttl and
// starts a goroutine that evicts expired entries every cleanupInterval.
func NewInMemoryReplayCache(ttl, cleanupInterval time.Duration) *InMemoryReplayCache {
	c := &InMemoryReplayCache{
		entries:  make(map[cacheKey]entry),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		c.wg.Add(1)
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

// Get returns a copy of the cached record or nil on a miss
func (c *InMemoryReplayCache) Get(_ context.Context, tenantID uuid.UUID, key string) (*invoicing.IdempotencyRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[cacheKey{tenantID, key}]
	if !ok || c.expired(e) {
		return nil, nil
	}
	rec := e.record
	rec.ResponseBody = append([]byte(nil), e.record.ResponseBody...)
	return &rec, nil
}

// Put stores a copy of record
func (c *InMemoryReplayCache) Put(_ context.Context, record *invoicing.IdempotencyRecord) error {
	rec := *record
	rec.ResponseBody = append([]byte(nil), record.ResponseBody...)

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{record.TenantID, record.Key}] = entry{record: rec, expiresAt: expiresAt}
	return nil
}

// Size returns the number of stored entries, expired ones included
func (c *InMemoryReplayCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *InMemoryReplayCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *InMemoryReplayCache) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}

func (c *InMemoryReplayCache) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryReplayCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
		}
	}
}

var _ appinv.ReplayCache = (*InMemoryReplayCache)(nil)
