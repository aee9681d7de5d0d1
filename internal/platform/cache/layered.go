package cache

import (
	"context"
	"time"

	"github.com/yungbote/patternlens-backend/internal/observability"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

// LayeredCache reads memory first and then the shared layer, promoting shared hits.
// The shared layer is optional; shared-layer errors degrade to misses.
type LayeredCache struct {
	log     *logger.Logger
	metrics *observability.Metrics
	memory  Cache
	shared  Cache
	// memory entries never outlive this, so other replicas' invalidations converge
	memoryTTL time.Duration
}

func NewLayeredCache(log *logger.Logger, metrics *observability.Metrics, memory, shared Cache, memoryTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		log:       log.With("service", "LayeredCache"),
		metrics:   metrics,
		memory:    memory,
		shared:    shared,
		memoryTTL: memoryTTL,
	}
}

func (c *LayeredCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if val, found, _ := c.memory.Get(ctx, key); found {
		c.metrics.CacheLookup("memory", true)
		return val, true, nil
	}
	c.metrics.CacheLookup("memory", false)
	if c.shared == nil {
		return nil, false, nil
	}
	val, found, err := c.shared.Get(ctx, key)
	if err != nil {
		c.log.Warn("shared cache get failed", "key", key, "error", err)
		c.metrics.CacheLookup("shared", false)
		return nil, false, nil
	}
	c.metrics.CacheLookup("shared", found)
	if found {
		_ = c.memory.Set(ctx, key, val, c.memoryTTL)
	}
	return val, found, nil
}

func (c *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	memTTL := ttl
	if c.memoryTTL > 0 && (memTTL <= 0 || memTTL > c.memoryTTL) {
		memTTL = c.memoryTTL
	}
	_ = c.memory.Set(ctx, key, value, memTTL)
	if c.shared == nil {
		return nil
	}
	if err := c.shared.Set(ctx, key, value, ttl); err != nil {
		c.log.Warn("shared cache set failed", "key", key, "error", err)
	}
	return nil
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.memory.Delete(ctx, keys...)
	if c.shared == nil {
		return nil
	}
	return c.shared.Delete(ctx, keys...)
}

func (c *LayeredCache) DeletePrefix(ctx context.Context, prefix string) error {
	_ = c.memory.DeletePrefix(ctx, prefix)
	if c.shared == nil {
		return nil
	}
	return c.shared.DeletePrefix(ctx, prefix)
}
