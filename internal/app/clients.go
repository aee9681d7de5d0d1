package app

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/patternlens-backend/internal/observability"
	"github.com/yungbote/patternlens-backend/internal/platform/cache"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
	"github.com/yungbote/patternlens-backend/internal/platform/openai"
)

type Clients struct {
	OpenAI openai.Client
	Cache  cache.Cache
	redis  *cache.RedisCache
}

func wireClients(ctx context.Context, log *logger.Logger, metrics *observability.Metrics, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Openai
	ai, err := openai.NewClient(log, metrics, openai.ConfigFromEnv(log))
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	// Cache: in-process only unless Redis is configured
	memory := cache.NewMemoryCache(cfg.MemoryCacheTTL, 2*cfg.MemoryCacheTTL)
	var shared cache.Cache
	var rc *cache.RedisCache
	if cfg.RedisAddr != "" {
		rc, err = cache.NewRedisCache(ctx, log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis cache: %w", err)
		}
		shared = rc
	}
	memoryTTL := cfg.MemoryCacheTTL
	if memoryTTL <= 0 {
		memoryTTL = time.Minute
	}

	return Clients{
		OpenAI: ai,
		Cache:  cache.NewLayeredCache(log, metrics, memory, shared, memoryTTL),
		redis:  rc,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
}
