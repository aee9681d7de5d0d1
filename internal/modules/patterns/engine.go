package patterns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	"github.com/yungbote/patternlens-backend/internal/modules/similarity"
	"github.com/yungbote/patternlens-backend/internal/platform/cache"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type Config struct {
	MinSupport    float64
	MinConfidence float64
	RadiusKm      float64
	MinCount      int
	// CacheTTL bounds staleness of every derived result.
	CacheTTL time.Duration
	// MaxInsightAttributes caps how many of a report's attributes are expanded by Insights.
	MaxInsightAttributes int
	SimilarLimit         int
}

func DefaultConfig() Config {
	return Config{
		MinSupport:           0.05,
		MinConfidence:        0.6,
		RadiusKm:             100,
		MinCount:             2,
		CacheTTL:             10 * time.Minute,
		MaxInsightAttributes: 10,
		SimilarLimit:         5,
	}
}

// SimilarFinder supplies the similar-reports section of Insights.
type SimilarFinder interface {
	FindSimilar(ctx context.Context, reportID uuid.UUID, limit int) (*similarity.Result, error)
}

type EngineDeps struct {
	Log       *logger.Logger
	Reports   repos.ReportRepo
	Extracted repos.ExtractedAttributeRepo
	// Optional.
	Similar SimilarFinder
	Cache   cache.Cache
	Config  Config
}

// Engine derives corpus statistics from the attribute store. Results are read-only and
// cached for Config.CacheTTL; any attribute write drops the whole namespace.
type Engine struct {
	deps EngineDeps
	cfg  Config
	log  *logger.Logger
}

func NewEngine(deps EngineDeps) *Engine {
	def := DefaultConfig()
	cfg := deps.Config
	if cfg.MinSupport < 0 || cfg.MinSupport > 1 {
		cfg.MinSupport = def.MinSupport
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = def.RadiusKm
	}
	if cfg.MinCount <= 0 {
		cfg.MinCount = def.MinCount
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.MaxInsightAttributes <= 0 {
		cfg.MaxInsightAttributes = def.MaxInsightAttributes
	}
	if cfg.SimilarLimit <= 0 {
		cfg.SimilarLimit = def.SimilarLimit
	}
	return &Engine{deps: deps, cfg: cfg, log: deps.Log.With("service", "CorrelationEngine")}
}

func (e *Engine) Config() Config { return e.cfg }

const cacheNamespace = "patterns"

// AttributesChanged drops every cached pattern; corpus-wide statistics shift with any write.
func (e *Engine) AttributesChanged(ctx context.Context, reportIDs ...uuid.UUID) {
	if e.deps.Cache == nil {
		return
	}
	if err := e.deps.Cache.DeletePrefix(ctx, cache.Prefix(cacheNamespace)); err != nil {
		e.log.Warn("pattern cache invalidation failed", "reports", len(reportIDs), "error", err)
	}
}

// cached serves key from the cache or computes, stores and returns it. Cache failures
// only cost a recomputation.
func cached[T any](ctx context.Context, e *Engine, key string, compute func() (T, error)) (T, error) {
	if e.deps.Cache != nil {
		if raw, ok, err := e.deps.Cache.Get(ctx, key); err == nil && ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				return v, nil
			}
		}
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	if e.deps.Cache != nil {
		if raw, err := json.Marshal(v); err == nil {
			if err := e.deps.Cache.Set(ctx, key, raw, e.cfg.CacheTTL); err != nil {
				e.log.Debug("pattern cache set failed", "key", key, "error", err)
			}
		}
	}
	return v, nil
}

func cacheKey(op string, kv repos.KeyValue, params ...any) string {
	parts := []string{cacheNamespace, op, kv.Key, kv.Value}
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return cache.Key(parts...)
}
