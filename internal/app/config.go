package app

import (
	"strings"
	"time"

	"github.com/yungbote/patternlens-backend/internal/modules/attributes"
	"github.com/yungbote/patternlens-backend/internal/modules/patterns"
	"github.com/yungbote/patternlens-backend/internal/modules/search"
	"github.com/yungbote/patternlens-backend/internal/modules/similarity"
	"github.com/yungbote/patternlens-backend/internal/platform/envutil"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type Config struct {
	ServiceName string
	Environment string
	Version     string
	Port        string
	CORSOrigins []string

	JWTSecretKey string
	// SchemaFile seeds categories and attribute definitions at boot when set.
	SchemaFile string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// MemoryCacheTTL bounds the in-process layer in front of Redis.
	MemoryCacheTTL time.Duration

	Validator  attributes.ValidatorConfig
	Backfill   attributes.BackfillConfig
	Intent     search.IntentConfig
	Retriever  search.RetrieverConfig
	Scorer     similarity.Config
	Similarity similarity.ServiceConfig
	Patterns   patterns.Config
}

func LoadConfig(log *logger.Logger) Config {
	vc := attributes.DefaultValidatorConfig()
	bc := attributes.DefaultBackfillConfig()
	ic := search.DefaultIntentConfig()
	rc := search.DefaultRetrieverConfig()
	sc := similarity.DefaultConfig()
	svc := similarity.DefaultServiceConfig()
	pc := patterns.DefaultConfig()

	return Config{
		ServiceName: envutil.String("SERVICE_NAME", "patternlens-api", log),
		Environment: envutil.String("APP_ENV", "development", log),
		Version:     envutil.String("APP_VERSION", "dev", log),
		Port:        envutil.String("PORT", "8080", log),
		CORSOrigins: splitList(envutil.String("CORS_ORIGINS", "", log)),

		JWTSecretKey: envutil.String("JWT_SECRET_KEY", "", log),
		SchemaFile:   envutil.String("ATTRIBUTE_SCHEMA_FILE", "", log),

		RedisAddr:      envutil.String("REDIS_ADDR", "", log),
		RedisPassword:  envutil.String("REDIS_PASSWORD", "", log),
		RedisDB:        envutil.Int("REDIS_DB", 0, log),
		MemoryCacheTTL: envutil.Duration("MEMORY_CACHE_TTL", time.Minute, log),

		Validator: attributes.ValidatorConfig{
			MinSimilarity:     envutil.Float("FUZZY_MIN_SIMILARITY", vc.MinSimilarity, log),
			CorrectionPenalty: envutil.Float("FUZZY_CORRECTION_PENALTY", vc.CorrectionPenalty, log),
		},
		Backfill: attributes.BackfillConfig{
			Workers:       envutil.Int("BACKFILL_WORKERS", bc.Workers, log),
			RatePerSecond: envutil.Float("BACKFILL_RATE_PER_SECOND", bc.RatePerSecond, log),
			Burst:         envutil.Int("BACKFILL_BURST", bc.Burst, log),
			DefaultLimit:  envutil.Int("BACKFILL_DEFAULT_LIMIT", bc.DefaultLimit, log),
			MaxLimit:      envutil.Int("BACKFILL_MAX_LIMIT", bc.MaxLimit, log),
		},
		Intent: search.IntentConfig{
			MinNaturalWords:      envutil.Int("INTENT_MIN_NATURAL_WORDS", ic.MinNaturalWords, log),
			MaxNaturalDensity:    envutil.Float("INTENT_MAX_NATURAL_DENSITY", ic.MaxNaturalDensity, log),
			MinKeywordDensity:    envutil.Float("INTENT_MIN_KEYWORD_DENSITY", ic.MinKeywordDensity, log),
			MaxKeywordWords:      envutil.Int("INTENT_MAX_KEYWORD_WORDS", ic.MaxKeywordWords, log),
			NaturalVectorWeight:  envutil.Float("INTENT_NATURAL_VECTOR_WEIGHT", ic.NaturalVectorWeight, log),
			QuestionVectorWeight: envutil.Float("INTENT_QUESTION_VECTOR_WEIGHT", ic.QuestionVectorWeight, log),
			KeywordFTSWeight:     envutil.Float("INTENT_KEYWORD_FTS_WEIGHT", ic.KeywordFTSWeight, log),
		},
		Retriever: search.RetrieverConfig{
			DefaultLimit:     envutil.Int("SEARCH_DEFAULT_LIMIT", rc.DefaultLimit, log),
			MaxLimit:         envutil.Int("SEARCH_MAX_LIMIT", rc.MaxLimit, log),
			Overfetch:        envutil.Int("SEARCH_OVERFETCH", rc.Overfetch, log),
			EmbedTimeout:     envutil.Duration("SEARCH_EMBED_TIMEOUT", rc.EmbedTimeout, log),
			AnalyticsTimeout: envutil.Duration("SEARCH_ANALYTICS_TIMEOUT", rc.AnalyticsTimeout, log),
			LexicalPrefetch:  envutil.Bool("SEARCH_LEXICAL_PREFETCH", rc.LexicalPrefetch, log),
		},
		Scorer: similarity.Config{
			SameCategoryBase:  envutil.Float("SIMILARITY_SAME_CATEGORY_BASE", sc.SameCategoryBase, log),
			TagPoints:         envutil.Float("SIMILARITY_TAG_POINTS", sc.TagPoints, log),
			TagCap:            envutil.Float("SIMILARITY_TAG_CAP", sc.TagCap, log),
			NearKm:            envutil.Float("SIMILARITY_NEAR_KM", sc.NearKm, log),
			NearBonus:         envutil.Float("SIMILARITY_NEAR_BONUS", sc.NearBonus, log),
			FarKm:             envutil.Float("SIMILARITY_FAR_KM", sc.FarKm, log),
			TagLocationWeight: envutil.Float("SIMILARITY_TAG_LOCATION_WEIGHT", sc.TagLocationWeight, log),
			AttributeWeight:   envutil.Float("SIMILARITY_ATTRIBUTE_WEIGHT", sc.AttributeWeight, log),
		},
		Similarity: similarity.ServiceConfig{
			DefaultLimit:  envutil.Int("SIMILARITY_DEFAULT_LIMIT", svc.DefaultLimit, log),
			MaxLimit:      envutil.Int("SIMILARITY_MAX_LIMIT", svc.MaxLimit, log),
			CandidatePool: envutil.Int("SIMILARITY_CANDIDATE_POOL", svc.CandidatePool, log),
		},
		Patterns: patterns.Config{
			MinSupport:           envutil.Float("PATTERNS_MIN_SUPPORT", pc.MinSupport, log),
			MinConfidence:        envutil.Float("PATTERNS_MIN_CONFIDENCE", pc.MinConfidence, log),
			RadiusKm:             envutil.Float("PATTERNS_RADIUS_KM", pc.RadiusKm, log),
			MinCount:             envutil.Int("PATTERNS_MIN_COUNT", pc.MinCount, log),
			CacheTTL:             envutil.Duration("PATTERNS_CACHE_TTL", pc.CacheTTL, log),
			MaxInsightAttributes: envutil.Int("PATTERNS_MAX_INSIGHT_ATTRIBUTES", pc.MaxInsightAttributes, log),
			SimilarLimit:         envutil.Int("PATTERNS_SIMILAR_LIMIT", pc.SimilarLimit, log),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
