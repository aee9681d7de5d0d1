package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/observability"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

const (
	PathHybrid  = "hybrid"
	PathLexical = "lexical"
	PathRecent  = "recent"
)

// Embedder computes query embeddings. Failures degrade retrieval to lexical only.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type RetrieverConfig struct {
	DefaultLimit int
	MaxLimit     int
	// Overfetch multiplies the limit for the candidate pool refined in memory.
	Overfetch        int
	EmbedTimeout     time.Duration
	AnalyticsTimeout time.Duration
	// LexicalPrefetch runs the full-text query alongside the embedding call. It trades
	// one extra query per search for lower latency when the hybrid path falls back.
	LexicalPrefetch bool
}

func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		DefaultLimit:     20,
		MaxLimit:         100,
		Overfetch:        3,
		EmbedTimeout:     5 * time.Second,
		AnalyticsTimeout: 3 * time.Second,
	}
}

// Filters are exact constraints applied after retrieval.
type Filters struct {
	Category     string
	Tags         []string
	Location     string
	From         *time.Time
	To           *time.Time
	HasWitnesses *bool
	Limit        int
}

type Result struct {
	Reports         []*types.Report
	Intent          Intent
	Path            string
	Candidates      int
	EmbeddingFailed bool
	LexicalFallback bool
	Elapsed         time.Duration
}

type RetrieverDeps struct {
	Log      *logger.Logger
	Metrics  *observability.Metrics
	Reports  repos.ReportRepo
	Events   repos.SearchEventRepo
	Embedder Embedder
	Config   RetrieverConfig
}

type Retriever struct {
	deps RetrieverDeps
	cfg  RetrieverConfig
	log  *logger.Logger
	// tracks in-flight analytics writes
	wg sync.WaitGroup
}

func NewRetriever(deps RetrieverDeps) *Retriever {
	def := DefaultRetrieverConfig()
	cfg := deps.Config
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.Overfetch <= 0 {
		cfg.Overfetch = def.Overfetch
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = def.EmbedTimeout
	}
	if cfg.AnalyticsTimeout <= 0 {
		cfg.AnalyticsTimeout = def.AnalyticsTimeout
	}
	return &Retriever{deps: deps, cfg: cfg, log: deps.Log.With("service", "HybridRetriever")}
}

func (r *Retriever) limit(n int) int {
	if n <= 0 {
		return r.cfg.DefaultLimit
	}
	if n > r.cfg.MaxLimit {
		return r.cfg.MaxLimit
	}
	return n
}

// Retrieve runs the hybrid search for query and refines the candidates with filters. A
// failed embedding or hybrid search degrades to lexical search; only a failure of both
// paths is returned as an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, intent Intent, f Filters) (*Result, error) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "search.retrieve")
	defer span.End()

	query = strings.TrimSpace(query)
	limit := r.limit(f.Limit)
	fetch := limit * r.cfg.Overfetch
	res := &Result{Intent: intent}

	var (
		embedding   []float32
		embedErr    error
		prefetch    []*types.Report
		prefetchErr error
		prefetched  bool
	)
	if r.cfg.LexicalPrefetch {
		// Neither leg returns an error so one failing never cancels the other.
		eg, gctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			embedding, embedErr = r.embed(gctx, query)
			return nil
		})
		eg.Go(func() error {
			prefetch, prefetchErr = r.deps.Reports.LexicalSearch(gctx, nil, query, f.Category, fetch)
			return nil
		})
		_ = eg.Wait()
		prefetched = prefetchErr == nil
	} else {
		embedding, embedErr = r.embed(ctx, query)
	}

	if embedErr != nil {
		res.EmbeddingFailed = true
		r.deps.Metrics.SearchDegraded("embedding_failed")
		r.log.Warn("query embedding failed; continuing lexical-only", "error", embedErr)
	}

	candidates, hybridErr := r.hybrid(ctx, query, embedding, intent, f.Category, fetch)
	res.Path = PathHybrid
	if hybridErr != nil || len(candidates) == 0 {
		if hybridErr != nil {
			r.deps.Metrics.SearchDegraded("hybrid_failed")
			r.log.Warn("hybrid search failed; falling back to lexical", "error", hybridErr)
		}
		res.LexicalFallback = true
		res.Path = PathLexical
		lexErr := prefetchErr
		if prefetched {
			candidates = prefetch
		} else {
			candidates, lexErr = r.deps.Reports.LexicalSearch(ctx, nil, query, f.Category, fetch)
		}
		if lexErr != nil {
			if hybridErr != nil {
				span.SetStatus(codes.Error, "all retrieval paths failed")
				return nil, apierr.Upstream("search", errors.Join(hybridErr, lexErr))
			}
			r.deps.Metrics.SearchDegraded("lexical_failed")
			r.log.Warn("lexical fallback failed after empty hybrid result", "error", lexErr)
			candidates = nil
		}
	}

	res.Candidates = len(candidates)
	res.Reports = Refine(candidates, f, limit)
	res.Elapsed = time.Since(start)

	span.SetAttributes(
		attribute.String("search.path", res.Path),
		attribute.Int("search.candidates", res.Candidates),
		attribute.Int("search.results", len(res.Reports)),
		attribute.Bool("search.embedding_failed", res.EmbeddingFailed),
	)
	r.deps.Metrics.ObserveSearch(res.Path, res.Elapsed)
	r.recordAsync(ctx, query, f.Category, res)
	return res, nil
}

// Recent lists the newest public reports; the fallback for blank queries.
func (r *Retriever) Recent(ctx context.Context, f Filters) (*Result, error) {
	start := time.Now()
	limit := r.limit(f.Limit)
	rows, err := r.deps.Reports.ListRecent(ctx, nil, f.Category, limit*r.cfg.Overfetch)
	if err != nil {
		return nil, err
	}
	res := &Result{Path: PathRecent, Candidates: len(rows), Reports: Refine(rows, f, limit)}
	res.Elapsed = time.Since(start)
	r.deps.Metrics.ObserveSearch(res.Path, res.Elapsed)
	return res, nil
}

func (r *Retriever) embed(ctx context.Context, query string) ([]float32, error) {
	if r.deps.Embedder == nil {
		return nil, errors.New("embedder not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.EmbedTimeout)
	defer cancel()
	vecs, err := r.deps.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, errors.New("embedder returned no vector")
	}
	return vecs[0], nil
}

func (r *Retriever) hybrid(ctx context.Context, query string, embedding []float32, intent Intent, category string, fetch int) ([]*types.Report, error) {
	hits, err := r.deps.Reports.HybridSearch(ctx, nil, repos.HybridQuery{
		Text:         query,
		Embedding:    embedding,
		VectorWeight: intent.VectorWeight,
		FTSWeight:    intent.FTSWeight,
		Category:     category,
		Limit:        fetch,
	})
	if err != nil || len(hits) == 0 {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ReportID)
	}
	rows, err := r.deps.Reports.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.Report, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]*types.Report, 0, len(ids))
	for _, id := range ids {
		if row := byID[id]; row != nil {
			out = append(out, row)
		}
	}
	return out, nil
}

// Refine applies the exact filters in order and truncates to limit.
func Refine(rows []*types.Report, f Filters, limit int) []*types.Report {
	tags := make(map[string]bool, len(f.Tags))
	for _, t := range f.Tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags[t] = true
		}
	}
	location := strings.ToLower(strings.TrimSpace(f.Location))
	category := strings.TrimSpace(f.Category)

	out := make([]*types.Report, 0, min(len(rows), limit))
	for _, row := range rows {
		if row == nil {
			continue
		}
		if category != "" && row.Category != category {
			continue
		}
		if len(tags) > 0 && !anyTag(row.TagList(), tags) {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(row.LocationText), location) {
			continue
		}
		if f.From != nil && row.OccurredAt.Before(*f.From) {
			continue
		}
		if f.To != nil && row.OccurredAt.After(*f.To) {
			continue
		}
		if f.HasWitnesses != nil {
			has := row.WitnessCount != nil && *row.WitnessCount > 0
			if has != *f.HasWitnesses {
				continue
			}
		}
		out = append(out, row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func anyTag(have []string, want map[string]bool) bool {
	for _, t := range have {
		if want[t] {
			return true
		}
	}
	return false
}

// recordAsync persists the analytics fact off the request path. Failures are logged only.
func (r *Retriever) recordAsync(ctx context.Context, query, category string, res *Result) {
	if r.deps.Events == nil {
		return
	}
	ev := &types.SearchEvent{
		Query:             query,
		NormalizedQuery:   res.Intent.Normalized,
		Category:          category,
		IsQuestion:        res.Intent.IsQuestion,
		IsNaturalLanguage: res.Intent.IsNaturalLanguage,
		IsKeyword:         res.Intent.IsKeyword,
		VectorWeight:      res.Intent.VectorWeight,
		FTSWeight:         res.Intent.FTSWeight,
		ResultCount:       len(res.Reports),
		LatencyMS:         res.Elapsed.Milliseconds(),
		EmbeddingFailed:   res.EmbeddingFailed,
		LexicalFallback:   res.LexicalFallback,
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.AnalyticsTimeout)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				r.deps.Metrics.AnalyticsDropped()
				r.log.Error("search analytics panicked", "panic", p)
			}
		}()
		if err := r.deps.Events.Create(bg, nil, ev); err != nil {
			r.deps.Metrics.AnalyticsDropped()
			r.log.Warn("search analytics write failed", "error", err)
		}
	}()
}

// Drain waits for in-flight analytics writes, for graceful shutdown and tests.
func (r *Retriever) Drain() {
	r.wg.Wait()
}
