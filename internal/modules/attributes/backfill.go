package attributes

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/observability"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

const (
	BackfillSuccess = "success"
	BackfillSkipped = "skipped"
	BackfillError   = "error"
)

// Embedder computes embeddings for report text.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type BackfillConfig struct {
	Workers int
	// RatePerSecond gates completion calls across all workers; <= 0 disables the gate.
	RatePerSecond float64
	Burst         int
	DefaultLimit  int
	MaxLimit      int
}

func DefaultBackfillConfig() BackfillConfig {
	return BackfillConfig{Workers: 4, RatePerSecond: 2, Burst: 4, DefaultLimit: 50, MaxLimit: 500}
}

type BackfillDeps struct {
	Log       *logger.Logger
	Metrics   *observability.Metrics
	Service   *Service
	Reports   repos.ReportRepo
	Extracted repos.ExtractedAttributeRepo
	// Optional; when set, reports without an embedding are embedded too.
	Embedder Embedder
	Config   BackfillConfig
}

type BackfillRequest struct {
	ReportIDs []uuid.UUID `json:"reportIds,omitempty"`
	Category  string      `json:"category,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	// Force re-extracts reports that already carry attributes.
	Force bool `json:"force,omitempty"`
}

type BackfillItem struct {
	ReportID            uuid.UUID `json:"reportId"`
	Status              string    `json:"status"`
	AttributesExtracted *int      `json:"attributesExtracted,omitempty"`
	Embedded            bool      `json:"embedded,omitempty"`
	Reason              string    `json:"reason,omitempty"`
	Error               string    `json:"error,omitempty"`
}

type BackfillResult struct {
	Processed int            `json:"processed"`
	Succeeded int            `json:"succeeded"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Results   []BackfillItem `json:"results"`
}

// Backfiller extracts attributes for many reports with bounded parallelism. Every report
// gets its own status; one failure never aborts the batch.
type Backfiller struct {
	deps    BackfillDeps
	log     *logger.Logger
	limiter *rate.Limiter
}

func NewBackfiller(deps BackfillDeps) *Backfiller {
	def := DefaultBackfillConfig()
	cfg := deps.Config
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.Workers
	}
	deps.Config = cfg
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	return &Backfiller{deps: deps, log: deps.Log.With("service", "AttributeBackfill"), limiter: limiter}
}

func (b *Backfiller) Run(ctx context.Context, req BackfillRequest) (*BackfillResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = b.deps.Config.DefaultLimit
	}
	if limit > b.deps.Config.MaxLimit {
		return nil, apierr.Validation("limit must be <= %d", b.deps.Config.MaxLimit)
	}
	if len(req.ReportIDs) > b.deps.Config.MaxLimit {
		return nil, apierr.Validation("at most %d report ids per batch", b.deps.Config.MaxLimit)
	}

	items, reports, err := b.plan(ctx, req, limit)
	if err != nil {
		return nil, err
	}

	eg := errgroup.Group{}
	eg.SetLimit(b.deps.Config.Workers)
	for i := range items {
		report := reports[i]
		if report == nil {
			continue
		}
		item := &items[i]
		eg.Go(func() error {
			b.process(ctx, report, item)
			return nil
		})
	}
	_ = eg.Wait()

	res := &BackfillResult{Processed: len(items), Results: items}
	for _, it := range items {
		switch it.Status {
		case BackfillSuccess:
			res.Succeeded++
		case BackfillSkipped:
			res.Skipped++
		default:
			res.Failed++
		}
		b.deps.Metrics.ExtractionItem(it.Status)
	}
	b.log.Info("attribute backfill finished",
		"processed", res.Processed, "succeeded", res.Succeeded, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// plan resolves the batch. items[i] is pre-filled for reports that will not be processed;
// reports[i] is nil for those.
func (b *Backfiller) plan(ctx context.Context, req BackfillRequest, limit int) ([]BackfillItem, []*types.Report, error) {
	if len(req.ReportIDs) == 0 {
		rows, err := b.deps.Reports.ListForBackfill(ctx, nil, strings.TrimSpace(req.Category), !req.Force, limit)
		if err != nil {
			return nil, nil, err
		}
		items := make([]BackfillItem, len(rows))
		for i, r := range rows {
			items[i] = BackfillItem{ReportID: r.ID}
		}
		return items, rows, nil
	}

	ids := dedupeIDs(req.ReportIDs)
	rows, err := b.deps.Reports.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uuid.UUID]*types.Report, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	attributed := map[uuid.UUID]bool{}
	if !req.Force {
		existing, err := b.deps.Extracted.ListByReportIDs(ctx, nil, ids)
		if err != nil {
			return nil, nil, err
		}
		for _, a := range existing {
			attributed[a.ReportID] = true
		}
	}
	items := make([]BackfillItem, len(ids))
	reports := make([]*types.Report, len(ids))
	for i, id := range ids {
		items[i] = BackfillItem{ReportID: id}
		r := byID[id]
		switch {
		case r == nil:
			items[i].Status = BackfillSkipped
			items[i].Reason = "report not found"
		case req.Category != "" && r.Category != req.Category:
			items[i].Status = BackfillSkipped
			items[i].Reason = "category mismatch"
		case attributed[id]:
			items[i].Status = BackfillSkipped
			items[i].Reason = "already extracted"
		default:
			reports[i] = r
		}
	}
	return items, reports, nil
}

func (b *Backfiller) process(ctx context.Context, report *types.Report, item *BackfillItem) {
	if strings.TrimSpace(report.SearchText()) == "" {
		item.Status = BackfillSkipped
		item.Reason = "empty report text"
		return
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			item.Status = BackfillError
			item.Error = err.Error()
			return
		}
	}
	res, err := b.deps.Service.extractLoaded(ctx, report)
	if err != nil {
		item.Status = BackfillError
		item.Error = err.Error()
		if errors.Is(err, apierr.ErrNotFound) {
			// category vanished between listing and processing
			item.Status = BackfillSkipped
			item.Reason = "unknown category"
			item.Error = ""
		}
		b.log.Warn("backfill item failed", "report_id", report.ID, "error", err)
		return
	}
	n := len(res.Attributes)
	item.Status = BackfillSuccess
	item.AttributesExtracted = &n

	if b.deps.Embedder != nil && report.Embedding == nil {
		vecs, err := b.deps.Embedder.Embed(ctx, []string{report.SearchText()})
		if err == nil && len(vecs) == 1 {
			err = b.deps.Reports.UpdateEmbedding(ctx, nil, report.ID, vecs[0])
		}
		if err != nil {
			b.log.Warn("backfill embedding failed", "report_id", report.ID, "error", err)
			return
		}
		item.Embedded = true
	}
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
