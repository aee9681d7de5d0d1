package patterns

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/modules/similarity"
	"github.com/yungbote/patternlens-backend/internal/platform/cache"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type fakeReports struct {
	repos.ReportRepo
	rows map[uuid.UUID]*types.Report
}

func (f *fakeReports) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.Report, error) {
	return f.rows[id], nil
}

type fakeExtracted struct {
	repos.ExtractedAttributeRepo
	mu            sync.Mutex
	rows          []*types.ExtractedAttribute
	reports       map[uuid.UUID]*types.Report
	matchingCalls int
}

func (f *fakeExtracted) add(reportID uuid.UUID, key, value string, confidence float64, provenance string) {
	f.rows = append(f.rows, &types.ExtractedAttribute{
		ReportID: reportID, AttributeKey: key, Value: value, Confidence: confidence, Provenance: provenance,
	})
}

func (f *fakeExtracted) ListByReportID(ctx context.Context, tx *gorm.DB, id uuid.UUID) ([]*types.ExtractedAttribute, error) {
	return f.ListByReportIDs(ctx, tx, []uuid.UUID{id})
}

func (f *fakeExtracted) ListByReportIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.ExtractedAttribute, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*types.ExtractedAttribute
	for _, r := range f.rows {
		if want[r.ReportID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeExtracted) ListMatching(_ context.Context, _ *gorm.DB, kv repos.KeyValue) ([]*types.ExtractedAttribute, error) {
	f.mu.Lock()
	f.matchingCalls++
	f.mu.Unlock()
	kv = kv.Norm()
	var out []*types.ExtractedAttribute
	for _, r := range f.rows {
		if r.AttributeKey == kv.Key && strings.ToLower(r.Value) == kv.Value {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeExtracted) CountAttributedReports(_ context.Context, _ *gorm.DB) (int64, error) {
	seen := map[uuid.UUID]bool{}
	for _, r := range f.rows {
		seen[r.ReportID] = true
	}
	return int64(len(seen)), nil
}

func (f *fakeExtracted) CountKeyValues(_ context.Context, _ *gorm.DB, pairs []repos.KeyValue) ([]repos.ValueCount, error) {
	var out []repos.ValueCount
	for _, p := range pairs {
		p = p.Norm()
		seen := map[uuid.UUID]bool{}
		for _, r := range f.rows {
			if r.AttributeKey == p.Key && strings.ToLower(r.Value) == p.Value {
				seen[r.ReportID] = true
			}
		}
		if len(seen) > 0 {
			out = append(out, repos.ValueCount{Key: p.Key, Value: p.Value, Count: int64(len(seen))})
		}
	}
	return out, nil
}

func (f *fakeExtracted) ValueCounts(_ context.Context, _ *gorm.DB, key string) ([]repos.ValueCount, error) {
	counts := map[string]int64{}
	for _, r := range f.rows {
		if r.AttributeKey == key {
			counts[strings.ToLower(r.Value)]++
		}
	}
	var out []repos.ValueCount
	for v, n := range counts {
		out = append(out, repos.ValueCount{Key: key, Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

func (f *fakeExtracted) ReportPointsWith(ctx context.Context, tx *gorm.DB, kv repos.KeyValue) ([]repos.ReportPoint, error) {
	rows, _ := f.ListMatching(ctx, tx, kv)
	var out []repos.ReportPoint
	for _, r := range rows {
		rep := f.reports[r.ReportID]
		if rep == nil {
			continue
		}
		out = append(out, repos.ReportPoint{ReportID: rep.ID, Latitude: rep.Latitude, Longitude: rep.Longitude, OccurredAt: rep.OccurredAt})
	}
	return out, nil
}

type fakeSimilar struct {
	err error
}

func (f fakeSimilar) FindSimilar(_ context.Context, id uuid.UUID, limit int) (*similarity.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &similarity.Result{
		Similar:   []similarity.Match{{Report: &types.Report{ID: uuid.New()}, Score: similarity.Score{HybridScore: 70}}},
		Algorithm: similarity.Algorithm,
	}, nil
}

func fptr(f float64) *float64 { return &f }

type corpus struct {
	ids       []uuid.UUID
	reports   *fakeReports
	extracted *fakeExtracted
}

// newCorpus builds ten attributed reports:
//
//	shape=triangle on 0..3, color=orange on 0,1,2,4, sound_heard=no on 0,1,
//	shape=disc on 4..9.
func newCorpus() *corpus {
	c := &corpus{
		reports:   &fakeReports{rows: map[uuid.UUID]*types.Report{}},
		extracted: &fakeExtracted{reports: map[uuid.UUID]*types.Report{}},
	}
	base := time.Date(2024, 7, 4, 22, 0, 0, 0, time.UTC)
	for i := 0; i < 11; i++ {
		r := &types.Report{
			ID:         uuid.New(),
			Category:   "ufo",
			Latitude:   fptr(33.45 + float64(i)*0.01),
			Longitude:  fptr(-112.07),
			OccurredAt: base.Add(time.Duration(i) * 24 * time.Hour),
		}
		c.ids = append(c.ids, r.ID)
		c.reports.rows[r.ID] = r
		c.extracted.reports[r.ID] = r
	}
	for i := 0; i < 4; i++ {
		c.extracted.add(c.ids[i], "shape", "triangle", 0.8, types.ProvenanceAIExtracted)
	}
	for _, i := range []int{0, 1, 2, 4} {
		c.extracted.add(c.ids[i], "color", "Orange", 0.9, types.ProvenanceAIExtracted)
	}
	c.extracted.add(c.ids[0], "sound_heard", "no", 1, types.ProvenanceUserConfirmed)
	c.extracted.add(c.ids[1], "sound_heard", "no", 0.6, types.ProvenanceAIExtracted)
	for i := 4; i < 10; i++ {
		c.extracted.add(c.ids[i], "shape", "disc", 0.7, types.ProvenanceAIExtracted)
	}
	return c
}

func (c *corpus) engine(store cache.Cache, similar SimilarFinder) *Engine {
	return NewEngine(EngineDeps{
		Log:       logger.Nop(),
		Reports:   c.reports,
		Extracted: c.extracted,
		Similar:   similar,
		Cache:     store,
	})
}
