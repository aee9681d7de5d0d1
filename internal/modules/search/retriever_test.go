package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type fakeReports struct {
	repos.ReportRepo
	rows       []*types.Report
	hybridErr  error
	lexicalErr error
	hybridHits []repos.HybridHit

	mu           sync.Mutex
	hybridCalls  []repos.HybridQuery
	lexicalCalls int
}

func (f *fakeReports) HybridSearch(_ context.Context, _ *gorm.DB, q repos.HybridQuery) ([]repos.HybridHit, error) {
	f.mu.Lock()
	f.hybridCalls = append(f.hybridCalls, q)
	f.mu.Unlock()
	if f.hybridErr != nil {
		return nil, f.hybridErr
	}
	return f.hybridHits, nil
}

func (f *fakeReports) LexicalSearch(_ context.Context, _ *gorm.DB, _ string, _ string, limit int) ([]*types.Report, error) {
	f.mu.Lock()
	f.lexicalCalls++
	f.mu.Unlock()
	if f.lexicalErr != nil {
		return nil, f.lexicalErr
	}
	if limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeReports) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.Report, error) {
	var out []*types.Report
	for _, r := range f.rows {
		for _, id := range ids {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeReports) ListRecent(_ context.Context, _ *gorm.DB, _ string, limit int) ([]*types.Report, error) {
	return f.rows, nil
}

type fakeEvents struct {
	repos.SearchEventRepo
	mu     sync.Mutex
	events []*types.SearchEvent
	err    error
}

func (f *fakeEvents) Create(_ context.Context, _ *gorm.DB, row *types.SearchEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, row)
	return nil
}

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return [][]float32{{0.1, 0.2, 0.3}}, nil
}

func sampleReports() []*types.Report {
	now := time.Date(2024, 6, 1, 22, 0, 0, 0, time.UTC)
	two := 2
	return []*types.Report{
		{ID: uuid.New(), Category: "ufo", Title: "Orange triangle", Tags: types.EncodeStrings([]string{"Triangle", "orange"}),
			LocationText: "Phoenix, AZ", OccurredAt: now, WitnessCount: &two},
		{ID: uuid.New(), Category: "ufo", Title: "Silent disc", Tags: types.EncodeStrings([]string{"disc"}),
			LocationText: "Tucson, AZ", OccurredAt: now.AddDate(0, -2, 0)},
		{ID: uuid.New(), Category: "ufo", Title: "Lights over lake", Tags: types.EncodeStrings([]string{"lights", "triangle"}),
			LocationText: "Lake Havasu", OccurredAt: now.AddDate(-1, 0, 0)},
	}
}

func newRetriever(reports *fakeReports, events *fakeEvents, emb Embedder) *Retriever {
	return NewRetriever(RetrieverDeps{
		Log:      logger.Nop(),
		Reports:  reports,
		Events:   events,
		Embedder: emb,
	})
}

func TestRetrieveUsesHybridOrder(t *testing.T) {
	rows := sampleReports()
	reports := &fakeReports{rows: rows, hybridHits: []repos.HybridHit{
		{ReportID: rows[2].ID, Score: 0.03}, {ReportID: rows[0].ID, Score: 0.02},
	}}
	events := &fakeEvents{}
	r := newRetriever(reports, events, fakeEmbedder{})
	intent, _ := NewClassifier(DefaultIntentConfig()).Classify("lights over the lake at night")

	res, err := r.Retrieve(context.Background(), "lights over the lake at night", intent, Filters{Category: "ufo"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Path != PathHybrid || res.LexicalFallback || res.EmbeddingFailed {
		t.Fatalf("unexpected degradation %+v", res)
	}
	if len(res.Reports) != 2 || res.Reports[0].ID != rows[2].ID || res.Reports[1].ID != rows[0].ID {
		t.Fatalf("hybrid order not preserved")
	}
	call := reports.hybridCalls[0]
	if len(call.Embedding) != 3 || call.VectorWeight != intent.VectorWeight || call.Limit != 60 {
		t.Fatalf("hybrid query = %+v", call)
	}

	r.Drain()
	if len(events.events) != 1 || events.events[0].ResultCount != 2 {
		t.Fatalf("analytics not recorded: %+v", events.events)
	}
}

func TestRetrieveEmbeddingFailureStillReturnsLexicalResults(t *testing.T) {
	rows := sampleReports()
	reports := &fakeReports{rows: rows}
	events := &fakeEvents{}
	r := newRetriever(reports, events, fakeEmbedder{err: errors.New("embedding service down")})
	intent, _ := NewClassifier(DefaultIntentConfig()).Classify("triangle")

	res, err := r.Retrieve(context.Background(), "triangle", intent, Filters{})
	if err != nil {
		t.Fatalf("Retrieve should degrade, got %v", err)
	}
	if !res.EmbeddingFailed || !res.LexicalFallback || res.Path != PathLexical {
		t.Fatalf("expected lexical degradation, got %+v", res)
	}
	if len(res.Reports) != 3 {
		t.Fatalf("expected lexical results, got %d", len(res.Reports))
	}
	if reports.hybridCalls[0].Embedding != nil {
		t.Fatalf("hybrid should run without an embedding")
	}
	r.Drain()
	if !events.events[0].EmbeddingFailed {
		t.Fatalf("analytics should record the degradation")
	}
}

func TestRetrieveHybridErrorFallsBack(t *testing.T) {
	rows := sampleReports()
	reports := &fakeReports{rows: rows, hybridErr: errors.New("function missing")}
	r := newRetriever(reports, &fakeEvents{err: errors.New("analytics down")}, fakeEmbedder{})
	intent, _ := NewClassifier(DefaultIntentConfig()).Classify("triangle")

	res, err := r.Retrieve(context.Background(), "triangle", intent, Filters{Tags: []string{"TRIANGLE"}})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	r.Drain()
	if !res.LexicalFallback || len(res.Reports) != 2 {
		t.Fatalf("expected 2 tag-filtered lexical results, got %+v", res)
	}
}

func TestRetrieveLexicalQueryOnlyOnFallback(t *testing.T) {
	rows := sampleReports()
	hits := []repos.HybridHit{{ReportID: rows[0].ID, Score: 0.03}}
	intent := Intent{VectorWeight: 0.5, FTSWeight: 0.5}

	cases := []struct {
		name     string
		prefetch bool
		hits     []repos.HybridHit
		path     string
		lexical  int
	}{
		{"hybrid hit", false, hits, PathHybrid, 0},
		{"hybrid empty", false, nil, PathLexical, 1},
		{"prefetch hybrid hit", true, hits, PathHybrid, 1},
		{"prefetch hybrid empty", true, nil, PathLexical, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reports := &fakeReports{rows: rows, hybridHits: tc.hits}
			r := NewRetriever(RetrieverDeps{
				Log:      logger.Nop(),
				Reports:  reports,
				Embedder: fakeEmbedder{},
				Config:   RetrieverConfig{LexicalPrefetch: tc.prefetch},
			})
			res, err := r.Retrieve(context.Background(), "triangle", intent, Filters{})
			if err != nil {
				t.Fatalf("Retrieve: %v", err)
			}
			if res.Path != tc.path {
				t.Fatalf("path = %s, want %s", res.Path, tc.path)
			}
			if reports.lexicalCalls != tc.lexical {
				t.Fatalf("lexical queries = %d, want %d", reports.lexicalCalls, tc.lexical)
			}
		})
	}
}

func TestRetrieveBothPathsFailing(t *testing.T) {
	reports := &fakeReports{hybridErr: errors.New("db down"), lexicalErr: errors.New("db down")}
	r := newRetriever(reports, nil, fakeEmbedder{})
	_, err := r.Retrieve(context.Background(), "triangle", Intent{VectorWeight: 0.5, FTSWeight: 0.5}, Filters{})
	if !errors.Is(err, apierr.ErrUpstream) {
		t.Fatalf("err = %v, want upstream", err)
	}
}

func TestRefineFilters(t *testing.T) {
	rows := sampleReports()
	yes, no := true, false
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		f    Filters
		want int
	}{
		{"none", Filters{}, 3},
		{"tags", Filters{Tags: []string{"triangle"}}, 2},
		{"location", Filters{Location: "az"}, 2},
		{"date range", Filters{From: &from, To: &to}, 2},
		{"witnesses", Filters{HasWitnesses: &yes}, 1},
		{"no witnesses", Filters{HasWitnesses: &no}, 2},
		{"combined", Filters{Tags: []string{"triangle"}, Location: "phoenix", From: &from}, 1},
		{"category", Filters{Category: "dream"}, 0},
		{"limit", Filters{}, 1},
	}
	for _, tc := range cases {
		limit := 10
		if tc.name == "limit" {
			limit = 1
		}
		if got := Refine(rows, tc.f, limit); len(got) != tc.want {
			t.Errorf("%s: got %d rows, want %d", tc.name, len(got), tc.want)
		}
	}
}

func TestRecent(t *testing.T) {
	r := newRetriever(&fakeReports{rows: sampleReports()}, nil, nil)
	res, err := r.Recent(context.Background(), Filters{Limit: 2})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if res.Path != PathRecent || len(res.Reports) != 2 {
		t.Fatalf("unexpected %+v", res)
	}
}
