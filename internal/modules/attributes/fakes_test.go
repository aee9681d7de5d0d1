package attributes

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type stubCompleter struct {
	mu    sync.Mutex
	calls int
	reply func(user string) (map[string]any, error)
}

func (s *stubCompleter) GenerateJSON(_ context.Context, _ string, user string, _ string, _ map[string]any) (map[string]any, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.reply(user)
}

type fakeCategories struct {
	repos.CategoryRepo
	rows map[string]*types.Category
}

func (f *fakeCategories) GetByKey(_ context.Context, _ *gorm.DB, key string) (*types.Category, error) {
	return f.rows[key], nil
}

type fakeDefinitions struct {
	repos.AttributeDefinitionRepo
	rows []*types.AttributeDefinition
}

func (f *fakeDefinitions) ListForCategory(_ context.Context, _ *gorm.DB, category string) ([]*types.AttributeDefinition, error) {
	var out []*types.AttributeDefinition
	for _, d := range f.rows {
		if d.Scope == types.ScopeGlobal || d.Category == category {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeReports struct {
	repos.ReportRepo
	mu       sync.Mutex
	rows     map[uuid.UUID]*types.Report
	embedded map[uuid.UUID]int
}

func (f *fakeReports) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.Report, error) {
	return f.rows[id], nil
}

func (f *fakeReports) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.Report, error) {
	var out []*types.Report
	for _, id := range ids {
		if r := f.rows[id]; r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReports) UpdateEmbedding(_ context.Context, _ *gorm.DB, id uuid.UUID, emb []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.embedded == nil {
		f.embedded = map[uuid.UUID]int{}
	}
	f.embedded[id] = len(emb)
	return nil
}

type fakeExtracted struct {
	repos.ExtractedAttributeRepo
	mu   sync.Mutex
	rows map[uuid.UUID]map[string]*types.ExtractedAttribute
}

func newFakeExtracted() *fakeExtracted {
	return &fakeExtracted{rows: map[uuid.UUID]map[string]*types.ExtractedAttribute{}}
}

func (f *fakeExtracted) Upsert(_ context.Context, _ *gorm.DB, rows []*types.ExtractedAttribute) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		byKey := f.rows[r.ReportID]
		if byKey == nil {
			byKey = map[string]*types.ExtractedAttribute{}
			f.rows[r.ReportID] = byKey
		}
		if prev := byKey[r.AttributeKey]; prev != nil &&
			prev.Provenance == types.ProvenanceUserConfirmed && r.Provenance != types.ProvenanceUserConfirmed {
			continue
		}
		cp := *r
		byKey[r.AttributeKey] = &cp
	}
	return nil
}

func (f *fakeExtracted) ListByReportIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.ExtractedAttribute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.ExtractedAttribute
	for _, id := range ids {
		for _, a := range f.rows[id] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeExtracted) ListByReportID(ctx context.Context, tx *gorm.DB, id uuid.UUID) ([]*types.ExtractedAttribute, error) {
	return f.ListByReportIDs(ctx, tx, []uuid.UUID{id})
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (n *recordingNotifier) AttributesChanged(_ context.Context, ids ...uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, ids...)
}

func ufoDefinitions() []*types.AttributeDefinition {
	return []*types.AttributeDefinition{
		{Key: "shape", DataType: types.DataTypeEnum, Scope: types.ScopeCategory, Category: "ufo", SortIndex: 1,
			AllowedValues: types.EncodeStrings([]string{"triangle", "disc", "sphere"})},
		{Key: "color", DataType: types.DataTypeText, Scope: types.ScopeCategory, Category: "ufo", SortIndex: 2},
		{Key: "sound_heard", DataType: types.DataTypeBoolean, Scope: types.ScopeGlobal, SortIndex: 3},
	}
}

// ufoReply answers like a well-behaved model: a misspelt shape plus an unknown key.
func ufoReply(user string) (map[string]any, error) {
	if strings.Contains(user, "FAIL") {
		return nil, errors.New("completion unavailable")
	}
	return map[string]any{
		"shape":       map[string]any{"value": "triangel", "confidence": 0.8, "evidence": "a triangel of lights"},
		"color":       map[string]any{"value": "orange", "confidence": 0.9, "evidence": "orange glow"},
		"sound_heard": map[string]any{"value": "no", "confidence": 0.7},
		"speed":       map[string]any{"value": "fast", "confidence": 0.9},
	}, nil
}

type fixture struct {
	reports   *fakeReports
	extracted *fakeExtracted
	ai        *stubCompleter
	notifier  *recordingNotifier
	service   *Service
}

func newFixture(reports ...*types.Report) *fixture {
	log := logger.Nop()
	fr := &fakeReports{rows: map[uuid.UUID]*types.Report{}}
	for _, r := range reports {
		fr.rows[r.ID] = r
	}
	fe := newFakeExtracted()
	ai := &stubCompleter{reply: ufoReply}
	notifier := &recordingNotifier{}
	registry := NewRegistry(RegistryDeps{
		Log:         log,
		Categories:  &fakeCategories{rows: map[string]*types.Category{"ufo": {Key: "ufo", Name: "UFO"}, "dream": {Key: "dream"}}},
		Definitions: &fakeDefinitions{rows: ufoDefinitions()},
		Extracted:   fe,
	})
	validator := NewFuzzyValidator(DefaultValidatorConfig())
	svc := NewService(ServiceDeps{
		Log:       log,
		Registry:  registry,
		Extractor: NewExtractor(log, nil, ai, validator),
		Validator: validator,
		Reports:   fr,
		Extracted: fe,
		Notifier:  notifier,
	})
	return &fixture{reports: fr, extracted: fe, ai: ai, notifier: notifier, service: svc}
}

func newReport(category, body string) *types.Report {
	return &types.Report{ID: uuid.New(), Category: category, Title: "Sighting", Body: body, Visibility: types.VisibilityPublic}
}
