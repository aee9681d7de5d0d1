package attributes

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

func newBackfiller(fx *fixture, cfg BackfillConfig) *Backfiller {
	return NewBackfiller(BackfillDeps{
		Log:       logger.Nop(),
		Service:   fx.service,
		Reports:   fx.reports,
		Extracted: fx.extracted,
		Embedder:  fakeEmbedder{},
		Config:    cfg,
	})
}

func TestBackfillReportsPerItemStatus(t *testing.T) {
	ok := newReport("ufo", "orange triangel")
	failing := newReport("ufo", "FAIL")
	done := newReport("ufo", "already processed")
	empty := &types.Report{ID: uuid.New(), Category: "ufo"}
	missing := uuid.New()

	fx := newFixture(ok, failing, done, empty)
	fx.extracted.rows[done.ID] = map[string]*types.ExtractedAttribute{
		"color": {ReportID: done.ID, AttributeKey: "color", Value: "red"},
	}
	b := newBackfiller(fx, BackfillConfig{Workers: 3})

	res, err := b.Run(context.Background(), BackfillRequest{
		ReportIDs: []uuid.UUID{ok.ID, failing.ID, done.ID, empty.ID, missing, ok.ID},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Processed != 5 {
		t.Fatalf("processed = %d, want 5 (duplicates collapse)", res.Processed)
	}
	want := map[uuid.UUID]string{
		ok.ID:      BackfillSuccess,
		failing.ID: BackfillError,
		done.ID:    BackfillSkipped,
		empty.ID:   BackfillSkipped,
		missing:    BackfillSkipped,
	}
	for _, item := range res.Results {
		if item.Status != want[item.ReportID] {
			t.Errorf("report %s status = %s, want %s (%+v)", item.ReportID, item.Status, want[item.ReportID], item)
		}
	}
	if res.Succeeded != 1 || res.Failed != 1 || res.Skipped != 3 {
		t.Fatalf("summary = %+v", res)
	}
	if res.Results[0].AttributesExtracted == nil || *res.Results[0].AttributesExtracted != 3 {
		t.Fatalf("attributesExtracted missing on success: %+v", res.Results[0])
	}
	if !res.Results[0].Embedded || fx.reports.embedded[ok.ID] != 3 {
		t.Fatalf("report should have been embedded")
	}
	if res.Results[1].Error == "" {
		t.Fatalf("error item should carry a message")
	}
}

func TestBackfillForceReprocesses(t *testing.T) {
	done := newReport("ufo", "orange triangel")
	fx := newFixture(done)
	fx.extracted.rows[done.ID] = map[string]*types.ExtractedAttribute{
		"color": {ReportID: done.ID, AttributeKey: "color", Value: "red", Provenance: types.ProvenanceAIExtracted},
	}
	b := newBackfiller(fx, BackfillConfig{Workers: 1, RatePerSecond: 100})
	res, err := b.Run(context.Background(), BackfillRequest{ReportIDs: []uuid.UUID{done.ID}, Force: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Results[0].Status != BackfillSuccess {
		t.Fatalf("forced item status = %+v", res.Results[0])
	}
	if fx.extracted.rows[done.ID]["color"].Value != "orange" {
		t.Fatalf("forced run should refresh machine values")
	}
}

func TestBackfillLimitValidation(t *testing.T) {
	fx := newFixture()
	b := newBackfiller(fx, BackfillConfig{MaxLimit: 10})
	if _, err := b.Run(context.Background(), BackfillRequest{Limit: 11}); !errors.Is(err, apierr.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}
