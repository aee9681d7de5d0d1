package reports

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/patternlens-backend/internal/data/repos/testutil"
	types "github.com/yungbote/patternlens-backend/internal/domain"
)

func TestReportRepoSearch(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewReportRepo(db, testutil.Logger(t))

	testutil.SeedCategory(t, ctx, tx, "ufo")
	tri := testutil.SeedReport(t, ctx, tx, "ufo", "Triangle over the lake", "A silent black triangle hovered", "triangle")
	other := testutil.SeedReport(t, ctx, tx, "ufo", "Orb in the garden", "A glowing orb drifted past", "orb")

	hits, err := repo.HybridSearch(ctx, tx, HybridQuery{Text: "triangle", VectorWeight: 0.3, FTSWeight: 0.7, Limit: 10})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if len(hits) == 0 || hits[0].ReportID != tri.ID {
		t.Fatalf("HybridSearch: want first=%s got=%+v", tri.ID, hits)
	}

	lex, err := repo.LexicalSearch(ctx, tx, "triangle orb", "ufo", 10)
	if err != nil || len(lex) != 2 {
		t.Fatalf("LexicalSearch: len=%d err=%v", len(lex), err)
	}

	cands, err := repo.ListSimilarityCandidates(ctx, tx, "ufo", tri.ID, 0)
	if err != nil {
		t.Fatalf("ListSimilarityCandidates: %v", err)
	}
	for _, c := range cands {
		if c.ID == tri.ID {
			t.Fatalf("ListSimilarityCandidates returned the source report")
		}
	}
	if len(cands) == 0 || cands[0].ID != other.ID {
		t.Fatalf("ListSimilarityCandidates: got=%d rows", len(cands))
	}

	recent, err := repo.ListRecent(ctx, tx, "ufo", 1)
	if err != nil || len(recent) != 1 {
		t.Fatalf("ListRecent: len=%d err=%v", len(recent), err)
	}
}

func TestReportPointsWithSkipsNonPublicReports(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewExtractedAttributeRepo(db, testutil.Logger(t))

	testutil.SeedCategory(t, ctx, tx, "ufo")
	public := testutil.SeedReport(t, ctx, tx, "ufo", "Triangle", "A black triangle over Phoenix", "triangle")
	private := testutil.SeedReport(t, ctx, tx, "ufo", "Triangle again", "Same triangle from my yard", "triangle")
	unlisted := testutil.SeedReport(t, ctx, tx, "ufo", "Third triangle", "Triangle seen from the highway", "triangle")
	for id, vis := range map[uuid.UUID]string{private.ID: types.VisibilityPrivate, unlisted.ID: types.VisibilityUnlisted} {
		if err := tx.Model(&types.Report{}).Where("id = ?", id).Update("visibility", vis).Error; err != nil {
			t.Fatalf("set visibility: %v", err)
		}
	}
	for _, r := range []*types.Report{public, private, unlisted} {
		testutil.SeedAttribute(t, ctx, tx, r.ID, "shape", "triangle", 0.9)
	}

	points, err := repo.ReportPointsWith(ctx, tx, KeyValue{Key: "shape", Value: "Triangle"})
	if err != nil {
		t.Fatalf("ReportPointsWith: %v", err)
	}
	if len(points) != 1 || points[0].ReportID != public.ID {
		t.Fatalf("want only %s, got %+v", public.ID, points)
	}
}

func TestSimilarityCandidatesPreferSharedSignals(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewReportRepo(db, testutil.Logger(t))

	testutil.SeedCategory(t, ctx, tx, "ufo")
	src := testutil.SeedReport(t, ctx, tx, "ufo", "Disc", "A silver disc", "silver")
	oldMatch := testutil.SeedReport(t, ctx, tx, "ufo", "Old disc", "Years ago, a disc")
	oldTag := testutil.SeedReport(t, ctx, tx, "ufo", "Old glint", "Something shiny", "Silver")
	recent := testutil.SeedReport(t, ctx, tx, "ufo", "Lights", "Three lights")
	for id, age := range map[uuid.UUID]time.Duration{oldMatch.ID: 20 * 365 * 24 * time.Hour, oldTag.ID: 10 * 365 * 24 * time.Hour} {
		if err := tx.Model(&types.Report{}).Where("id = ?", id).Update("occurred_at", time.Now().UTC().Add(-age)).Error; err != nil {
			t.Fatalf("age report: %v", err)
		}
	}
	testutil.SeedAttribute(t, ctx, tx, src.ID, "shape", "disc", 0.9)
	testutil.SeedAttribute(t, ctx, tx, oldMatch.ID, "shape", "Disc", 0.8)
	testutil.SeedAttribute(t, ctx, tx, recent.ID, "shape", "orb", 0.8)

	cands, err := repo.ListSimilarityCandidates(ctx, tx, "ufo", src.ID, 2)
	if err != nil {
		t.Fatalf("ListSimilarityCandidates: %v", err)
	}
	if len(cands) != 2 || cands[0].ID != oldMatch.ID || cands[1].ID != oldTag.ID {
		t.Fatalf("want [%s %s], got %+v", oldMatch.ID, oldTag.ID, cands)
	}
}

func TestOrQuery(t *testing.T) {
	cases := map[string]string{
		"UFO sightings near me": "ufo | sightings | near | me",
		"  ":                    "",
		"it's a 'disc'!":        "it | s | a | disc",
		"lights lights":         "lights",
	}
	for in, want := range cases {
		if got := orQuery(in); got != want {
			t.Fatalf("orQuery(%q): want=%q got=%q", in, want, got)
		}
	}
}
