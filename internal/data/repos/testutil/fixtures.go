package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/patternlens-backend/internal/domain"
)

func SeedCategory(tb testing.TB, ctx context.Context, tx *gorm.DB, key string) *types.Category {
	tb.Helper()
	c := &types.Category{Key: key, Name: key}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed category: %v", err)
	}
	return c
}

func SeedReport(tb testing.TB, ctx context.Context, tx *gorm.DB, category string, title string, body string, tags ...string) *types.Report {
	tb.Helper()
	r := &types.Report{
		ID:         uuid.New(),
		AuthorID:   uuid.New(),
		Category:   category,
		Title:      title,
		Body:       body,
		Tags:       types.EncodeStrings(tags),
		OccurredAt: time.Now().UTC().Add(-24 * time.Hour),
		Visibility: types.VisibilityPublic,
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed report: %v", err)
	}
	return r
}

func SeedAttribute(tb testing.TB, ctx context.Context, tx *gorm.DB, reportID uuid.UUID, key, value string, confidence float64) *types.ExtractedAttribute {
	tb.Helper()
	a := &types.ExtractedAttribute{
		ID:           uuid.New(),
		ReportID:     reportID,
		AttributeKey: key,
		Value:        value,
		Confidence:   confidence,
		Provenance:   types.ProvenanceAIExtracted,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed attribute: %v", err)
	}
	return a
}

func PtrFloat(v float64) *float64 { return &v }

func PtrInt(v int) *int { return &v }
