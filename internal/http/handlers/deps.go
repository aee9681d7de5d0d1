package handlers

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/modules/attributes"
	"github.com/yungbote/patternlens-backend/internal/modules/patterns"
	"github.com/yungbote/patternlens-backend/internal/modules/search"
	"github.com/yungbote/patternlens-backend/internal/modules/similarity"
)

type SimilarFinder interface {
	FindSimilar(ctx context.Context, reportID uuid.UUID, limit int) (*similarity.Result, error)
}

type PatternEngine interface {
	Insights(ctx context.Context, reportID uuid.UUID) (*patterns.InsightsResult, error)
	ValueDistribution(ctx context.Context, key string) (patterns.ValueDistribution, error)
}

type AttributeService interface {
	ExtractReport(ctx context.Context, reportID uuid.UUID) (*attributes.ExtractReportResult, error)
	ConfirmAttribute(ctx context.Context, reportID uuid.UUID, key, value string) (*types.ExtractedAttribute, error)
	ReportAttributes(ctx context.Context, reportID uuid.UUID) ([]*types.ExtractedAttribute, error)
}

type SchemaRegistry interface {
	DefinitionsFor(ctx context.Context, category string) ([]*types.AttributeDefinition, error)
	Categories(ctx context.Context) ([]*types.Category, error)
	DeleteDefinition(ctx context.Context, id uuid.UUID, cascade bool) error
}

type BackfillRunner interface {
	Run(ctx context.Context, req attributes.BackfillRequest) (*attributes.BackfillResult, error)
}

type IntentClassifier interface {
	Classify(query string) (search.Intent, bool)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, intent search.Intent, f search.Filters) (*search.Result, error)
	Recent(ctx context.Context, f search.Filters) (*search.Result, error)
}
