package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/patternlens-backend/internal/modules/attributes"
	"github.com/yungbote/patternlens-backend/internal/modules/patterns"
	"github.com/yungbote/patternlens-backend/internal/modules/search"
	"github.com/yungbote/patternlens-backend/internal/modules/similarity"
	"github.com/yungbote/patternlens-backend/internal/observability"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type Services struct {
	Registry   *attributes.Registry
	Validator  *attributes.FuzzyValidator
	Extractor  *attributes.Extractor
	Attributes *attributes.Service
	Backfill   *attributes.Backfiller

	Classifier *search.Classifier
	Retriever  *search.Retriever

	Similarity *similarity.Service
	Patterns   *patterns.Engine
}

func wireServices(db *gorm.DB, log *logger.Logger, metrics *observability.Metrics, cfg Config, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")

	validator := attributes.NewFuzzyValidator(cfg.Validator)
	registry := attributes.NewRegistry(attributes.RegistryDeps{
		DB:          db,
		Log:         log,
		Categories:  reposet.Category,
		Definitions: reposet.AttributeDefinition,
		Extracted:   reposet.ExtractedAttribute,
	})
	extractor := attributes.NewExtractor(log, metrics, clients.OpenAI, validator)

	similar := similarity.NewService(similarity.ServiceDeps{
		Log:       log,
		Reports:   reposet.Report,
		Extracted: reposet.ExtractedAttribute,
		Scorer:    similarity.NewScorer(cfg.Scorer),
		Config:    cfg.Similarity,
	})
	engine := patterns.NewEngine(patterns.EngineDeps{
		Log:       log,
		Reports:   reposet.Report,
		Extracted: reposet.ExtractedAttribute,
		Similar:   similar,
		Cache:     clients.Cache,
		Config:    cfg.Patterns,
	})

	attrService := attributes.NewService(attributes.ServiceDeps{
		DB:        db,
		Log:       log,
		Registry:  registry,
		Extractor: extractor,
		Validator: validator,
		Reports:   reposet.Report,
		Extracted: reposet.ExtractedAttribute,
		Notifier:  engine,
	})
	backfill := attributes.NewBackfiller(attributes.BackfillDeps{
		Log:       log,
		Metrics:   metrics,
		Service:   attrService,
		Reports:   reposet.Report,
		Extracted: reposet.ExtractedAttribute,
		Embedder:  clients.OpenAI,
		Config:    cfg.Backfill,
	})

	retriever := search.NewRetriever(search.RetrieverDeps{
		Log:      log,
		Metrics:  metrics,
		Reports:  reposet.Report,
		Events:   reposet.SearchEvent,
		Embedder: clients.OpenAI,
		Config:   cfg.Retriever,
	})

	return Services{
		Registry:   registry,
		Validator:  validator,
		Extractor:  extractor,
		Attributes: attrService,
		Backfill:   backfill,
		Classifier: search.NewClassifier(cfg.Intent),
		Retriever:  retriever,
		Similarity: similar,
		Patterns:   engine,
	}
}
