package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type Repos struct {
	Report              repos.ReportRepo
	Category            repos.CategoryRepo
	AttributeDefinition repos.AttributeDefinitionRepo
	ExtractedAttribute  repos.ExtractedAttributeRepo
	SearchEvent         repos.SearchEventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Report:              repos.NewReportRepo(db, log),
		Category:            repos.NewCategoryRepo(db, log),
		AttributeDefinition: repos.NewAttributeDefinitionRepo(db, log),
		ExtractedAttribute:  repos.NewExtractedAttributeRepo(db, log),
		SearchEvent:         repos.NewSearchEventRepo(db, log),
	}
}
