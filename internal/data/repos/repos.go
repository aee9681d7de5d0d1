package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/patternlens-backend/internal/data/repos/reports"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type ReportRepo = reports.ReportRepo
type CategoryRepo = reports.CategoryRepo
type AttributeDefinitionRepo = reports.AttributeDefinitionRepo
type ExtractedAttributeRepo = reports.ExtractedAttributeRepo
type SearchEventRepo = reports.SearchEventRepo

type HybridQuery = reports.HybridQuery
type HybridHit = reports.HybridHit
type KeyValue = reports.KeyValue
type ReportPoint = reports.ReportPoint
type ValueCount = reports.ValueCount

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return reports.NewReportRepo(db, baseLog)
}
func NewCategoryRepo(db *gorm.DB, baseLog *logger.Logger) CategoryRepo {
	return reports.NewCategoryRepo(db, baseLog)
}
func NewAttributeDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) AttributeDefinitionRepo {
	return reports.NewAttributeDefinitionRepo(db, baseLog)
}
func NewExtractedAttributeRepo(db *gorm.DB, baseLog *logger.Logger) ExtractedAttributeRepo {
	return reports.NewExtractedAttributeRepo(db, baseLog)
}
func NewSearchEventRepo(db *gorm.DB, baseLog *logger.Logger) SearchEventRepo {
	return reports.NewSearchEventRepo(db, baseLog)
}
