package domain

import "github.com/yungbote/patternlens-backend/internal/domain/reports"

type Report = reports.Report
type Vector = reports.Vector
type Category = reports.Category
type AttributeDefinition = reports.AttributeDefinition
type ExtractedAttribute = reports.ExtractedAttribute
type SearchEvent = reports.SearchEvent

const (
	VisibilityPublic   = reports.VisibilityPublic
	VisibilityPrivate  = reports.VisibilityPrivate
	VisibilityUnlisted = reports.VisibilityUnlisted

	DataTypeText    = reports.DataTypeText
	DataTypeEnum    = reports.DataTypeEnum
	DataTypeBoolean = reports.DataTypeBoolean
	DataTypeNumber  = reports.DataTypeNumber

	ScopeGlobal   = reports.ScopeGlobal
	ScopeCategory = reports.ScopeCategory

	ProvenanceAIExtracted   = reports.ProvenanceAIExtracted
	ProvenanceUserConfirmed = reports.ProvenanceUserConfirmed
)

var EncodeStrings = reports.EncodeStrings
