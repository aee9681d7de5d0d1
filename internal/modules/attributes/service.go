package attributes

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
	"github.com/yungbote/patternlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

// ChangeNotifier is told when stored attributes change so derived data can be dropped.
type ChangeNotifier interface {
	AttributesChanged(ctx context.Context, reportIDs ...uuid.UUID)
}

type ServiceDeps struct {
	DB        *gorm.DB
	Log       *logger.Logger
	Registry  *Registry
	Extractor *Extractor
	Validator *FuzzyValidator
	Reports   repos.ReportRepo
	Extracted repos.ExtractedAttributeRepo
	// Optional.
	Notifier ChangeNotifier
}

// Service ties extraction to persistence for a single report.
type Service struct {
	deps ServiceDeps
	log  *logger.Logger
}

func NewService(deps ServiceDeps) *Service {
	if deps.Validator == nil {
		deps.Validator = NewFuzzyValidator(DefaultValidatorConfig())
	}
	return &Service{deps: deps, log: deps.Log.With("service", "AttributeService")}
}

type ExtractReportResult struct {
	ReportID uuid.UUID `json:"report_id"`
	// Attributes are the stored rows this extraction wrote.
	Attributes []*types.ExtractedAttribute `json:"attributes"`
	// Superseded lists keys the model produced but a user confirmation kept.
	Superseded []string `json:"superseded,omitempty"`
}

// ExtractReport extracts and upserts attributes for one report. Machine values never replace
// values a user has confirmed.
func (s *Service) ExtractReport(ctx context.Context, reportID uuid.UUID) (*ExtractReportResult, error) {
	report, err := s.loadReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return s.extractLoaded(ctx, report)
}

func (s *Service) extractLoaded(ctx context.Context, report *types.Report) (*ExtractReportResult, error) {
	defs, err := s.deps.Registry.DefinitionsFor(ctx, report.Category)
	if err != nil {
		return nil, err
	}
	attrs, err := s.deps.Extractor.Extract(ctx, report.ID, report.SearchText(), defs)
	if err != nil {
		return nil, err
	}
	createdBy := ctxutil.CallerOr(ctx, "system:extractor")
	for _, a := range attrs {
		a.CreatedBy = createdBy
	}
	res := &ExtractReportResult{ReportID: report.ID, Attributes: []*types.ExtractedAttribute{}}
	if len(attrs) == 0 {
		return res, nil
	}
	if err := s.deps.Extracted.Upsert(ctx, nil, attrs); err != nil {
		return nil, err
	}

	stored, err := s.deps.Extracted.ListByReportID(ctx, nil, report.ID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*types.ExtractedAttribute, len(stored))
	for _, row := range stored {
		byKey[row.AttributeKey] = row
	}
	for _, a := range attrs {
		row := byKey[a.AttributeKey]
		if row == nil || row.Provenance != types.ProvenanceAIExtracted {
			res.Superseded = append(res.Superseded, a.AttributeKey)
			continue
		}
		res.Attributes = append(res.Attributes, row)
	}
	if len(res.Attributes) > 0 && s.deps.Notifier != nil {
		s.deps.Notifier.AttributesChanged(ctx, report.ID)
	}
	return res, nil
}

// ConfirmAttribute records a user's value for key. It goes through the same validation as
// machine output and always supersedes it. Anonymous callers are rejected.
func (s *Service) ConfirmAttribute(ctx context.Context, reportID uuid.UUID, key, value string) (*types.ExtractedAttribute, error) {
	caller := ctxutil.CallerOr(ctx, "")
	if caller == "" {
		return nil, apierr.Unauthorized("confirming an attribute requires a signed-in user")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apierr.Validation("attribute key required")
	}
	report, err := s.loadReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	defs, err := s.deps.Registry.DefinitionsFor(ctx, report.Category)
	if err != nil {
		return nil, err
	}
	var def *types.AttributeDefinition
	for _, d := range defs {
		if d.Key == key {
			def = d
			break
		}
	}
	if def == nil {
		return nil, apierr.NotFound("attribute %q is not defined for category %q", key, report.Category)
	}
	normalized, _, err := s.deps.Validator.Normalize(def, value, 1)
	if err != nil {
		// user input is a caller error, unlike machine output
		return nil, apierr.Validation("%v", err)
	}
	row := &types.ExtractedAttribute{
		ReportID:     report.ID,
		AttributeKey: key,
		Value:        normalized,
		Confidence:   1,
		Provenance:   types.ProvenanceUserConfirmed,
		CreatedBy:    caller,
	}
	if err := s.deps.Extracted.Upsert(ctx, nil, []*types.ExtractedAttribute{row}); err != nil {
		return nil, err
	}
	if s.deps.Notifier != nil {
		s.deps.Notifier.AttributesChanged(ctx, report.ID)
	}
	return row, nil
}

func (s *Service) ReportAttributes(ctx context.Context, reportID uuid.UUID) ([]*types.ExtractedAttribute, error) {
	if _, err := s.loadReport(ctx, reportID); err != nil {
		return nil, err
	}
	return s.deps.Extracted.ListByReportID(ctx, nil, reportID)
}

func (s *Service) loadReport(ctx context.Context, reportID uuid.UUID) (*types.Report, error) {
	if reportID == uuid.Nil {
		return nil, apierr.Validation("report id required")
	}
	report, err := s.deps.Reports.GetByID(ctx, nil, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, apierr.NotFound("report %s not found", reportID)
	}
	return report, nil
}
