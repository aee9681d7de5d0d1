package attributes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/observability"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

const (
	extractionSchemaName = "report_attributes_v1"
	maxEvidenceRunes     = 500
	// used when the model omits a confidence
	defaultConfidence = 0.5
)

// Completer is the structured completion capability the extractor depends on.
type Completer interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

// Attribute outcome labels, also used as metric labels.
const (
	OutcomeAccepted   = "accepted"
	OutcomeCorrected  = "corrected"
	OutcomeRejected   = "rejected"
	OutcomeUnknownKey = "unknown_key"
)

type Extractor struct {
	log       *logger.Logger
	metrics   *observability.Metrics
	ai        Completer
	validator *FuzzyValidator
}

func NewExtractor(log *logger.Logger, metrics *observability.Metrics, ai Completer, validator *FuzzyValidator) *Extractor {
	if validator == nil {
		validator = NewFuzzyValidator(DefaultValidatorConfig())
	}
	return &Extractor{
		log:       log.With("service", "AttributeExtractor"),
		metrics:   metrics,
		ai:        ai,
		validator: validator,
	}
}

// Extract runs one completion over text and returns the values that conform to defs, in
// definition order. Nothing conforming is a valid empty result. Completion failures and
// unparsable replies are upstream errors; there is no retry here.
func (e *Extractor) Extract(ctx context.Context, reportID uuid.UUID, text string, defs []*types.AttributeDefinition) ([]*types.ExtractedAttribute, error) {
	if reportID == uuid.Nil {
		return nil, apierr.Validation("report id required")
	}
	if strings.TrimSpace(text) == "" || len(defs) == 0 {
		return []*types.ExtractedAttribute{}, nil
	}
	if e.ai == nil {
		return nil, apierr.Upstream("extract attributes", fmt.Errorf("completion service not configured"))
	}

	system, user := BuildPrompt(text, defs)
	obj, err := e.ai.GenerateJSON(ctx, system, user, extractionSchemaName, ExtractionSchema(defs))
	if err != nil {
		return nil, apierr.Upstream("extract attributes", err)
	}
	if obj == nil {
		return nil, apierr.Upstream("extract attributes", fmt.Errorf("empty completion"))
	}
	return e.parse(reportID, obj, defs), nil
}

func (e *Extractor) parse(reportID uuid.UUID, obj map[string]any, defs []*types.AttributeDefinition) []*types.ExtractedAttribute {
	byKey := make(map[string]*types.AttributeDefinition, len(defs))
	for _, d := range defs {
		if d != nil {
			byKey[d.Key] = d
		}
	}
	if inner, ok := obj["attributes"].(map[string]any); ok && byKey["attributes"] == nil {
		obj = inner
	}
	for k := range obj {
		if byKey[k] == nil {
			e.metrics.AttributeOutcome(OutcomeUnknownKey)
			e.log.Debug("dropping unknown attribute key", "report_id", reportID, "key", k)
		}
	}

	out := make([]*types.ExtractedAttribute, 0, len(obj))
	for _, d := range defs {
		if d == nil {
			continue
		}
		entry, ok := obj[d.Key]
		if !ok || entry == nil {
			continue
		}
		raw, conf, evidence, ok := splitEntry(entry)
		if !ok {
			continue
		}
		value, adjusted, err := e.validator.Normalize(d, raw, conf)
		if err != nil {
			e.metrics.AttributeOutcome(OutcomeRejected)
			e.log.Debug("attribute rejected", "report_id", reportID, "key", d.Key, "error", err)
			continue
		}
		if adjusted < conf {
			e.metrics.AttributeOutcome(OutcomeCorrected)
		} else {
			e.metrics.AttributeOutcome(OutcomeAccepted)
		}
		out = append(out, &types.ExtractedAttribute{
			ReportID:     reportID,
			AttributeKey: d.Key,
			Value:        value,
			Confidence:   adjusted,
			Provenance:   types.ProvenanceAIExtracted,
			Evidence:     truncateRunes(evidence, maxEvidenceRunes),
		})
	}
	return out
}

// splitEntry accepts {value, confidence, evidence} or a bare scalar.
func splitEntry(entry any) (value string, confidence float64, evidence string, ok bool) {
	confidence = defaultConfidence
	switch t := entry.(type) {
	case map[string]any:
		value, ok = scalarString(t["value"])
		if c, isNum := t["confidence"].(float64); isNum {
			confidence = c
		}
		evidence, _ = t["evidence"].(string)
	default:
		value, ok = scalarString(t)
	}
	if strings.TrimSpace(value) == "" {
		return "", 0, "", false
	}
	return value, clamp01(confidence), strings.TrimSpace(evidence), ok
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// BuildPrompt renders the instructions and the schema description for defs.
func BuildPrompt(text string, defs []*types.AttributeDefinition) (system string, user string) {
	var b strings.Builder
	b.WriteString("You extract structured attributes from a first-person report.\n")
	b.WriteString("Return JSON only: an object keyed by attribute key. For each attribute the report ")
	b.WriteString("clearly supports, give {\"value\": string, \"confidence\": number 0..1, \"evidence\": short quote}.\n")
	b.WriteString("Omit attributes the text does not mention. Never invent keys. For attributes with ")
	b.WriteString("allowed values, answer with one of them verbatim.\n\nAttributes:\n")
	for _, d := range defs {
		if d == nil {
			continue
		}
		b.WriteString("- ")
		b.WriteString(d.Key)
		b.WriteString(" (")
		b.WriteString(d.DataType)
		b.WriteString("): ")
		if allowed := d.Allowed(); len(allowed) > 0 {
			b.WriteString("one of ")
			b.WriteString(strings.Join(allowed, ", "))
		} else {
			b.WriteString("free text")
		}
		if d.Description != "" {
			b.WriteString(". ")
			b.WriteString(d.Description)
		}
		b.WriteString("\n")
	}
	return b.String(), "Report:\n" + strings.TrimSpace(text)
}

// ExtractionSchema is the response shape requested from the completion service.
func ExtractionSchema(defs []*types.AttributeDefinition) map[string]any {
	props := make(map[string]any, len(defs))
	for _, d := range defs {
		if d == nil {
			continue
		}
		value := map[string]any{"type": "string"}
		if allowed := d.Allowed(); len(allowed) > 0 {
			enum := make([]any, 0, len(allowed))
			for _, a := range allowed {
				enum = append(enum, a)
			}
			value["enum"] = enum
		}
		props[d.Key] = map[string]any{
			"type":                 []any{"object", "null"},
			"additionalProperties": false,
			"properties": map[string]any{
				"value":      value,
				"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				"evidence":   map[string]any{"type": "string"},
			},
			"required": []any{"value", "confidence", "evidence"},
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}
