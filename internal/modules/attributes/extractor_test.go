package attributes

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

func TestExtractKeepsOnlyConformingValues(t *testing.T) {
	ai := &stubCompleter{reply: ufoReply}
	ex := NewExtractor(logger.Nop(), nil, ai, nil)
	id := uuid.New()

	got, err := ex.Extract(context.Background(), id, "A triangel of lights, orange glow, silent.", ufoDefinitions())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	byKey := map[string]*types.ExtractedAttribute{}
	for _, a := range got {
		byKey[a.AttributeKey] = a
		if a.ReportID != id || a.Provenance != types.ProvenanceAIExtracted {
			t.Fatalf("unexpected row %+v", a)
		}
	}
	if _, ok := byKey["speed"]; ok {
		t.Fatalf("unknown key must be dropped")
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(got))
	}
	shape := byKey["shape"]
	if shape.Value != "triangle" || math.Abs(shape.Confidence-0.72) > 1e-9 {
		t.Fatalf("shape = %q %v, want triangle 0.72", shape.Value, shape.Confidence)
	}
	if byKey["sound_heard"].Value != "false" {
		t.Fatalf("boolean not normalised: %q", byKey["sound_heard"].Value)
	}
	if got[0].AttributeKey != "shape" || got[1].AttributeKey != "color" {
		t.Fatalf("results should follow definition order")
	}
}

func TestExtractIsIdempotentWithDeterministicCompleter(t *testing.T) {
	ex := NewExtractor(logger.Nop(), nil, &stubCompleter{reply: ufoReply}, nil)
	id := uuid.New()
	text := "Orange triangle, no sound."
	first, err := ex.Extract(context.Background(), id, text, ufoDefinitions())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := ex.Extract(context.Background(), id, text, ufoDefinitions())
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("extraction not idempotent:\n%v\n%v", first, second)
	}
}

func TestExtractRejectsOutOfVocabularyEnum(t *testing.T) {
	ai := &stubCompleter{reply: func(string) (map[string]any, error) {
		return map[string]any{"shape": map[string]any{"value": "boomerang", "confidence": 0.9}}, nil
	}}
	ex := NewExtractor(logger.Nop(), nil, ai, nil)
	got, err := ex.Extract(context.Background(), uuid.New(), "something odd", ufoDefinitions())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected nothing stored, got %+v", got)
	}
}

func TestExtractToleratesShapes(t *testing.T) {
	ai := &stubCompleter{reply: func(string) (map[string]any, error) {
		return map[string]any{"attributes": map[string]any{
			"color":       "green",
			"sound_heard": map[string]any{"value": true, "confidence": 7.0},
			"shape":       nil,
		}}, nil
	}}
	ex := NewExtractor(logger.Nop(), nil, ai, nil)
	got, err := ex.Extract(context.Background(), uuid.New(), "green and loud", ufoDefinitions())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 attributes, got %+v", got)
	}
	for _, a := range got {
		if a.Confidence < 0 || a.Confidence > 1 {
			t.Fatalf("confidence not clamped: %v", a.Confidence)
		}
	}
}

func TestExtractCompletionFailureIsUpstream(t *testing.T) {
	ex := NewExtractor(logger.Nop(), nil, &stubCompleter{reply: ufoReply}, nil)
	_, err := ex.Extract(context.Background(), uuid.New(), "FAIL", ufoDefinitions())
	if !errors.Is(err, apierr.ErrUpstream) {
		t.Fatalf("err = %v, want upstream", err)
	}
}

func TestExtractEmptyInputsSkipCompletion(t *testing.T) {
	ai := &stubCompleter{reply: ufoReply}
	ex := NewExtractor(logger.Nop(), nil, ai, nil)
	if got, err := ex.Extract(context.Background(), uuid.New(), "   ", ufoDefinitions()); err != nil || len(got) != 0 {
		t.Fatalf("blank text: %v %v", got, err)
	}
	if got, err := ex.Extract(context.Background(), uuid.New(), "text", nil); err != nil || len(got) != 0 {
		t.Fatalf("no definitions: %v %v", got, err)
	}
	if ai.calls != 0 {
		t.Fatalf("completion should not be called, got %d calls", ai.calls)
	}
}

func TestBuildPromptListsDefinitions(t *testing.T) {
	system, user := BuildPrompt("I saw lights", ufoDefinitions())
	for _, want := range []string{"shape (enum): one of triangle, disc, sphere", "color (text): free text", "JSON only"} {
		if !strings.Contains(system, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, system)
		}
	}
	if !strings.Contains(user, "I saw lights") {
		t.Fatalf("user prompt missing text")
	}
	schema := ExtractionSchema(ufoDefinitions())
	props := schema["properties"].(map[string]any)
	if len(props) != 3 {
		t.Fatalf("schema should list 3 properties, got %d", len(props))
	}
}
