package search

import (
	"math"
	"testing"
)

func TestClassifyNaturalLanguage(t *testing.T) {
	c := NewClassifier(DefaultIntentConfig())
	in, ok := c.Classify("UFO sightings near me")
	if !ok {
		t.Fatalf("query should be classified")
	}
	if !in.IsNaturalLanguage || in.IsKeyword {
		t.Fatalf("expected natural language, got %+v", in)
	}
	if in.VectorWeight <= in.FTSWeight {
		t.Fatalf("vector weight should dominate: %+v", in)
	}
	if in.VectorWeight < 0.6 || in.VectorWeight > 0.8 {
		t.Fatalf("vector weight %v outside [0.6,0.8]", in.VectorWeight)
	}
}

func TestClassifyTable(t *testing.T) {
	c := NewClassifier(DefaultIntentConfig())
	cases := []struct {
		query    string
		question bool
		natural  bool
		keyword  bool
	}{
		{"triangle", false, false, true},
		{"orange triangle", false, false, true},
		{"what did people see over the lake?", true, true, false},
		{"has anyone seen a black triangle", true, true, false},
		{`"black triangle" silent`, false, false, true},
		{"triangle OR disc", false, false, true},
		{"orange triangle silent hovering lake", false, false, true},
		{"lights over the lake at night", false, true, false},
		{"orange lights over lake", false, false, false},
	}
	for _, tc := range cases {
		in, ok := c.Classify(tc.query)
		if !ok {
			t.Fatalf("%q not classified", tc.query)
		}
		if in.IsQuestion != tc.question || in.IsNaturalLanguage != tc.natural || in.IsKeyword != tc.keyword {
			t.Errorf("Classify(%q) = q:%v nl:%v kw:%v, want q:%v nl:%v kw:%v",
				tc.query, in.IsQuestion, in.IsNaturalLanguage, in.IsKeyword, tc.question, tc.natural, tc.keyword)
		}
		if in.IsKeyword && in.FTSWeight <= in.VectorWeight {
			t.Errorf("Classify(%q): keyword query should favour lexical, got %+v", tc.query, in)
		}
	}
}

func TestClassifyWeightsAlwaysSumToOne(t *testing.T) {
	configs := []IntentConfig{
		DefaultIntentConfig(),
		{NaturalVectorWeight: 0.95, KeywordFTSWeight: 0.2},
		{MinNaturalWords: 5, MaxNaturalDensity: 0.4, MinKeywordDensity: 0.5},
	}
	queries := []string{
		"ufo", "?", "   x   ", "UFO sightings near me", "why", "the the the",
		`"exact phrase"`, "-noise +signal", "dreams about falling from a tall building",
		"triangle disc sphere orb cigar", "Were there lights?", "1999 2001",
	}
	for _, cfg := range configs {
		c := NewClassifier(cfg)
		for _, q := range queries {
			in, ok := c.Classify(q)
			if !ok {
				t.Fatalf("%q not classified", q)
			}
			if math.Abs(in.VectorWeight+in.FTSWeight-1) > 1e-9 {
				t.Errorf("cfg %+v query %q: weights %v + %v != 1", cfg, q, in.VectorWeight, in.FTSWeight)
			}
			if in.VectorWeight < 0 || in.VectorWeight > 1 || in.FTSWeight < 0 || in.FTSWeight > 1 {
				t.Errorf("query %q: weights out of range %+v", q, in)
			}
			if in.Confidence < 0 || in.Confidence > 1 {
				t.Errorf("query %q: confidence %v", q, in.Confidence)
			}
		}
	}
}

func TestClassifyBlankQuery(t *testing.T) {
	c := NewClassifier(DefaultIntentConfig())
	for _, q := range []string{"", "   ", "\t\n"} {
		if _, ok := c.Classify(q); ok {
			t.Fatalf("blank query %q should not be classified", q)
		}
	}
}
