package search

import (
	"math"
	"strings"
)

type IntentConfig struct {
	// MinNaturalWords is the shortest query treated as natural language.
	MinNaturalWords int
	// MaxNaturalDensity is the highest content-word ratio still read as phrasing.
	MaxNaturalDensity float64
	// MinKeywordDensity marks a query as a keyword list.
	MinKeywordDensity float64
	// MaxKeywordWords: queries this short are keyword lookups.
	MaxKeywordWords int

	NaturalVectorWeight  float64
	QuestionVectorWeight float64
	KeywordFTSWeight     float64
}

func DefaultIntentConfig() IntentConfig {
	return IntentConfig{
		MinNaturalWords:      3,
		MaxNaturalDensity:    0.7,
		MinKeywordDensity:    0.8,
		MaxKeywordWords:      2,
		NaturalVectorWeight:  0.7,
		QuestionVectorWeight: 0.8,
		KeywordFTSWeight:     0.75,
	}
}

// Intent is the retrieval weighting for one query. VectorWeight + FTSWeight is always 1.
type Intent struct {
	IsQuestion        bool    `json:"isQuestion"`
	IsNaturalLanguage bool    `json:"isNaturalLanguage"`
	IsKeyword         bool    `json:"isKeyword"`
	Confidence        float64 `json:"confidence"`
	VectorWeight      float64 `json:"vectorWeight"`
	FTSWeight         float64 `json:"ftsWeight"`
	WordCount         int     `json:"wordCount"`
	KeywordDensity    float64 `json:"keywordDensity"`
	Normalized        string  `json:"normalizedQuery"`
}

type Classifier struct {
	cfg IntentConfig
}

func NewClassifier(cfg IntentConfig) *Classifier {
	def := DefaultIntentConfig()
	if cfg.MinNaturalWords <= 0 {
		cfg.MinNaturalWords = def.MinNaturalWords
	}
	if cfg.MaxNaturalDensity <= 0 || cfg.MaxNaturalDensity > 1 {
		cfg.MaxNaturalDensity = def.MaxNaturalDensity
	}
	if cfg.MinKeywordDensity <= 0 || cfg.MinKeywordDensity > 1 {
		cfg.MinKeywordDensity = def.MinKeywordDensity
	}
	if cfg.MaxKeywordWords <= 0 {
		cfg.MaxKeywordWords = def.MaxKeywordWords
	}
	// semantic retrieval dominates natural phrasing, within [0.6, 0.8]
	cfg.NaturalVectorWeight = clampRange(orDefault(cfg.NaturalVectorWeight, def.NaturalVectorWeight), 0.6, 0.8)
	cfg.QuestionVectorWeight = clampRange(orDefault(cfg.QuestionVectorWeight, def.QuestionVectorWeight), 0.6, 0.8)
	cfg.KeywordFTSWeight = clampRange(orDefault(cfg.KeywordFTSWeight, def.KeywordFTSWeight), 0.5, 1)
	return &Classifier{cfg: cfg}
}

// Classify returns ok=false for blank queries; callers list recent reports instead.
func (c *Classifier) Classify(query string) (Intent, bool) {
	q := strings.Join(strings.Fields(query), " ")
	if q == "" {
		return Intent{}, false
	}
	tokens := words(q)
	if len(tokens) == 0 {
		// punctuation only: nothing semantic to embed
		return c.keyword(Intent{Normalized: strings.ToLower(q)}, 0.5), true
	}
	content := contentWords(tokens)
	in := Intent{
		WordCount:      len(tokens),
		KeywordDensity: float64(len(content)) / float64(len(tokens)),
		Normalized:     strings.Join(tokens, " "),
	}
	in.IsQuestion = strings.HasSuffix(q, "?") || interrogatives[tokens[0]]

	switch {
	case hasSearchOperators(q):
		return c.keyword(in, 0.9), true
	case in.IsQuestion && len(tokens) >= 2:
		return c.natural(in, c.cfg.QuestionVectorWeight, 0.9), true
	case len(tokens) >= c.cfg.MinNaturalWords && in.KeywordDensity <= c.cfg.MaxNaturalDensity:
		conf := 0.6 + 0.4*(c.cfg.MaxNaturalDensity-in.KeywordDensity)/c.cfg.MaxNaturalDensity
		return c.natural(in, c.cfg.NaturalVectorWeight, conf), true
	case len(tokens) <= c.cfg.MaxKeywordWords || in.KeywordDensity >= c.cfg.MinKeywordDensity:
		return c.keyword(in, 0.6+0.3*in.KeywordDensity), true
	default:
		in.VectorWeight, in.FTSWeight = split(0.5)
		in.Confidence = 0.5
		return in, true
	}
}

func (c *Classifier) natural(in Intent, vectorWeight, confidence float64) Intent {
	in.IsNaturalLanguage = true
	in.IsKeyword = false
	in.Confidence = clampRange(confidence, 0, 1)
	in.VectorWeight, in.FTSWeight = split(vectorWeight)
	return in
}

func (c *Classifier) keyword(in Intent, confidence float64) Intent {
	in.IsKeyword = true
	in.IsNaturalLanguage = false
	in.Confidence = clampRange(confidence, 0, 1)
	vw, fw := split(1 - c.cfg.KeywordFTSWeight)
	in.VectorWeight, in.FTSWeight = vw, fw
	return in
}

// hasSearchOperators detects quoted phrases, AND/OR/NOT and +/- term prefixes.
func hasSearchOperators(q string) bool {
	if strings.Count(q, `"`) >= 2 {
		return true
	}
	for _, f := range strings.Fields(q) {
		switch f {
		case "AND", "OR", "NOT":
			return true
		}
		if len(f) > 1 && (f[0] == '+' || f[0] == '-') {
			return true
		}
	}
	return false
}

// split rounds both weights to six decimals.
func split(vectorWeight float64) (float64, float64) {
	vw := math.Round(clampRange(vectorWeight, 0, 1)*1e6) / 1e6
	return vw, math.Round((1-vw)*1e6) / 1e6
}

func clampRange(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

func orDefault(f, def float64) float64 {
	if f == 0 {
		return def
	}
	return f
}
