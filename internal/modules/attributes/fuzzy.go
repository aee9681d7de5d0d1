package attributes

import (
	"strconv"
	"strings"

	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
)

type ValidatorConfig struct {
	// MinSimilarity is the acceptance floor for a fuzzy match.
	MinSimilarity float64
	// CorrectionPenalty multiplies confidence when the stored value differs from the raw one.
	CorrectionPenalty float64
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{MinSimilarity: 0.7, CorrectionPenalty: 0.9}
}

// Validation is the outcome of matching one raw value against an allowed set.
type Validation struct {
	Accepted   bool
	Raw        string
	Corrected  string
	Similarity float64
	// Penalized is true when Corrected differs from Raw beyond case.
	Penalized bool
}

type FuzzyValidator struct {
	cfg ValidatorConfig
}

func NewFuzzyValidator(cfg ValidatorConfig) *FuzzyValidator {
	def := DefaultValidatorConfig()
	if cfg.MinSimilarity <= 0 || cfg.MinSimilarity > 1 {
		cfg.MinSimilarity = def.MinSimilarity
	}
	if cfg.CorrectionPenalty <= 0 || cfg.CorrectionPenalty > 1 {
		cfg.CorrectionPenalty = def.CorrectionPenalty
	}
	return &FuzzyValidator{cfg: cfg}
}

func (v *FuzzyValidator) Config() ValidatorConfig { return v.cfg }

// Validate picks the allowed value closest to raw. The first allowed value wins ties.
func (v *FuzzyValidator) Validate(raw string, allowed []string) Validation {
	out := Validation{Raw: raw}
	needle := strings.ToLower(strings.TrimSpace(raw))
	if needle == "" || len(allowed) == 0 {
		return out
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimSpace(a)) == needle {
			out.Accepted = true
			out.Corrected = a
			out.Similarity = 1
			return out
		}
	}
	best := -1.0
	for _, a := range allowed {
		s := Similarity(needle, a)
		if s > best {
			best = s
			out.Corrected = a
		}
	}
	out.Similarity = best
	if best < v.cfg.MinSimilarity {
		out.Corrected = ""
		return out
	}
	out.Accepted = true
	out.Penalized = !strings.EqualFold(strings.TrimSpace(out.Corrected), strings.TrimSpace(raw))
	return out
}

// Normalize coerces raw into the stored form for def and adjusts confidence. A value that
// cannot conform returns a schema mismatch error and must be dropped.
func (v *FuzzyValidator) Normalize(def *types.AttributeDefinition, raw string, confidence float64) (string, float64, error) {
	confidence = clamp01(confidence)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0, apierr.SchemaMismatch(def.Key, "empty value")
	}
	switch def.DataType {
	case types.DataTypeEnum:
		res := v.Validate(raw, def.Allowed())
		if !res.Accepted {
			return "", 0, apierr.SchemaMismatch(def.Key, "no allowed value within similarity threshold")
		}
		if res.Penalized {
			confidence *= v.cfg.CorrectionPenalty
		}
		return res.Corrected, confidence, nil
	case types.DataTypeBoolean:
		switch strings.ToLower(raw) {
		case "true", "yes", "y", "1":
			return "true", confidence, nil
		case "false", "no", "n", "0":
			return "false", confidence, nil
		}
		return "", 0, apierr.SchemaMismatch(def.Key, "not a boolean")
	case types.DataTypeNumber:
		f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return "", 0, apierr.SchemaMismatch(def.Key, "not a number")
		}
		return strconv.FormatFloat(f, 'f', -1, 64), confidence, nil
	default:
		return raw, confidence, nil
	}
}

// Similarity is 1 - distance/maxLen over lower-cased runes, where distance is the
// optimal-string-alignment edit distance (an adjacent transposition costs one edit).
func Similarity(a, b string) float64 {
	ra := []rune(strings.ToLower(strings.TrimSpace(a)))
	rb := []rune(strings.ToLower(strings.TrimSpace(b)))
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(editDistance(ra, rb))/float64(maxLen)
}

func editDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	// three rolling rows: i-2, i-1, i
	prev2 := make([]int, len(b)+1)
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d := min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				d = min(d, prev2[j-2]+1)
			}
			cur[j] = d
		}
		prev2, prev, cur = prev, cur, prev2
	}
	return prev[len(b)]
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
