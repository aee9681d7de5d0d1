package similarity

import (
	"math"
	"sort"
	"strings"

	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/geo"
)

type Config struct {
	SameCategoryBase float64
	TagPoints        float64
	TagCap           float64
	NearKm           float64
	NearBonus        float64
	FarKm            float64

	TagLocationWeight float64
	AttributeWeight   float64
}

func DefaultConfig() Config {
	return Config{
		SameCategoryBase:  50,
		TagPoints:         10,
		TagCap:            30,
		NearKm:            50,
		NearBonus:         20,
		FarKm:             500,
		TagLocationWeight: 0.6,
		AttributeWeight:   0.4,
	}
}

type SharedAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Score is the breakdown of one pairwise comparison.
type Score struct {
	HybridScore      int               `json:"hybridScore"`
	TagLocationScore float64           `json:"tagLocationScore"`
	AttributeScore   float64           `json:"attributeScore"`
	SharedAttributes []SharedAttribute `json:"sharedAttributes"`
	SharedTags       []string          `json:"sharedTags"`
	DistanceKm       *float64          `json:"distanceKm,omitempty"`
}

type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.TagLocationWeight <= 0 && cfg.AttributeWeight <= 0 {
		cfg.TagLocationWeight, cfg.AttributeWeight = def.TagLocationWeight, def.AttributeWeight
	}
	if cfg.FarKm <= 0 {
		cfg.FarKm = def.FarKm
	}
	if cfg.NearKm <= 0 || cfg.NearKm > cfg.FarKm {
		cfg.NearKm = math.Min(def.NearKm, cfg.FarKm)
	}
	return &Scorer{cfg: cfg}
}

func (s *Scorer) Config() Config { return s.cfg }

// Score compares candidate against source. Attributes are matched by key with
// case-insensitive values.
func (s *Scorer) Score(source, candidate *types.Report, sourceAttrs, candidateAttrs []*types.ExtractedAttribute) Score {
	var out Score

	tagLocation := 0.0
	if source.Category == candidate.Category {
		tagLocation += s.cfg.SameCategoryBase
	}
	out.SharedTags = sharedTags(source.TagList(), candidate.TagList())
	tagLocation += math.Min(float64(len(out.SharedTags))*s.cfg.TagPoints, s.cfg.TagCap)
	if source.HasLocation() && candidate.HasLocation() {
		d := geo.HaversineKm(
			geo.Point{Lat: *source.Latitude, Lng: *source.Longitude},
			geo.Point{Lat: *candidate.Latitude, Lng: *candidate.Longitude},
		)
		out.DistanceKm = &d
		tagLocation += s.locationBonus(d)
	}
	out.TagLocationScore = tagLocation

	out.SharedAttributes = sharedAttributes(sourceAttrs, candidateAttrs)
	denom := max(len(attrMap(sourceAttrs)), len(attrMap(candidateAttrs)), 1)
	out.AttributeScore = float64(len(out.SharedAttributes)) / float64(denom) * 100

	out.HybridScore = s.Hybrid(out.TagLocationScore, out.AttributeScore)
	return out
}

// Hybrid blends the two component scores and clamps to [0,100].
func (s *Scorer) Hybrid(tagLocation, attribute float64) int {
	h := int(math.Round(tagLocation*s.cfg.TagLocationWeight + attribute*s.cfg.AttributeWeight))
	if h < 0 {
		return 0
	}
	if h > 100 {
		return 100
	}
	return h
}

func (s *Scorer) locationBonus(km float64) float64 {
	switch {
	case km < s.cfg.NearKm:
		return s.cfg.NearBonus
	case km < s.cfg.FarKm:
		return s.cfg.NearBonus * (1 - km/s.cfg.FarKm)
	default:
		return 0
	}
}

func sharedTags(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	var out []string
	for _, t := range b {
		if set[t] {
			out = append(out, t)
			delete(set, t)
		}
	}
	sort.Strings(out)
	return out
}

func attrMap(attrs []*types.ExtractedAttribute) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if a == nil || strings.TrimSpace(a.Value) == "" {
			continue
		}
		m[a.AttributeKey] = strings.TrimSpace(a.Value)
	}
	return m
}

func sharedAttributes(a, b []*types.ExtractedAttribute) []SharedAttribute {
	am := attrMap(a)
	bm := attrMap(b)
	var out []SharedAttribute
	for k, v := range am {
		if w, ok := bm[k]; ok && strings.EqualFold(v, w) {
			out = append(out, SharedAttribute{Key: k, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
