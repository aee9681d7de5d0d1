package patterns

import (
	"context"
	"sort"
	"strings"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
)

type ConfidenceStats struct {
	Total             int     `json:"total"`
	AIExtracted       int     `json:"aiExtracted"`
	UserConfirmed     int     `json:"userConfirmed"`
	AverageConfidence float64 `json:"averageConfidence"`
	ConfirmationRate  float64 `json:"confirmationRate"`
}

// ConfidenceStats aggregates confidence and provenance over every report carrying kv.
func (e *Engine) ConfidenceStats(ctx context.Context, kv repos.KeyValue) (ConfidenceStats, error) {
	kv, err := normalize(kv)
	if err != nil {
		return ConfidenceStats{}, err
	}
	return cached(ctx, e, cacheKey("confidence", kv), func() (ConfidenceStats, error) {
		rows, err := e.deps.Extracted.ListMatching(ctx, nil, kv)
		if err != nil {
			return ConfidenceStats{}, err
		}
		return confidenceStats(rows), nil
	})
}

func confidenceStats(rows []*types.ExtractedAttribute) ConfidenceStats {
	var out ConfidenceStats
	sum := 0.0
	for _, r := range rows {
		out.Total++
		sum += r.Confidence
		if r.Provenance == types.ProvenanceUserConfirmed {
			out.UserConfirmed++
		} else {
			out.AIExtracted++
		}
	}
	if out.Total > 0 {
		out.AverageConfidence = round(sum/float64(out.Total), 4)
		out.ConfirmationRate = round(float64(out.UserConfirmed)/float64(out.Total), 4)
	}
	return out
}

type ValueShare struct {
	Value      string  `json:"value"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type ValueDistribution struct {
	Key    string       `json:"key"`
	Total  int          `json:"total"`
	Values []ValueShare `json:"values"`
}

// ValueDistribution counts each value of key across the corpus.
func (e *Engine) ValueDistribution(ctx context.Context, key string) (ValueDistribution, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return ValueDistribution{}, apierr.Validation("attribute key required")
	}
	return cached(ctx, e, cacheKey("distribution", repos.KeyValue{Key: key}), func() (ValueDistribution, error) {
		counts, err := e.deps.Extracted.ValueCounts(ctx, nil, key)
		if err != nil {
			return ValueDistribution{}, err
		}
		return valueDistribution(key, counts), nil
	})
}

func valueDistribution(key string, counts []repos.ValueCount) ValueDistribution {
	out := ValueDistribution{Key: key, Values: make([]ValueShare, 0, len(counts))}
	raw := make([]int, len(counts))
	for i, c := range counts {
		raw[i] = int(c.Count)
		out.Total += int(c.Count)
	}
	pcts := percentages(raw)
	for i, c := range counts {
		out.Values = append(out.Values, ValueShare{Value: c.Value, Count: int(c.Count), Percentage: pcts[i]})
	}
	sort.SliceStable(out.Values, func(i, j int) bool {
		if out.Values[i].Count != out.Values[j].Count {
			return out.Values[i].Count > out.Values[j].Count
		}
		return out.Values[i].Value < out.Values[j].Value
	})
	return out
}

// percentages returns one-decimal shares that sum to exactly 100 (largest remainder), or
// all zeros when counts sum to zero.
func percentages(counts []int) []float64 {
	out := make([]float64, len(counts))
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return out
	}
	tenths := make([]int, len(counts))
	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, len(counts))
	assigned := 0
	for i, c := range counts {
		exact := float64(c) * 1000 / float64(total)
		tenths[i] = int(exact)
		assigned += tenths[i]
		rems[i] = rem{idx: i, frac: exact - float64(tenths[i])}
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for k := 0; assigned < 1000 && k < len(rems); k++ {
		tenths[rems[k].idx]++
		assigned++
	}
	for i, t := range tenths {
		out[i] = float64(t) / 10
	}
	return out
}

func normalize(kv repos.KeyValue) (repos.KeyValue, error) {
	kv = kv.Norm()
	if kv.Key == "" || kv.Value == "" {
		return kv, apierr.Validation("attribute key and value required")
	}
	return kv, nil
}

func round(f float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	if f < 0 {
		return -float64(int64(-f*p+0.5)) / p
	}
	return float64(int64(f*p+0.5)) / p
}
