package patterns

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
)

// Correlation is an association rule A => B where A is the queried attribute value.
type Correlation struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Count      int     `json:"count"`
	Support    float64 `json:"support"`
	Confidence float64 `json:"confidence"`
	Lift       float64 `json:"lift"`
}

type CoOccurrence struct {
	Key      string  `json:"key"`
	Value    string  `json:"value"`
	Count    int     `json:"count"`
	Strength float64 `json:"strength"`
	Jaccard  float64 `json:"jaccard"`
}

// coStats is the raw material shared by Correlations and CoOccurrence.
type coStats struct {
	Corpus int
	Base   int
	Pairs  []coPair
}

type coPair struct {
	Key     string
	Value   string
	Joint   int
	Overall int
}

func (e *Engine) Correlations(ctx context.Context, kv repos.KeyValue, minSupport, minConfidence float64) ([]Correlation, error) {
	kv, err := normalize(kv)
	if err != nil {
		return nil, err
	}
	if minSupport < 0 || minSupport > 1 || minConfidence < 0 || minConfidence > 1 {
		return nil, apierr.Validation("minSupport and minConfidence must be within [0,1]")
	}
	return cached(ctx, e, cacheKey("correlations", kv, minSupport, minConfidence), func() ([]Correlation, error) {
		st, err := e.coStats(ctx, kv)
		if err != nil {
			return nil, err
		}
		return correlations(st, minSupport, minConfidence), nil
	})
}

func correlations(st coStats, minSupport, minConfidence float64) []Correlation {
	out := []Correlation{}
	if st.Corpus == 0 || st.Base == 0 {
		return out
	}
	n := float64(st.Corpus)
	for _, p := range st.Pairs {
		support := float64(p.Joint) / n
		confidence := float64(p.Joint) / float64(st.Base)
		if support < minSupport || confidence < minConfidence {
			continue
		}
		lift := 0.0
		if p.Overall > 0 {
			lift = confidence / (float64(p.Overall) / n)
		}
		out = append(out, Correlation{
			Key:        p.Key,
			Value:      p.Value,
			Count:      p.Joint,
			Support:    round(support, 4),
			Confidence: round(confidence, 4),
			Lift:       round(lift, 4),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].Support != out[j].Support {
			return out[i].Support > out[j].Support
		}
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func (e *Engine) CoOccurrence(ctx context.Context, kv repos.KeyValue, minCount int) ([]CoOccurrence, error) {
	kv, err := normalize(kv)
	if err != nil {
		return nil, err
	}
	if minCount <= 0 {
		minCount = e.cfg.MinCount
	}
	return cached(ctx, e, cacheKey("cooccurrence", kv, minCount), func() ([]CoOccurrence, error) {
		st, err := e.coStats(ctx, kv)
		if err != nil {
			return nil, err
		}
		return coOccurrence(st, minCount), nil
	})
}

func coOccurrence(st coStats, minCount int) []CoOccurrence {
	out := []CoOccurrence{}
	if st.Base == 0 {
		return out
	}
	for _, p := range st.Pairs {
		if p.Joint < minCount {
			continue
		}
		union := st.Base + p.Overall - p.Joint
		jaccard := 0.0
		if union > 0 {
			jaccard = float64(p.Joint) / float64(union)
		}
		out = append(out, CoOccurrence{
			Key:      p.Key,
			Value:    p.Value,
			Count:    p.Joint,
			Strength: round(float64(p.Joint)/float64(st.Base), 4),
			Jaccard:  round(jaccard, 4),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func (e *Engine) coStats(ctx context.Context, kv repos.KeyValue) (coStats, error) {
	var st coStats
	matching, err := e.deps.Extracted.ListMatching(ctx, nil, kv)
	if err != nil {
		return st, err
	}
	seen := map[uuid.UUID]bool{}
	ids := make([]uuid.UUID, 0, len(matching))
	for _, m := range matching {
		if seen[m.ReportID] {
			continue
		}
		seen[m.ReportID] = true
		ids = append(ids, m.ReportID)
	}
	st.Base = len(ids)
	if st.Base == 0 {
		return st, nil
	}
	corpus, err := e.deps.Extracted.CountAttributedReports(ctx, nil)
	if err != nil {
		return st, err
	}
	st.Corpus = int(corpus)

	rows, err := e.deps.Extracted.ListByReportIDs(ctx, nil, ids)
	if err != nil {
		return st, err
	}
	joint := map[repos.KeyValue]map[uuid.UUID]bool{}
	display := map[repos.KeyValue]string{}
	for _, r := range rows {
		pair := repos.KeyValue{Key: r.AttributeKey, Value: r.Value}.Norm()
		if pair.Key == kv.Key || pair.Value == "" {
			continue
		}
		if joint[pair] == nil {
			joint[pair] = map[uuid.UUID]bool{}
			display[pair] = strings.TrimSpace(r.Value)
		}
		joint[pair][r.ReportID] = true
	}
	if len(joint) == 0 {
		return st, nil
	}
	pairs := make([]repos.KeyValue, 0, len(joint))
	for p := range joint {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Key != pairs[j].Key {
			return pairs[i].Key < pairs[j].Key
		}
		return pairs[i].Value < pairs[j].Value
	})
	counts, err := e.deps.Extracted.CountKeyValues(ctx, nil, pairs)
	if err != nil {
		return st, err
	}
	overall := make(map[repos.KeyValue]int, len(counts))
	for _, c := range counts {
		overall[repos.KeyValue{Key: c.Key, Value: c.Value}.Norm()] = int(c.Count)
	}
	for _, p := range pairs {
		n := len(joint[p])
		st.Pairs = append(st.Pairs, coPair{
			Key:     p.Key,
			Value:   display[p],
			Joint:   n,
			Overall: max(overall[p], n),
		})
	}
	return st, nil
}
