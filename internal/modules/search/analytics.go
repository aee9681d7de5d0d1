package search

import (
	"sort"
	"strings"

	types "github.com/yungbote/patternlens-backend/internal/domain"
)

type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// AnalyticsSummary aggregates recorded search events for tuning the intent thresholds.
type AnalyticsSummary struct {
	Searches            int          `json:"searches"`
	Questions           int          `json:"questions"`
	NaturalLanguage     int          `json:"natural_language"`
	Keyword             int          `json:"keyword"`
	Balanced            int          `json:"balanced"`
	ZeroResults         int          `json:"zero_results"`
	EmbeddingFailures   int          `json:"embedding_failures"`
	LexicalFallbacks    int          `json:"lexical_fallbacks"`
	AverageVectorWeight float64      `json:"average_vector_weight"`
	LatencyP50MS        int64        `json:"latency_p50_ms"`
	LatencyP95MS        int64        `json:"latency_p95_ms"`
	TopQueries          []QueryCount `json:"top_queries"`
	TopZeroResult       []QueryCount `json:"top_zero_result_queries"`
}

func Summarize(events []*types.SearchEvent, top int) AnalyticsSummary {
	var s AnalyticsSummary
	if top <= 0 {
		top = 10
	}
	queries := map[string]int{}
	empty := map[string]int{}
	latencies := make([]int64, 0, len(events))
	vw := 0.0
	for _, e := range events {
		if e == nil {
			continue
		}
		s.Searches++
		switch {
		case e.IsNaturalLanguage:
			s.NaturalLanguage++
		case e.IsKeyword:
			s.Keyword++
		default:
			s.Balanced++
		}
		if e.IsQuestion {
			s.Questions++
		}
		if e.EmbeddingFailed {
			s.EmbeddingFailures++
		}
		if e.LexicalFallback {
			s.LexicalFallbacks++
		}
		vw += e.VectorWeight
		latencies = append(latencies, e.LatencyMS)

		q := e.NormalizedQuery
		if q == "" {
			q = strings.ToLower(strings.TrimSpace(e.Query))
		}
		queries[q]++
		if e.ResultCount == 0 {
			s.ZeroResults++
			empty[q]++
		}
	}
	if s.Searches > 0 {
		s.AverageVectorWeight = float64(int(vw/float64(s.Searches)*1000+0.5)) / 1000
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	s.LatencyP50MS = percentile(latencies, 0.50)
	s.LatencyP95MS = percentile(latencies, 0.95)
	s.TopQueries = topCounts(queries, top)
	s.TopZeroResult = topCounts(empty, top)
	return s
}

// percentile uses nearest rank over sorted values.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.999999) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}

func topCounts(counts map[string]int, n int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
