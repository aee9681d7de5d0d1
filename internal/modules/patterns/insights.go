package patterns

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/modules/similarity"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
)

// Keyed attaches the attribute value a section was computed for.
type Keyed[T any] struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Data  T      `json:"data"`
}

type Insights struct {
	Correlations      []Keyed[[]Correlation]   `json:"correlations"`
	Geographic        []Keyed[GeoSummary]      `json:"geographic"`
	Temporal          []Keyed[TemporalPattern] `json:"temporal"`
	CoOccurrence      []Keyed[[]CoOccurrence]  `json:"coOccurrence"`
	ValueDistribution []ValueDistribution      `json:"valueDistribution"`
	Similar           []similarity.Match       `json:"similar"`
	ConfidenceStats   []Keyed[ConfidenceStats] `json:"confidenceStats"`
}

type InsightsResult struct {
	ReportID    uuid.UUID `json:"reportId"`
	HasPatterns bool      `json:"hasPatterns"`
	Insights    Insights  `json:"insights"`
}

func emptyInsights() Insights {
	return Insights{
		Correlations:      []Keyed[[]Correlation]{},
		Geographic:        []Keyed[GeoSummary]{},
		Temporal:          []Keyed[TemporalPattern]{},
		CoOccurrence:      []Keyed[[]CoOccurrence]{},
		ValueDistribution: []ValueDistribution{},
		Similar:           []similarity.Match{},
		ConfidenceStats:   []Keyed[ConfidenceStats]{},
	}
}

// Insights runs every aggregate for each attribute of the report. A report without
// attributes is not an error; it reports HasPatterns=false with empty attribute sections.
func (e *Engine) Insights(ctx context.Context, reportID uuid.UUID) (*InsightsResult, error) {
	if reportID == uuid.Nil {
		return nil, apierr.Validation("report id required")
	}
	report, err := e.deps.Reports.GetByID(ctx, nil, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, apierr.NotFound("report %s not found", reportID)
	}
	attrs, err := e.deps.Extracted.ListByReportID(ctx, nil, reportID)
	if err != nil {
		return nil, err
	}
	attrs = insightAttributes(attrs, e.cfg.MaxInsightAttributes)

	out := &InsightsResult{ReportID: reportID, HasPatterns: len(attrs) > 0, Insights: emptyInsights()}
	out.Insights.Similar = e.similar(ctx, reportID)
	if len(attrs) == 0 {
		return out, nil
	}

	n := len(attrs)
	corr := make([]Keyed[[]Correlation], n)
	geoOut := make([]Keyed[GeoSummary], n)
	temporal := make([]Keyed[TemporalPattern], n)
	cooc := make([]Keyed[[]CoOccurrence], n)
	conf := make([]Keyed[ConfidenceStats], n)
	dist := make([]ValueDistribution, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, a := range attrs {
		kv := repos.KeyValue{Key: a.AttributeKey, Value: a.Value}
		g.Go(func() error {
			v, err := e.Correlations(gctx, kv, e.cfg.MinSupport, e.cfg.MinConfidence)
			corr[i] = Keyed[[]Correlation]{Key: kv.Key, Value: kv.Value, Data: v}
			return err
		})
		g.Go(func() error {
			v, err := e.GeographicClusters(gctx, kv, e.cfg.RadiusKm)
			geoOut[i] = Keyed[GeoSummary]{Key: kv.Key, Value: kv.Value, Data: v}
			return err
		})
		g.Go(func() error {
			v, err := e.TemporalPatterns(gctx, kv)
			temporal[i] = Keyed[TemporalPattern]{Key: kv.Key, Value: kv.Value, Data: v}
			return err
		})
		g.Go(func() error {
			v, err := e.CoOccurrence(gctx, kv, e.cfg.MinCount)
			cooc[i] = Keyed[[]CoOccurrence]{Key: kv.Key, Value: kv.Value, Data: v}
			return err
		})
		g.Go(func() error {
			v, err := e.ConfidenceStats(gctx, kv)
			conf[i] = Keyed[ConfidenceStats]{Key: kv.Key, Value: kv.Value, Data: v}
			return err
		})
		g.Go(func() error {
			v, err := e.ValueDistribution(gctx, kv.Key)
			dist[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		e.log.Warn("insights aggregation failed", "report_id", reportID, "error", err)
		return nil, err
	}

	out.Insights.Correlations = corr
	out.Insights.Geographic = geoOut
	out.Insights.Temporal = temporal
	out.Insights.CoOccurrence = cooc
	out.Insights.ConfidenceStats = conf
	out.Insights.ValueDistribution = dist
	return out, nil
}

// similar is best effort; the similar section is empty when scoring fails.
func (e *Engine) similar(ctx context.Context, reportID uuid.UUID) []similarity.Match {
	if e.deps.Similar == nil {
		return []similarity.Match{}
	}
	res, err := e.deps.Similar.FindSimilar(ctx, reportID, e.cfg.SimilarLimit)
	if err != nil || res == nil {
		if err != nil {
			e.log.Warn("similar reports unavailable for insights", "report_id", reportID, "error", err)
		}
		return []similarity.Match{}
	}
	return res.Similar
}

// insightAttributes drops blank values and keeps the first max attributes by key.
func insightAttributes(attrs []*types.ExtractedAttribute, limit int) []*types.ExtractedAttribute {
	out := make([]*types.ExtractedAttribute, 0, len(attrs))
	for _, a := range attrs {
		if a == nil || strings.TrimSpace(a.AttributeKey) == "" || strings.TrimSpace(a.Value) == "" {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AttributeKey < out[j].AttributeKey })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
