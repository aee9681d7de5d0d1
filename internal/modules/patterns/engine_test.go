package patterns

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
	"github.com/yungbote/patternlens-backend/internal/platform/cache"
	"github.com/yungbote/patternlens-backend/internal/platform/geo"
)

var triangle = repos.KeyValue{Key: "shape", Value: "Triangle"}

func TestCorrelationsSupportConfidenceLift(t *testing.T) {
	e := newCorpus().engine(nil, nil)
	got, err := e.Correlations(context.Background(), triangle, 0.05, 0.6)
	if err != nil {
		t.Fatalf("Correlations: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only color=orange above thresholds, got %+v", got)
	}
	c := got[0]
	if c.Key != "color" || c.Value != "Orange" || c.Count != 3 {
		t.Fatalf("unexpected correlation %+v", c)
	}
	if c.Support != 0.3 || c.Confidence != 0.75 || c.Lift != 1.875 {
		t.Fatalf("support/confidence/lift = %v/%v/%v, want 0.3/0.75/1.875", c.Support, c.Confidence, c.Lift)
	}

	loose, err := e.Correlations(context.Background(), triangle, 0, 0.5)
	if err != nil {
		t.Fatalf("Correlations: %v", err)
	}
	if len(loose) != 2 || loose[1].Key != "sound_heard" {
		t.Fatalf("expected sound_heard to pass at confidence 0.5, got %+v", loose)
	}
}

func TestCorrelationsValidation(t *testing.T) {
	e := newCorpus().engine(nil, nil)
	cases := []struct {
		kv       repos.KeyValue
		sup, con float64
	}{
		{repos.KeyValue{Key: "", Value: "x"}, 0.05, 0.6},
		{repos.KeyValue{Key: "shape", Value: " "}, 0.05, 0.6},
		{triangle, 1.5, 0.6},
		{triangle, 0.05, -0.1},
	}
	for _, tc := range cases {
		_, err := e.Correlations(context.Background(), tc.kv, tc.sup, tc.con)
		if !errors.Is(err, apierr.ErrValidation) {
			t.Fatalf("%+v: expected validation error, got %v", tc, err)
		}
	}
}

func TestCorrelationsUnknownValueIsEmpty(t *testing.T) {
	e := newCorpus().engine(nil, nil)
	got, err := e.Correlations(context.Background(), repos.KeyValue{Key: "shape", Value: "cigar"}, 0.05, 0.6)
	if err != nil {
		t.Fatalf("Correlations: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestCoOccurrenceStrengthAndJaccard(t *testing.T) {
	e := newCorpus().engine(nil, nil)
	got, err := e.CoOccurrence(context.Background(), triangle, 2)
	if err != nil {
		t.Fatalf("CoOccurrence: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pairs, got %+v", got)
	}
	if got[0].Key != "color" || got[0].Count != 3 || got[0].Strength != 0.75 || got[0].Jaccard != 0.6 {
		t.Fatalf("unexpected first pair %+v", got[0])
	}
	if got[1].Key != "sound_heard" || got[1].Count != 2 || got[1].Strength != 0.5 || got[1].Jaccard != 0.5 {
		t.Fatalf("unexpected second pair %+v", got[1])
	}

	strict, err := e.CoOccurrence(context.Background(), triangle, 3)
	if err != nil {
		t.Fatalf("CoOccurrence: %v", err)
	}
	if len(strict) != 1 {
		t.Fatalf("minCount=3 should keep one pair, got %+v", strict)
	}
}

func TestClusterPointsRespectsRadius(t *testing.T) {
	phoenix := geo.Point{Lat: 33.4484, Lng: -112.0740}
	mesa := geo.Point{Lat: 33.4152, Lng: -111.8315}
	tucson := geo.Point{Lat: 32.2226, Lng: -110.9747}
	sydney := geo.Point{Lat: -33.8688, Lng: 151.2093}
	pts := []geo.Point{phoenix, tucson, mesa, sydney}

	var rows []repos.ReportPoint
	byID := map[uuid.UUID]geo.Point{}
	for _, p := range pts {
		id := uuid.New()
		byID[id] = p
		rows = append(rows, repos.ReportPoint{ReportID: id, Latitude: fptr(p.Lat), Longitude: fptr(p.Lng)})
	}
	rows = append(rows, repos.ReportPoint{ReportID: uuid.New()})

	got := clusterPoints(rows, 100)
	if got.Located != 4 || got.Unplaced != 1 {
		t.Fatalf("located/unplaced = %d/%d", got.Located, got.Unplaced)
	}
	if len(got.Clusters) != 3 {
		t.Fatalf("expected 3 clusters, got %+v", got.Clusters)
	}
	if got.Clusters[0].Count != 2 {
		t.Fatalf("largest cluster should hold phoenix and mesa, got %+v", got.Clusters[0])
	}
	for _, c := range got.Clusters {
		leader := byID[c.ReportIDs[0]]
		for _, id := range c.ReportIDs {
			if d := geo.HaversineKm(leader, byID[id]); d > 100 {
				t.Fatalf("member %.1fkm from leader exceeds radius", d)
			}
		}
		if c.Count == 2 && (c.RadiusKm <= 0 || c.RadiusKm > 100) {
			t.Fatalf("unexpected cluster spread %v", c.RadiusKm)
		}
	}

	wide := clusterPoints(rows, 500)
	if len(wide.Clusters) != 2 || wide.Clusters[0].Count != 3 {
		t.Fatalf("500km radius should merge tucson, got %+v", wide.Clusters)
	}
}

func TestPercentagesSumToHundred(t *testing.T) {
	cases := [][]int{
		{1, 1, 1},
		{2, 1},
		{1, 1, 1, 1, 1, 1, 1},
		{5, 0, 0, 0},
		{0, 0},
		{7, 13, 29, 1},
	}
	for _, counts := range cases {
		pcts := percentages(counts)
		total, tenths := 0, 0
		for i, p := range pcts {
			total += counts[i]
			tenths += int(math.Round(p * 10))
		}
		if total == 0 {
			if tenths != 0 {
				t.Fatalf("%v: zero counts should give zero percentages, got %v", counts, pcts)
			}
			continue
		}
		if tenths != 1000 {
			t.Fatalf("%v: percentages %v sum to %.1f", counts, pcts, float64(tenths)/10)
		}
	}
	if got := percentages([]int{1, 1, 1}); got[0] != 33.4 || got[1] != 33.3 {
		t.Fatalf("largest remainder should favour the first tie, got %v", got)
	}
}

func TestTemporalPatternBuckets(t *testing.T) {
	points := []repos.ReportPoint{
		{OccurredAt: time.Date(2024, 7, 4, 22, 0, 0, 0, time.UTC)},
		{OccurredAt: time.Date(2024, 7, 5, 3, 0, 0, 0, time.UTC)},
		// Sydney, 14:00 UTC is just past local solar midnight on a southern summer Thursday.
		{OccurredAt: time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC), Latitude: fptr(-33.87), Longitude: fptr(151.21)},
		{},
	}
	got := temporalPattern(points)
	if got.Total != 3 {
		t.Fatalf("total = %d, want 3", got.Total)
	}
	if got.PeakTimeOfDay != "night" || got.PeakDayOfWeek != "thursday" || got.PeakSeason != "summer" {
		t.Fatalf("peaks = %s/%s/%s", got.PeakTimeOfDay, got.PeakDayOfWeek, got.PeakSeason)
	}
	if got.Season[2].Percentage != 100 {
		t.Fatalf("summer should hold every report, got %+v", got.Season)
	}
	for _, set := range [][]Bucket{got.TimeOfDay, got.DayOfWeek, got.Season} {
		sum := 0.0
		for _, b := range set {
			sum += b.Percentage
		}
		if math.Abs(sum-100) > 1e-9 {
			t.Fatalf("buckets %+v sum to %v", set, sum)
		}
	}
	if len(got.DayOfWeek) != 7 || len(got.TimeOfDay) != 4 {
		t.Fatalf("every bucket should be present")
	}
}

func TestTemporalPatternEmpty(t *testing.T) {
	got := temporalPattern(nil)
	if got.Total != 0 || got.PeakSeason != "" {
		t.Fatalf("unexpected %+v", got)
	}
	for _, b := range got.TimeOfDay {
		if b.Percentage != 0 {
			t.Fatalf("empty input should yield zero percentages")
		}
	}
}

func TestConfidenceStatsAndDistribution(t *testing.T) {
	e := newCorpus().engine(nil, nil)
	stats, err := e.ConfidenceStats(context.Background(), repos.KeyValue{Key: "sound_heard", Value: "no"})
	if err != nil {
		t.Fatalf("ConfidenceStats: %v", err)
	}
	if stats.Total != 2 || stats.UserConfirmed != 1 || stats.AIExtracted != 1 ||
		stats.AverageConfidence != 0.8 || stats.ConfirmationRate != 0.5 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	dist, err := e.ValueDistribution(context.Background(), "shape")
	if err != nil {
		t.Fatalf("ValueDistribution: %v", err)
	}
	if dist.Total != 10 || len(dist.Values) != 2 || dist.Values[0].Value != "disc" || dist.Values[0].Percentage != 60 {
		t.Fatalf("unexpected distribution %+v", dist)
	}
	if _, err := e.ValueDistribution(context.Background(), " "); !errors.Is(err, apierr.ErrValidation) {
		t.Fatalf("blank key should be a validation error, got %v", err)
	}
}

func TestInsights(t *testing.T) {
	c := newCorpus()
	e := c.engine(nil, fakeSimilar{})

	res, err := e.Insights(context.Background(), c.ids[0])
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if !res.HasPatterns {
		t.Fatalf("report with attributes should have patterns")
	}
	ins := res.Insights
	if len(ins.Correlations) != 3 || len(ins.Geographic) != 3 || len(ins.Temporal) != 3 ||
		len(ins.CoOccurrence) != 3 || len(ins.ConfidenceStats) != 3 || len(ins.ValueDistribution) != 3 {
		t.Fatalf("expected one section per attribute, got %+v", ins)
	}
	if ins.Correlations[0].Key != "color" || ins.Correlations[2].Key != "sound_heard" {
		t.Fatalf("sections should follow attribute key order, got %+v", ins.Correlations)
	}
	if len(ins.Similar) != 1 {
		t.Fatalf("expected similar reports, got %+v", ins.Similar)
	}
}

func TestInsightsWithoutAttributes(t *testing.T) {
	c := newCorpus()
	e := c.engine(nil, fakeSimilar{err: errors.New("scorer down")})

	res, err := e.Insights(context.Background(), c.ids[10])
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if res.HasPatterns {
		t.Fatalf("expected hasPatterns=false")
	}
	if res.Insights.Correlations == nil || res.Insights.Similar == nil || len(res.Insights.Similar) != 0 {
		t.Fatalf("empty sections should be non-nil, got %+v", res.Insights)
	}

	if _, err := e.Insights(context.Background(), uuid.New()); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("unknown report should be not found, got %v", err)
	}
	if _, err := e.Insights(context.Background(), uuid.Nil); !errors.Is(err, apierr.ErrValidation) {
		t.Fatalf("nil id should be a validation error, got %v", err)
	}
}

func TestCachedResultsAndInvalidation(t *testing.T) {
	c := newCorpus()
	store := cache.NewMemoryCache(time.Minute, time.Minute)
	e := c.engine(store, nil)
	ctx := context.Background()

	first, err := e.Correlations(ctx, triangle, 0.05, 0.6)
	if err != nil {
		t.Fatalf("Correlations: %v", err)
	}
	second, err := e.Correlations(ctx, triangle, 0.05, 0.6)
	if err != nil {
		t.Fatalf("Correlations: %v", err)
	}
	if c.extracted.matchingCalls != 1 {
		t.Fatalf("second call should be served from cache, store hit %d times", c.extracted.matchingCalls)
	}
	if len(second) != len(first) || second[0] != first[0] {
		t.Fatalf("cached result differs: %+v vs %+v", second, first)
	}

	e.AttributesChanged(ctx, c.ids[0])
	if _, err := e.Correlations(ctx, triangle, 0.05, 0.6); err != nil {
		t.Fatalf("Correlations: %v", err)
	}
	if c.extracted.matchingCalls != 2 {
		t.Fatalf("invalidation should force recomputation, store hit %d times", c.extracted.matchingCalls)
	}
}
