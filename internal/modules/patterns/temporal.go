package patterns

import (
	"context"
	"time"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
)

type Bucket struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type TemporalPattern struct {
	Total         int      `json:"total"`
	TimeOfDay     []Bucket `json:"timeOfDay"`
	DayOfWeek     []Bucket `json:"dayOfWeek"`
	Season        []Bucket `json:"season"`
	PeakTimeOfDay string   `json:"peakTimeOfDay,omitempty"`
	PeakDayOfWeek string   `json:"peakDayOfWeek,omitempty"`
	PeakSeason    string   `json:"peakSeason,omitempty"`
}

var (
	timeOfDayLabels = []string{"night", "morning", "afternoon", "evening"}
	dayOfWeekLabels = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	seasonLabels    = []string{"winter", "spring", "summer", "autumn"}
)

func (e *Engine) TemporalPatterns(ctx context.Context, kv repos.KeyValue) (TemporalPattern, error) {
	kv, err := normalize(kv)
	if err != nil {
		return TemporalPattern{}, err
	}
	return cached(ctx, e, cacheKey("temporal", kv), func() (TemporalPattern, error) {
		points, err := e.deps.Extracted.ReportPointsWith(ctx, nil, kv)
		if err != nil {
			return TemporalPattern{}, err
		}
		return temporalPattern(points), nil
	})
}

func temporalPattern(points []repos.ReportPoint) TemporalPattern {
	tod := make([]int, len(timeOfDayLabels))
	dow := make([]int, len(dayOfWeekLabels))
	season := make([]int, len(seasonLabels))
	total := 0
	for _, p := range points {
		if p.OccurredAt.IsZero() {
			continue
		}
		total++
		local := localTime(p)
		tod[local.Hour()/6]++
		dow[int(local.Weekday())]++
		lat := 0.0
		if p.Latitude != nil {
			lat = *p.Latitude
		}
		season[seasonIndex(local.Month(), lat)]++
	}
	out := TemporalPattern{
		Total:     total,
		TimeOfDay: buckets(timeOfDayLabels, tod),
		DayOfWeek: buckets(dayOfWeekLabels, dow),
		Season:    buckets(seasonLabels, season),
	}
	if total > 0 {
		out.PeakTimeOfDay = peak(out.TimeOfDay)
		out.PeakDayOfWeek = peak(out.DayOfWeek)
		out.PeakSeason = peak(out.Season)
	}
	return out
}

// localTime shifts UTC by the mean solar offset of the report's longitude. Reports
// without coordinates stay in UTC.
func localTime(p repos.ReportPoint) time.Time {
	t := p.OccurredAt.UTC()
	if p.Longitude == nil {
		return t
	}
	offset := time.Duration(*p.Longitude / 15 * float64(time.Hour))
	return t.Add(offset)
}

// seasonIndex uses meteorological seasons, flipped south of the equator.
func seasonIndex(m time.Month, lat float64) int {
	var idx int
	switch m {
	case time.December, time.January, time.February:
		idx = 0
	case time.March, time.April, time.May:
		idx = 1
	case time.June, time.July, time.August:
		idx = 2
	default:
		idx = 3
	}
	if lat < 0 {
		idx = (idx + 2) % 4
	}
	return idx
}

func buckets(labels []string, counts []int) []Bucket {
	pcts := percentages(counts)
	out := make([]Bucket, len(labels))
	for i, l := range labels {
		out[i] = Bucket{Label: l, Count: counts[i], Percentage: pcts[i]}
	}
	return out
}

func peak(bs []Bucket) string {
	best := -1
	for i, b := range bs {
		if best < 0 || b.Count > bs[best].Count {
			best = i
		}
	}
	if best < 0 || bs[best].Count == 0 {
		return ""
	}
	return bs[best].Label
}
