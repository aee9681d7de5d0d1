package patterns

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
	"github.com/yungbote/patternlens-backend/internal/platform/geo"
)

type Cluster struct {
	Center    geo.Point   `json:"center"`
	Count     int         `json:"count"`
	RadiusKm  float64     `json:"radiusKm"`
	ReportIDs []uuid.UUID `json:"reportIds"`
}

type GeoSummary struct {
	RadiusKm float64   `json:"radiusKm"`
	Located  int       `json:"located"`
	Unplaced int       `json:"unplaced"`
	Clusters []Cluster `json:"clusters"`
}

// GeographicClusters groups located reports carrying kv. Each report joins the first
// cluster whose leader lies within radiusKm, otherwise it leads a new cluster.
func (e *Engine) GeographicClusters(ctx context.Context, kv repos.KeyValue, radiusKm float64) (GeoSummary, error) {
	kv, err := normalize(kv)
	if err != nil {
		return GeoSummary{}, err
	}
	if radiusKm < 0 {
		return GeoSummary{}, apierr.Validation("radiusKm must be positive")
	}
	if radiusKm == 0 {
		radiusKm = e.cfg.RadiusKm
	}
	return cached(ctx, e, cacheKey("geo", kv, radiusKm), func() (GeoSummary, error) {
		points, err := e.deps.Extracted.ReportPointsWith(ctx, nil, kv)
		if err != nil {
			return GeoSummary{}, err
		}
		return clusterPoints(points, radiusKm), nil
	})
}

func clusterPoints(points []repos.ReportPoint, radiusKm float64) GeoSummary {
	out := GeoSummary{RadiusKm: radiusKm, Clusters: []Cluster{}}
	type group struct {
		leader  geo.Point
		members []geo.Point
		ids     []uuid.UUID
	}
	var groups []*group
	for _, p := range points {
		if p.Latitude == nil || p.Longitude == nil {
			out.Unplaced++
			continue
		}
		pt := geo.Point{Lat: *p.Latitude, Lng: *p.Longitude}
		if !geo.Valid(pt) {
			out.Unplaced++
			continue
		}
		out.Located++
		var home *group
		for _, g := range groups {
			if geo.HaversineKm(g.leader, pt) <= radiusKm {
				home = g
				break
			}
		}
		if home == nil {
			home = &group{leader: pt}
			groups = append(groups, home)
		}
		home.members = append(home.members, pt)
		home.ids = append(home.ids, p.ReportID)
	}
	for _, g := range groups {
		center := geo.Centroid(g.members)
		spread := 0.0
		for _, m := range g.members {
			spread = max(spread, geo.HaversineKm(center, m))
		}
		out.Clusters = append(out.Clusters, Cluster{
			Center:    geo.Point{Lat: round(center.Lat, 5), Lng: round(center.Lng, 5)},
			Count:     len(g.members),
			RadiusKm:  round(spread, 2),
			ReportIDs: g.ids,
		})
	}
	sort.SliceStable(out.Clusters, func(i, j int) bool {
		return out.Clusters[i].Count > out.Clusters[j].Count
	})
	return out
}
