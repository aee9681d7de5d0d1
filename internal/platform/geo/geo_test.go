package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	cases := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{"same point", Point{33.45, -112.07}, Point{33.45, -112.07}, 0, 1e-9},
		{"phoenix to tucson", Point{33.4484, -112.0740}, Point{32.2226, -110.9747}, 171, 3},
		{"one degree of latitude", Point{0, 0}, Point{1, 0}, 111.2, 0.2},
		{"antipodes", Point{0, 0}, Point{0, 180}, math.Pi * EarthRadiusKm, 1e-6},
	}
	for _, tc := range cases {
		if got := HaversineKm(tc.a, tc.b); math.Abs(got-tc.want) > tc.tol {
			t.Errorf("%s: got %.3f, want %.3f±%.3f", tc.name, got, tc.want, tc.tol)
		}
	}
}

func TestCentroidAcrossAntimeridian(t *testing.T) {
	c := Centroid([]Point{{10, 179}, {10, -179}})
	if math.Abs(math.Abs(c.Lng)-180) > 1e-6 || math.Abs(c.Lat-10) > 0.01 {
		t.Fatalf("centroid = %+v", c)
	}
	if got := Centroid(nil); got != (Point{}) {
		t.Fatalf("empty centroid = %+v", got)
	}
}
