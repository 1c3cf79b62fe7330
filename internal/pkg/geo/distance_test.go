package geo

import (
	"math"
	"testing"
)

func TestDistanceKm_SamePoint(t *testing.T) {
	if d := DistanceKm(-6.2, 106.8, -6.2, 106.8); d != 0 {
		t.Fatalf("expected 0 for same point, got %f", d)
	}
}

func TestDistanceKm_KnownPairs(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolKm                  float64
	}{
		// Monas (Jakarta) -> Gedung Sate (Bandung)
		{"jakarta-bandung", -6.1754, 106.8272, -6.9025, 107.6186, 120, 10},
		// Tugu Yogyakarta -> Alun-Alun Solo
		{"yogyakarta-solo", -7.7829, 110.3671, -7.5755, 110.8243, 55, 5},
		// 赤道上经度差 1 度约 111.19 公里
		{"one-degree-equator", 0, 0, 0, 1, 111.19, 0.1},
	}
	for _, tc := range cases {
		got := DistanceKm(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
		if math.Abs(got-tc.wantKm) > tc.tolKm {
			t.Fatalf("%s: expected ~%f km, got %f", tc.name, tc.wantKm, got)
		}
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	d1 := DistanceKm(-6.2, 106.8, -7.8, 110.4)
	d2 := DistanceKm(-7.8, 110.4, -6.2, 106.8)
	if math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", d1, d2)
	}
}
