package geo

import (
	"math"
	"testing"
)

func TestHaversine_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lon1      float64
		lat2      float64
		lon2      float64
		wantM     float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 25.033, lon1: 121.565,
			lat2: 25.033, lon2: 121.565,
			wantM:     0,
			tolerance: 1e-6,
		},
		{
			name: "reading to greenwich meridian",
			lat1: 51.45, lon1: -0.97,
			lat2: 51.0, lon2: 0.0,
			wantM:     84061.5,
			tolerance: 1,
		},
		{
			name: "one degree of longitude on the equator",
			lat1: 0, lon1: 0,
			lat2: 0, lon2: 1,
			wantM:     EarthRadiusMeters * math.Pi / 180,
			tolerance: 1e-6,
		},
		{
			name: "antipodal points",
			lat1: 0, lon1: 0,
			lat2: 0, lon2: 180,
			wantM:     math.Pi * EarthRadiusMeters,
			tolerance: 1e-6,
		},
		{
			name: "pole to pole",
			lat1: 90, lon1: 0,
			lat2: -90, lon2: 0,
			wantM:     math.Pi * EarthRadiusMeters,
			tolerance: 1e-6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.IsNaN(got) {
				t.Fatalf("Haversine() = NaN")
			}
			if math.Abs(got-tt.wantM) > tt.tolerance {
				t.Errorf("Haversine() = %f, want %f (±%f)", got, tt.wantM, tt.tolerance)
			}
		})
	}
}

func TestHaversine_Symmetry(t *testing.T) {
	d1 := Haversine(25.0, 121.0, 26.0, 122.0)
	d2 := Haversine(26.0, 122.0, 25.0, 121.0)
	if math.Abs(d1-d2) > 1e-6 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestHaversine_LongitudeModulo360(t *testing.T) {
	d1 := Haversine(40, -100, 41, -99)
	d2 := Haversine(40, 260, 41, 261)
	d3 := Haversine(40, -100, 41, 621)
	if math.Abs(d1-d2) > 1e-6 || math.Abs(d1-d3) > 1e-6 {
		t.Errorf("longitude not interpreted modulo 360: %f, %f, %f", d1, d2, d3)
	}
}

func TestHaversine_NaNPropagates(t *testing.T) {
	if got := Haversine(math.NaN(), 0, 0, 0); !math.IsNaN(got) {
		t.Errorf("Haversine(NaN) = %f, want NaN", got)
	}
	if got := Haversine(0, math.Inf(1), 0, 0); !math.IsNaN(got) {
		t.Errorf("Haversine(Inf) = %f, want NaN", got)
	}
}

func TestValidLatitude(t *testing.T) {
	cases := map[float64]bool{
		-90:        true,
		90:         true,
		0:          true,
		90.0001:    false,
		-91:        false,
		math.NaN(): true,
	}
	for lat, want := range cases {
		if got := ValidLatitude(lat); got != want {
			t.Errorf("ValidLatitude(%v) = %v, want %v", lat, got, want)
		}
	}
}

func TestNormLon(t *testing.T) {
	if got := NormLon(262.5); got != -97.5 {
		t.Errorf("NormLon(262.5) = %v, want -97.5", got)
	}
	if got := NormLon(-97.5); got != -97.5 {
		t.Errorf("NormLon(-97.5) = %v, want -97.5", got)
	}
}
