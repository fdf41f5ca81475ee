package geo

import (
	"math"
	"testing"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{"same point", Point{-20.28, 57.55}, Point{-20.28, 57.55}, 0, 1e-9},
		{"one degree of latitude", Point{0, 0}, Point{1, 0}, EarthRadiusKm * math.Pi / 180, 1e-6},
		{"one degree of longitude at equator", Point{0, 10}, Point{0, 11}, EarthRadiusKm * math.Pi / 180, 1e-6},
		{"quarter meridian", Point{0, 0}, Point{90, 0}, EarthRadiusKm * math.Pi / 2, 1e-6},
		{"antipodes", Point{0, 0}, Point{0, 180}, EarthRadiusKm * math.Pi, 1e-6},
		{"across dateline", Point{0, 179.5}, Point{0, -179.5}, EarthRadiusKm * math.Pi / 180, 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("Haversine(%v, %v) = %.9f, want %.9f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestHaversineSymmetric(t *testing.T) {
	a := Point{LatDeg: -20.28333333, LonDeg: 57.55}
	b := Point{LatDeg: 51.5, LonDeg: -0.12}
	if ab, ba := Haversine(a, b), Haversine(b, a); math.Abs(ab-ba) > 1e-9 {
		t.Errorf("Haversine not symmetric: %v vs %v", ab, ba)
	}
}

func TestSunElevation(t *testing.T) {
	// Near the March 2025 equinox the Sun transits the Greenwich meridian
	// close to the zenith of (0, 0).
	noon := julian.TimeToJD(time.Date(2025, 3, 20, 12, 7, 0, 0, time.UTC))
	if el := SunElevation(noon, Point{0, 0}); el < 85 {
		t.Errorf("equinox noon elevation at (0,0) = %.2f, want > 85", el)
	}
	if el := SunElevation(noon, Point{0, 180}); el > -85 {
		t.Errorf("equinox midnight elevation at (0,180) = %.2f, want < -85", el)
	}

	// Six hours off transit the Sun sits on the horizon.
	dusk := julian.TimeToJD(time.Date(2025, 3, 20, 18, 7, 0, 0, time.UTC))
	if el := SunElevation(dusk, Point{0, 0}); math.Abs(el) > 3 {
		t.Errorf("equinox dusk elevation = %.2f, want ~0", el)
	}

	// Polar night.
	midwinter := julian.TimeToJD(time.Date(2025, 12, 21, 12, 0, 0, 0, time.UTC))
	if el := SunElevation(midwinter, Point{80, 0}); el > 0 {
		t.Errorf("December sun at 80N = %.2f, want below horizon", el)
	}
}

func TestObserverValid(t *testing.T) {
	if !(Observer{LatDeg: -20.28333333, LonDeg: 57.55}).Valid() {
		t.Error("default observer should be valid")
	}
	if (Observer{LatDeg: 91}).Valid() {
		t.Error("latitude 91 should be invalid")
	}
	if (Observer{LatDeg: math.NaN()}).Valid() {
		t.Error("NaN latitude should be invalid")
	}
}
