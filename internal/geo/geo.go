// Package geo holds the ground-side geometry shared by the pass and footprint
// engines: geodetic points, observers, great-circle distance and the Sun's
// elevation at a point.
package geo

import (
	"math"

	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
)

// EarthRadiusKm is the mean spherical Earth radius used for ground distances.
const EarthRadiusKm = 6371.0

const deg2rad = math.Pi / 180.0

// Point is a geodetic latitude/longitude pair in degrees.
type Point struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
}

// Subpoint is the point on the ellipsoid directly below a satellite, with the
// satellite's height above it.
type Subpoint struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	AltKm  float64 `json:"alt_km"`
}

// Point drops the altitude.
func (s Subpoint) Point() Point {
	return Point{LatDeg: s.LatDeg, LonDeg: s.LonDeg}
}

// Observer is a fixed ground station.
type Observer struct {
	LatDeg     float64 `json:"latitude_deg" mapstructure:"latitude"`
	LonDeg     float64 `json:"longitude_deg" mapstructure:"longitude"`
	ElevationM float64 `json:"elevation_m" mapstructure:"elevation_m"`
}

// Valid reports whether the observer's coordinates are finite and in range.
func (o Observer) Valid() bool {
	for _, v := range []float64{o.LatDeg, o.LonDeg, o.ElevationM} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return o.LatDeg >= -90 && o.LatDeg <= 90 && o.LonDeg >= -180 && o.LonDeg <= 360
}

// Haversine returns the great-circle distance in km between a and b on a sphere
// of radius EarthRadiusKm.
func Haversine(a, b Point) float64 {
	lat1 := a.LatDeg * deg2rad
	lat2 := b.LatDeg * deg2rad
	dLat := lat2 - lat1
	dLon := (b.LonDeg - a.LonDeg) * deg2rad

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h a hair past 1 for antipodal points.
	h = math.Min(1, h)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// SunElevation returns the apparent elevation of the Sun's centre in degrees,
// seen from p at Julian date jd. Refraction is ignored.
func SunElevation(jd float64, p Point) float64 {
	ra, dec := solar.ApparentEquatorial(jd)
	gast := sidereal.Apparent(jd).Angle().Rad()

	lat := p.LatDeg * deg2rad
	hourAngle := gast + p.LonDeg*deg2rad - ra.Rad()

	sinEl := math.Sin(lat)*dec.Sin() + math.Cos(lat)*dec.Cos()*math.Cos(hourAngle)
	return math.Asin(math.Max(-1, math.Min(1, sinEl))) / deg2rad
}
