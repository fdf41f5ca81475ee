package transform

import (
	"math"

	"github.com/Danselem/dara-opsc/internal/geo"
)

// WGS-84 ellipsoid, km.
const (
	wgs84A  = 6378.137
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// Station is a ground observer with its ECEF position precomputed, so one
// station can be reused across every sample of a pass.
type Station struct {
	latRad, lonRad float64
	ecef           Vector
}

// LookAngles holds azimuth, elevation and slant range from a station to a
// satellite.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
}

// NewStation places an observer on the WGS-84 ellipsoid.
func NewStation(o geo.Observer) Station {
	lat := o.LatDeg * deg2rad
	lon := o.LonDeg * deg2rad
	altKm := o.ElevationM / 1000.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Station{
		latRad: lat,
		lonRad: lon,
		ecef: Vector{
			X: (n + altKm) * cosLat * math.Cos(lon),
			Y: (n + altKm) * cosLat * math.Sin(lon),
			Z: (n*(1-wgs84E2) + altKm) * sinLat,
		},
	}
}

// ECEF returns the station position in km.
func (s Station) ECEF() Vector {
	return s.ecef
}

// LookAngles computes azimuth, elevation and range to a satellite at ECEF
// position sat (km), via the SEZ rotation of Vallado Section 4.4.
func (s Station) LookAngles(sat Vector) LookAngles {
	rx := sat.X - s.ecef.X
	ry := sat.Y - s.ecef.Y
	rz := sat.Z - s.ecef.Z

	sinLat := math.Sin(s.latRad)
	cosLat := math.Cos(s.latRad)
	sinLon := math.Sin(s.lonRad)
	cosLon := math.Cos(s.lonRad)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rng := math.Sqrt(south*south + east*east + zenith*zenith)

	// North is -South in SEZ.
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * rad2deg,
		ElevationDeg: math.Asin(zenith/rng) * rad2deg,
		RangeKm:      rng,
	}
}

// ECEFToGeodetic converts an ECEF position (km) to the WGS-84 subpoint with
// height in km. Longitude is in (-180, 180].
func ECEFToGeodetic(r Vector) geo.Subpoint {
	lon := math.Atan2(r.Y, r.X)
	p := math.Hypot(r.X, r.Y)

	// Bowring start, then fixed-point iteration; converges in 2-3 steps for
	// orbital altitudes.
	lat := math.Atan2(r.Z, p*(1-wgs84E2))
	for range 5 {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(r.Z+wgs84E2*n*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(r.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return geo.Subpoint{
		LatDeg: lat * rad2deg,
		LonDeg: lon * rad2deg,
		AltKm:  alt,
	}
}
