// Package transform turns SGP4 state vectors into ground-referenced geometry.
//
// SGP4 reports positions in TEME (True Equator Mean Equinox). Rotating by GMST
// gives the pseudo Earth-fixed frame, which is treated as ECEF: polar motion and
// the equation of the equinoxes are ignored, an error of tens of metres that is
// well below what a pass table or footprint needs.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3-4.
package transform

import "math"

// Vector is a Cartesian position in km.
type Vector struct {
	X, Y, Z float64
}

// Norm returns the vector's length.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Lerp interpolates linearly between v and w; f=0 gives v, f=1 gives w.
func (v Vector) Lerp(w Vector, f float64) Vector {
	return Vector{
		X: v.X + (w.X-v.X)*f,
		Y: v.Y + (w.Y-v.Y)*f,
		Z: v.Z + (w.Z-v.Z)*f,
	}
}

// TEMEToECEF rotates a TEME position about Z by the given GMST angle (radians):
// r_ECEF = R3(θ) * r_TEME.
func TEMEToECEF(teme Vector, gmst float64) Vector {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)
	return Vector{
		X: teme.X*cosG + teme.Y*sinG,
		Y: -teme.X*sinG + teme.Y*cosG,
		Z: teme.Z,
	}
}

// Orbit radius bounds accepted by ValidRadius, in km.
const (
	minRadiusKm = 6200.0
	maxRadiusKm = 50000.0
)

// ValidRadius reports whether a position is finite and lies between just
// below the Earth's surface and beyond geostationary altitude. Decayed or
// diverged SGP4 solutions fail this check.
func ValidRadius(r Vector) bool {
	for _, c := range []float64{r.X, r.Y, r.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	mag := r.Norm()
	return mag >= minRadiusKm && mag <= maxRadiusKm
}
