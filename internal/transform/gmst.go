package transform

import "math"

// j2000 is the Julian Date of the J2000.0 epoch.
const j2000 = 2451545.0

// GMST returns Greenwich Mean Sidereal Time in radians for a Julian date,
// using the IAU-82 model (Vallado Eq 3-47). UT1 is taken to equal UTC.
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
func GMST(jd float64) float64 {
	tUT1 := (jd - j2000) / 36525.0

	// Seconds of time; 876600h = 3155760000 s.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2.0 * math.Pi
}
