// Package propagation answers "where is this satellite at this instant" for the
// geometry engines.
//
// The engines depend only on the Propagator interface. SGP4 is the production
// implementation, built on github.com/joshuaferrara/go-satellite.
package propagation

import (
	"fmt"
	"time"

	"github.com/Danselem/dara-opsc/internal/geo"
	"github.com/Danselem/dara-opsc/internal/timeconv"
	"github.com/Danselem/dara-opsc/internal/tle"
	"github.com/Danselem/dara-opsc/internal/transform"
)

// Propagator computes satellite geometry for a TLE at an instant. Calls are
// deterministic and safe for concurrent use.
type Propagator interface {
	// Subpoint returns the geodetic point below the satellite and its altitude.
	Subpoint(t tle.TLE, at timeconv.Instant) (geo.Subpoint, error)
	// Topocentric returns azimuth, elevation and range from the observer.
	Topocentric(t tle.TLE, obs geo.Observer, at timeconv.Instant) (transform.LookAngles, error)
}

// Error is a propagation failure for one satellite at one instant. Err is the
// cause as reported by the TLE checks or the SGP4 model.
type Error struct {
	Satellite string
	At        time.Time
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("propagating %s at %s: %v", e.Satellite, e.At.UTC().Format(time.RFC3339Nano), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
