package propagation

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/Danselem/dara-opsc/internal/geo"
	"github.com/Danselem/dara-opsc/internal/metrics"
	"github.com/Danselem/dara-opsc/internal/timeconv"
	"github.com/Danselem/dara-opsc/internal/tle"
	"github.com/Danselem/dara-opsc/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Propagate() takes the Satellite by value, so SGP4 error codes raised during
// propagation are not visible to the caller. Failures are detected by checking
// the output for NaN/Inf and unreasonable magnitudes instead.
//
// The library also only accepts whole seconds. Fractional instants are served
// by propagating the two bracketing seconds and interpolating linearly; over
// one second a LEO arc departs from its chord by a few metres at most.

// ErrDiverged is returned when SGP4 output is not a plausible Earth orbit.
var ErrDiverged = errors.New("sgp4 solution diverged")

// maxCachedSatellites bounds the satellite cache of a long-running process.
const maxCachedSatellites = 1024

// satCache maps TLE keys to initialised satellites. Immutable once published;
// a miss publishes a copy with the new entry.
type satCache map[string]*satellite.Satellite

// SGP4 is the production Propagator. Each distinct TLE is initialised once
// and reused for every later call.
type SGP4 struct {
	logger *slog.Logger
	cache  atomic.Pointer[satCache]
	mu     sync.Mutex // serializes cache inserts
}

// NewSGP4 returns an SGP4 propagator with an empty satellite cache.
func NewSGP4(logger *slog.Logger) *SGP4 {
	return &SGP4{logger: logger}
}

// Subpoint implements Propagator.
func (p *SGP4) Subpoint(t tle.TLE, at timeconv.Instant) (geo.Subpoint, error) {
	start := time.Now()
	r, err := p.ecef(t, at)
	metrics.RecordPropagation(time.Since(start), err != nil)
	if err != nil {
		return geo.Subpoint{}, err
	}
	return transform.ECEFToGeodetic(r), nil
}

// Topocentric implements Propagator.
func (p *SGP4) Topocentric(t tle.TLE, obs geo.Observer, at timeconv.Instant) (transform.LookAngles, error) {
	start := time.Now()
	r, err := p.ecef(t, at)
	metrics.RecordPropagation(time.Since(start), err != nil)
	if err != nil {
		return transform.LookAngles{}, err
	}
	return transform.NewStation(obs).LookAngles(r), nil
}

// ecef returns the satellite's Earth-fixed position in km.
func (p *SGP4) ecef(t tle.TLE, at timeconv.Instant) (transform.Vector, error) {
	sat, err := p.satellite(t)
	if err != nil {
		return transform.Vector{}, &Error{Satellite: t.DisplayName(), At: at.UTC, Err: err}
	}

	whole := at.UTC.Truncate(time.Second)
	r, err := propagate(sat, whole)
	if err == nil {
		if frac := at.UTC.Sub(whole).Seconds(); frac > 0 {
			var next transform.Vector
			next, err = propagate(sat, whole.Add(time.Second))
			r = r.Lerp(next, frac)
		}
	}
	if err != nil {
		return transform.Vector{}, &Error{Satellite: t.DisplayName(), At: at.UTC, Err: err}
	}

	return transform.TEMEToECEF(r, transform.GMST(at.JD)), nil
}

// satellite returns the initialised SGP4 state for t, building it on first use
// (double-checked locking).
func (p *SGP4) satellite(t tle.TLE) (*satellite.Satellite, error) {
	key := t.Key()
	if c := p.cache.Load(); c != nil {
		if sat, ok := (*c)[key]; ok {
			return sat, nil
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var current satCache
	if c := p.cache.Load(); c != nil {
		if sat, ok := (*c)[key]; ok {
			return sat, nil
		}
		current = *c
	}

	sat, err := initSatellite(t)
	if err != nil {
		return nil, err
	}

	next := make(satCache, len(current)+1)
	if len(current) < maxCachedSatellites {
		for k, v := range current {
			next[k] = v
		}
	} else {
		p.logger.Info("sgp4 satellite cache full, resetting", "entries", len(current))
	}
	next[key] = sat
	p.cache.Store(&next)
	metrics.SetSGP4CacheSize(len(next))

	p.logger.Debug("sgp4 satellite initialised", "satellite", t.DisplayName(), "cached", len(next))
	return sat, nil
}

// initSatellite validates and parses the element set. go-satellite calls
// log.Fatal on input it cannot parse, so the line checks run first.
func initSatellite(t tle.TLE) (*satellite.Satellite, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := tle.CheckLines(t.Line1, t.Line2); err != nil {
		return nil, err
	}

	sat := satellite.TLEToSat(strings.TrimSpace(t.Line1), strings.TrimSpace(t.Line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed: code=%d %s", sat.Error, sat.ErrorStr)
	}
	return &sat, nil
}

// propagate runs SGP4 at a whole-second UTC time and returns the TEME
// position in km.
func propagate(sat *satellite.Satellite, t time.Time) (transform.Vector, error) {
	pos, _ := satellite.Propagate(*sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	r := transform.Vector{X: pos.X, Y: pos.Y, Z: pos.Z}
	if !transform.ValidRadius(r) {
		return transform.Vector{}, fmt.Errorf("%w: position magnitude %.1f km", ErrDiverged, r.Norm())
	}
	return r, nil
}
