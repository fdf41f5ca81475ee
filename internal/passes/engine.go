// Package passes implements the pass geometry engine: for each capture
// timestamp it reports where the satellite appears in the observer's sky and
// where its ground point lies.
package passes

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Danselem/dara-opsc/internal/geo"
	"github.com/Danselem/dara-opsc/internal/metrics"
	"github.com/Danselem/dara-opsc/internal/propagation"
	"github.com/Danselem/dara-opsc/internal/timeconv"
	"github.com/Danselem/dara-opsc/internal/tle"
)

// Record is one pass sample. Field names on the wire are the column headers
// downstream tabular tools expect.
type Record struct {
	Timestamp    string  `json:"Timestamp"`
	AzimuthDeg   float64 `json:"Azimuth (deg)"`
	ElevationDeg float64 `json:"Elevation (deg)"`
	DistanceKm   float64 `json:"Distance (km)"`
	LatDeg       float64 `json:"Lat (deg)"`
	LonDeg       float64 `json:"Lon (deg)"`
}

// Columns lists the record fields in wire order.
var Columns = []string{"Timestamp", "Azimuth (deg)", "Elevation (deg)", "Distance (km)", "Lat (deg)", "Lon (deg)"}

// Engine computes pass geometry. It holds no per-call state.
type Engine struct {
	prop   propagation.Propagator
	pool   *propagation.WorkerPool
	logger *slog.Logger
}

// NewEngine creates a pass geometry engine. Samples are evaluated on pool.
func NewEngine(prop propagation.Propagator, pool *propagation.WorkerPool, logger *slog.Logger) *Engine {
	return &Engine{prop: prop, pool: pool, logger: logger}
}

type sample struct {
	index int // position in the input series
	at    timeconv.Instant
}

// Compute returns one record per valid timestamp, in input order.
//
// Timestamps that are not finite non-negative numbers (NaN stands in for
// non-numeric input) are skipped; if every sample is skipped the result is
// empty, not an error. Valid timestamps are truncated to the whole second.
// Any propagation failure aborts the call.
func (e *Engine) Compute(ctx context.Context, t tle.TLE, obs geo.Observer, timestamps []float64) (recs []Record, err error) {
	defer func() { metrics.RecordRun("pass", err) }()

	if err := t.Validate(); err != nil {
		return nil, err
	}
	if len(timestamps) == 0 {
		return nil, timeconv.ErrEmptyTimestampSeries
	}

	start := time.Now()
	samples := make([]sample, 0, len(timestamps))
	for i, ts := range timestamps {
		if _, err := timeconv.Normalize(ts); err != nil {
			e.logger.Warn("skipping pass sample", "index", i, "error", err)
			continue
		}
		at, _ := timeconv.Normalize(math.Trunc(ts))
		samples = append(samples, sample{index: i, at: at})
	}
	skipped := len(timestamps) - len(samples)

	recs = make([]Record, len(samples))
	errs := make([]error, len(samples))
	runErr := e.pool.Run(ctx, len(samples), func(i int) {
		recs[i], errs[i] = e.observe(t, obs, samples[i].at)
	})
	if runErr != nil {
		return nil, runErr
	}
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("pass sample %d: %w", samples[i].index, err)
		}
	}

	metrics.RecordSamples("pass", len(samples), skipped)
	e.logger.Debug("pass geometry computed",
		"satellite", t.DisplayName(),
		"samples", len(timestamps),
		"records", len(recs),
		"skipped", skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return recs, nil
}

func (e *Engine) observe(t tle.TLE, obs geo.Observer, at timeconv.Instant) (Record, error) {
	look, err := e.prop.Topocentric(t, obs, at)
	if err != nil {
		return Record{}, err
	}
	sp, err := e.prop.Subpoint(t, at)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Timestamp:    at.Label(),
		AzimuthDeg:   round(look.AzimuthDeg, 3),
		ElevationDeg: round(look.ElevationDeg, 3),
		DistanceKm:   round(look.RangeKm, 3),
		LatDeg:       round(sp.LatDeg, 4),
		LonDeg:       round(sp.LonDeg, 4),
	}, nil
}

// round rounds half away from zero to the given number of decimal places.
func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
