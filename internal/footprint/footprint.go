// Package footprint implements the footprint metrics engine: the ground
// geometry covered by one pushbroom capture, derived from its first, middle
// and last scan lines.
package footprint

import (
	"encoding/json"
	"errors"
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

// ErrInvalidProjection is returned for a non-positive image width or a scan
// angle outside [0, 180) degrees.
var ErrInvalidProjection = errors.New("invalid projection config")

// Projection describes the imager: pixels per scan line and the full
// across-track scan angle. A zero scan angle means the swath is unknown.
type Projection struct {
	ImageWidth   int     `json:"image_width"`
	ScanAngleDeg float64 `json:"scan_angle"`
}

// Validate checks the projection before any propagation happens.
func (p Projection) Validate() error {
	if p.ImageWidth <= 0 {
		return fmt.Errorf("%w: image_width %d", ErrInvalidProjection, p.ImageWidth)
	}
	if math.IsNaN(p.ScanAngleDeg) || p.ScanAngleDeg < 0 || p.ScanAngleDeg >= 180 {
		return fmt.Errorf("%w: scan_angle %v", ErrInvalidProjection, p.ScanAngleDeg)
	}
	return nil
}

// AcrossTrack is the swath-dependent part of a footprint. It exists only when
// the imager's scan angle is known.
type AcrossTrack struct {
	SwathKm       float64
	PixelSizeM    float64
	GroundAreaKm2 float64
	PixelAreaKm2  float64
	FOVDeg        float64
}

// Metrics is the footprint of one capture. AcrossTrack is nil when the scan
// angle is zero; no rounding is applied.
type Metrics struct {
	ImageWidthPx         int
	ImageHeightPx        int
	MidDatetime          string
	MidSubpoint          geo.Subpoint
	FirstSubpoint        geo.Point
	LastSubpoint         geo.Point
	AlongTrackLengthKm   float64
	AlongTrackPixelSizeM float64
	AcrossTrack          *AcrossTrack
	MidSunElevationDeg   float64
}

// HasAcrossTrack reports whether the swath-dependent group is populated.
func (m *Metrics) HasAcrossTrack() bool {
	return m.AcrossTrack != nil
}

// metricsJSON is the flat wire form. The five across-track keys are written
// as null together when the group is absent.
type metricsJSON struct {
	ImageWidthPx          int          `json:"image_width_px"`
	ImageHeightPx         int          `json:"image_height_px"`
	MidDatetime           string       `json:"mid_datetime"`
	MidSubpoint           geo.Subpoint `json:"mid_subpoint"`
	FirstSubpoint         geo.Point    `json:"first_subpoint"`
	LastSubpoint          geo.Point    `json:"last_subpoint"`
	AlongTrackLengthKm    float64      `json:"along_track_length_km"`
	AlongTrackPixelSizeM  float64      `json:"along_track_pixel_size_m"`
	AcrossTrackSwathKm    *float64     `json:"across_track_swath_km"`
	AcrossTrackPixelSizeM *float64     `json:"across_track_pixel_size_m"`
	TotalGroundAreaKm2    *float64     `json:"total_ground_area_km2"`
	PerPixelAreaKm2       *float64     `json:"per_pixel_area_km2"`
	FOVDeg                *float64     `json:"fov_deg"`
	MidSunElevationDeg    float64      `json:"mid_sun_elevation_deg"`
}

func (m Metrics) MarshalJSON() ([]byte, error) {
	w := metricsJSON{
		ImageWidthPx:         m.ImageWidthPx,
		ImageHeightPx:        m.ImageHeightPx,
		MidDatetime:          m.MidDatetime,
		MidSubpoint:          m.MidSubpoint,
		FirstSubpoint:        m.FirstSubpoint,
		LastSubpoint:         m.LastSubpoint,
		AlongTrackLengthKm:   m.AlongTrackLengthKm,
		AlongTrackPixelSizeM: m.AlongTrackPixelSizeM,
		MidSunElevationDeg:   m.MidSunElevationDeg,
	}
	if a := m.AcrossTrack; a != nil {
		w.AcrossTrackSwathKm = &a.SwathKm
		w.AcrossTrackPixelSizeM = &a.PixelSizeM
		w.TotalGroundAreaKm2 = &a.GroundAreaKm2
		w.PerPixelAreaKm2 = &a.PixelAreaKm2
		w.FOVDeg = &a.FOVDeg
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the across-track keys only all present or all null.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var w metricsJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Metrics{
		ImageWidthPx:         w.ImageWidthPx,
		ImageHeightPx:        w.ImageHeightPx,
		MidDatetime:          w.MidDatetime,
		MidSubpoint:          w.MidSubpoint,
		FirstSubpoint:        w.FirstSubpoint,
		LastSubpoint:         w.LastSubpoint,
		AlongTrackLengthKm:   w.AlongTrackLengthKm,
		AlongTrackPixelSizeM: w.AlongTrackPixelSizeM,
		MidSunElevationDeg:   w.MidSunElevationDeg,
	}

	group := []*float64{w.AcrossTrackSwathKm, w.AcrossTrackPixelSizeM, w.TotalGroundAreaKm2, w.PerPixelAreaKm2, w.FOVDeg}
	set := 0
	for _, v := range group {
		if v != nil {
			set++
		}
	}
	switch set {
	case 0:
		return nil
	case len(group):
		m.AcrossTrack = &AcrossTrack{
			SwathKm:       *w.AcrossTrackSwathKm,
			PixelSizeM:    *w.AcrossTrackPixelSizeM,
			GroundAreaKm2: *w.TotalGroundAreaKm2,
			PixelAreaKm2:  *w.PerPixelAreaKm2,
			FOVDeg:        *w.FOVDeg,
		}
		return nil
	default:
		return fmt.Errorf("across-track fields must be all set or all null, got %d of %d", set, len(group))
	}
}

// Engine computes footprint metrics. It holds no per-call state.
type Engine struct {
	prop   propagation.Propagator
	logger *slog.Logger
}

// NewEngine creates a footprint metrics engine.
func NewEngine(prop propagation.Propagator, logger *slog.Logger) *Engine {
	return &Engine{prop: prop, logger: logger}
}

// Compute derives the footprint of a capture whose scan lines were taken at
// timestamps. Every entry counts towards the image height; only the first and
// last are propagated, and both must be valid. The mid time is their mean,
// not the median sample. No partial result is returned on error.
func (e *Engine) Compute(t tle.TLE, timestamps []float64, proj Projection) (m *Metrics, err error) {
	defer func() { metrics.RecordRun("footprint", err) }()

	if len(timestamps) == 0 {
		return nil, timeconv.ErrEmptyTimestampSeries
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := proj.Validate(); err != nil {
		return nil, err
	}

	firstTS, lastTS := timestamps[0], timestamps[len(timestamps)-1]
	first, err := timeconv.Normalize(firstTS)
	if err != nil {
		return nil, fmt.Errorf("first timestamp: %w", err)
	}
	last, err := timeconv.Normalize(lastTS)
	if err != nil {
		return nil, fmt.Errorf("last timestamp: %w", err)
	}
	mid, err := timeconv.Normalize(0.5 * (firstTS + lastTS))
	if err != nil {
		return nil, fmt.Errorf("mid timestamp: %w", err)
	}

	start := time.Now()
	subMid, err := e.prop.Subpoint(t, mid)
	if err != nil {
		return nil, err
	}
	sub0, err := e.prop.Subpoint(t, first)
	if err != nil {
		return nil, err
	}
	subN, err := e.prop.Subpoint(t, last)
	if err != nil {
		return nil, err
	}

	height := len(timestamps)
	alongKm := geo.Haversine(sub0.Point(), subN.Point())
	alongPixM := alongKm * 1000.0 / float64(height)

	m = &Metrics{
		ImageWidthPx:         proj.ImageWidth,
		ImageHeightPx:        height,
		MidDatetime:          mid.ISO(),
		MidSubpoint:          subMid,
		FirstSubpoint:        sub0.Point(),
		LastSubpoint:         subN.Point(),
		AlongTrackLengthKm:   alongKm,
		AlongTrackPixelSizeM: alongPixM,
		MidSunElevationDeg:   geo.SunElevation(mid.JD, subMid.Point()),
	}

	if proj.ScanAngleDeg > 0 {
		swathKm := 2.0 * subMid.AltKm * math.Tan(proj.ScanAngleDeg/2.0*math.Pi/180.0)
		acrossPixM := swathKm * 1000.0 / float64(proj.ImageWidth)
		m.AcrossTrack = &AcrossTrack{
			SwathKm:       swathKm,
			PixelSizeM:    acrossPixM,
			GroundAreaKm2: swathKm * alongKm,
			PixelAreaKm2:  alongPixM * acrossPixM / 1e6,
			FOVDeg:        proj.ScanAngleDeg,
		}
	}

	metrics.RecordSamples("footprint", height, 0)
	e.logger.Debug("footprint computed",
		"satellite", t.DisplayName(),
		"image_height_px", height,
		"along_track_km", alongKm,
		"across_track", m.HasAcrossTrack(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return m, nil
}
