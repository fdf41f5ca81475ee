package footprint

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/Danselem/dara-opsc/internal/geo"
	"github.com/Danselem/dara-opsc/internal/propagation"
	"github.com/Danselem/dara-opsc/internal/timeconv"
	"github.com/Danselem/dara-opsc/internal/tle"
	"github.com/Danselem/dara-opsc/internal/transform"
)

const t0 = 1739534400.0 // 2025-02-14 12:00:00 UTC

var testTLE = tle.TLE{
	Name:  "ISS (ZARYA)",
	Line1: "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9996",
	Line2: "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495057",
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// equatorPropagator moves the subpoint east along the equator by 0.01 degree
// per second at a fixed altitude.
type equatorPropagator struct {
	altKm float64
	seen  []float64
}

func (p *equatorPropagator) Subpoint(_ tle.TLE, at timeconv.Instant) (geo.Subpoint, error) {
	p.seen = append(p.seen, at.Unix())
	return geo.Subpoint{LatDeg: 0, LonDeg: (at.Unix() - t0) / 100, AltKm: p.altKm}, nil
}

func (p *equatorPropagator) Topocentric(tle.TLE, geo.Observer, timeconv.Instant) (transform.LookAngles, error) {
	return transform.LookAngles{}, errors.New("not used")
}

func series(n int) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = t0 + float64(i)
	}
	return ts
}

func TestComputeWithScanAngle(t *testing.T) {
	prop := &equatorPropagator{altKm: 500}
	e := NewEngine(prop, testLogger())

	m, err := e.Compute(testTLE, series(100), Projection{ImageWidth: 1000, ScanAngleDeg: 90})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !m.HasAcrossTrack() {
		t.Fatal("across-track group missing with a 90 degree scan")
	}

	wantAlong := geo.EarthRadiusKm * 0.99 * math.Pi / 180
	checks := []struct {
		name      string
		got, want float64
	}{
		{"along_track_length_km", m.AlongTrackLengthKm, wantAlong},
		{"along_track_pixel_size_m", m.AlongTrackPixelSizeM, wantAlong * 1000 / 100},
		{"across_track_swath_km", m.AcrossTrack.SwathKm, 1000},
		{"across_track_pixel_size_m", m.AcrossTrack.PixelSizeM, 1000},
		{"total_ground_area_km2", m.AcrossTrack.GroundAreaKm2, 1000 * wantAlong},
		{"per_pixel_area_km2", m.AcrossTrack.PixelAreaKm2, wantAlong * 10 * 1000 / 1e6},
		{"fov_deg", m.AcrossTrack.FOVDeg, 90},
		{"mid lon", m.MidSubpoint.LonDeg, 0.495},
		{"last lon", m.LastSubpoint.LonDeg, 0.99},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-6*math.Max(1, math.Abs(c.want)) {
			t.Errorf("%s = %.9f, want %.9f", c.name, c.got, c.want)
		}
	}

	if m.ImageWidthPx != 1000 || m.ImageHeightPx != 100 {
		t.Errorf("image = %dx%d, want 1000x100", m.ImageWidthPx, m.ImageHeightPx)
	}
	if m.MidDatetime != "2025-02-14T12:00:49.500000+00:00" {
		t.Errorf("mid_datetime = %q", m.MidDatetime)
	}

	// Only first, mid and last are propagated.
	if len(prop.seen) != 3 {
		t.Errorf("propagator called %d times, want 3", len(prop.seen))
	}
}

func TestComputeWithoutScanAngle(t *testing.T) {
	e := NewEngine(&equatorPropagator{altKm: 500}, testLogger())

	m, err := e.Compute(testTLE, series(10), Projection{ImageWidth: 640})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if m.HasAcrossTrack() {
		t.Error("across-track group populated without a scan angle")
	}
	if m.AlongTrackLengthKm <= 0 {
		t.Errorf("along-track length = %v, want > 0", m.AlongTrackLengthKm)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range acrossTrackKeys {
		if !strings.Contains(string(out), `"`+key+`":null`) {
			t.Errorf("%s not null in %s", key, out)
		}
	}
}

func TestMidIsMeanOfEnds(t *testing.T) {
	e := NewEngine(&equatorPropagator{altKm: 500}, testLogger())

	// Irregular sampling: the median sample is t0+1, the mean of the ends is t0+30.25.
	m, err := e.Compute(testTLE, []float64{t0, t0 + 1, t0 + 2, t0 + 60.5}, Projection{ImageWidth: 10})
	if err != nil {
		t.Fatal(err)
	}
	if m.MidDatetime != "2025-02-14T12:00:30.250000+00:00" {
		t.Errorf("mid_datetime = %q, want 2025-02-14T12:00:30.250000+00:00", m.MidDatetime)
	}
	if math.Abs(m.MidSubpoint.LonDeg-0.3025) > 1e-9 {
		t.Errorf("mid lon = %v, want 0.3025", m.MidSubpoint.LonDeg)
	}
}

func TestImageHeightCountsEverySample(t *testing.T) {
	e := NewEngine(&equatorPropagator{altKm: 500}, testLogger())

	m, err := e.Compute(testTLE, []float64{t0, math.NaN(), -3, t0 + 10}, Projection{ImageWidth: 10})
	if err != nil {
		t.Fatal(err)
	}
	if m.ImageHeightPx != 4 {
		t.Errorf("image_height_px = %d, want 4", m.ImageHeightPx)
	}
}

func TestSingleSample(t *testing.T) {
	tests := []struct {
		name            string
		scanDeg         float64
		wantAcrossTrack bool
	}{
		{"no scan angle", 0, false},
		{"scan angle 20", 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(&equatorPropagator{altKm: 500}, testLogger())

			m, err := e.Compute(testTLE, []float64{t0}, Projection{ImageWidth: 10, ScanAngleDeg: tt.scanDeg})
			if err != nil {
				t.Fatal(err)
			}
			if m.AlongTrackLengthKm != 0 || m.AlongTrackPixelSizeM != 0 {
				t.Errorf("single sample along-track = %v km", m.AlongTrackLengthKm)
			}
			if m.ImageHeightPx != 1 {
				t.Errorf("image_height_px = %d, want 1", m.ImageHeightPx)
			}
			if m.MidDatetime != "2025-02-14T12:00:00+00:00" {
				t.Errorf("mid_datetime = %q", m.MidDatetime)
			}
			if m.HasAcrossTrack() != tt.wantAcrossTrack {
				t.Fatalf("HasAcrossTrack() = %v, want %v", m.HasAcrossTrack(), tt.wantAcrossTrack)
			}
			if tt.wantAcrossTrack && m.AcrossTrack.GroundAreaKm2 != 0 {
				t.Errorf("ground area = %v, want 0 for a zero-length capture", m.AcrossTrack.GroundAreaKm2)
			}
		})
	}
}

var acrossTrackKeys = []string{"across_track_swath_km", "across_track_pixel_size_m", "total_ground_area_km2", "per_pixel_area_km2", "fov_deg"}

func TestMetricsJSON(t *testing.T) {
	e := NewEngine(&equatorPropagator{altKm: 500}, testLogger())
	m, err := e.Compute(testTLE, series(10), Projection{ImageWidth: 100, ScanAngleDeg: 30})
	if err != nil {
		t.Fatal(err)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var flat map[string]any
	if err := json.Unmarshal(out, &flat); err != nil {
		t.Fatal(err)
	}
	for _, key := range acrossTrackKeys {
		if _, ok := flat[key].(float64); !ok {
			t.Errorf("%s = %v, want a number", key, flat[key])
		}
	}
	if _, ok := flat["AcrossTrack"]; ok {
		t.Error("nested AcrossTrack leaked into the wire form")
	}

	var back Metrics
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back.AcrossTrack == nil || *back.AcrossTrack != *m.AcrossTrack {
		t.Errorf("decoded group = %+v, want %+v", back.AcrossTrack, m.AcrossTrack)
	}
}

func TestMetricsJSONRejectsPartialGroup(t *testing.T) {
	partial := `{"image_width_px":10,"across_track_swath_km":12.5,"across_track_pixel_size_m":null,` +
		`"total_ground_area_km2":null,"per_pixel_area_km2":null,"fov_deg":null}`

	var m Metrics
	if err := json.Unmarshal([]byte(partial), &m); err == nil {
		t.Fatal("expected error for a partially null across-track group")
	}

	none := `{"image_width_px":10,"across_track_swath_km":null,"across_track_pixel_size_m":null,` +
		`"total_ground_area_km2":null,"per_pixel_area_km2":null,"fov_deg":null}`
	if err := json.Unmarshal([]byte(none), &m); err != nil {
		t.Fatal(err)
	}
	if m.HasAcrossTrack() || m.ImageWidthPx != 10 {
		t.Errorf("decoded %+v", m)
	}
}

func TestComputeErrors(t *testing.T) {
	e := NewEngine(&equatorPropagator{altKm: 500}, testLogger())
	proj := Projection{ImageWidth: 100, ScanAngleDeg: 10}

	tests := []struct {
		name string
		tle  tle.TLE
		ts   []float64
		proj Projection
		want error
	}{
		{"empty series", testTLE, nil, proj, timeconv.ErrEmptyTimestampSeries},
		{"empty checked before TLE", tle.TLE{}, []float64{}, proj, timeconv.ErrEmptyTimestampSeries},
		{"missing TLE", tle.TLE{Name: "x"}, series(3), proj, tle.ErrMissingTLE},
		{"invalid first", testTLE, []float64{-1, t0}, proj, timeconv.ErrInvalidTimestamp},
		{"invalid last", testTLE, []float64{t0, math.Inf(1)}, proj, timeconv.ErrInvalidTimestamp},
		{"zero width", testTLE, series(3), Projection{ScanAngleDeg: 10}, ErrInvalidProjection},
		{"negative scan angle", testTLE, series(3), Projection{ImageWidth: 10, ScanAngleDeg: -5}, ErrInvalidProjection},
		{"scan angle 180", testTLE, series(3), Projection{ImageWidth: 10, ScanAngleDeg: 180}, ErrInvalidProjection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := e.Compute(tt.tle, tt.ts, tt.proj)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if m != nil {
				t.Errorf("partial result returned: %+v", m)
			}
		})
	}
}

func TestPropagatorErrorSurfaces(t *testing.T) {
	e := NewEngine(propagation.NewSGP4(testLogger()), testLogger())
	bad := tle.TLE{Name: "bad", Line1: testTLE.Line1[:68] + "0", Line2: testTLE.Line2}

	_, err := e.Compute(bad, series(5), Projection{ImageWidth: 10})
	if !errors.Is(err, tle.ErrMalformedTLE) {
		t.Fatalf("err = %v, want ErrMalformedTLE", err)
	}
}

// TestComputeISS runs a one-minute ISS capture through the real propagator.
func TestComputeISS(t *testing.T) {
	e := NewEngine(propagation.NewSGP4(testLogger()), testLogger())

	m, err := e.Compute(testTLE, series(61), Projection{ImageWidth: 2048, ScanAngleDeg: 110})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// ~7.2 km/s ground speed over 60 s.
	if m.AlongTrackLengthKm < 380 || m.AlongTrackLengthKm > 480 {
		t.Errorf("along-track length = %.1f km", m.AlongTrackLengthKm)
	}
	if m.MidSubpoint.AltKm < 380 || m.MidSubpoint.AltKm > 450 {
		t.Errorf("mid altitude = %.1f km", m.MidSubpoint.AltKm)
	}

	wantSwath := 2 * m.MidSubpoint.AltKm * math.Tan(55*math.Pi/180)
	if !m.HasAcrossTrack() {
		t.Fatal("across-track group missing with a 110 degree scan")
	}
	if math.Abs(m.AcrossTrack.SwathKm-wantSwath) > 1e-9 {
		t.Errorf("swath = %v, want %v", m.AcrossTrack.SwathKm, wantSwath)
	}
	if math.Abs(m.AcrossTrack.GroundAreaKm2-m.AcrossTrack.SwathKm*m.AlongTrackLengthKm) > 1e-6 {
		t.Error("area is not swath x along-track")
	}
	if m.MidSunElevationDeg < -90 || m.MidSunElevationDeg > 90 {
		t.Errorf("sun elevation = %v", m.MidSunElevationDeg)
	}
	if m.MidDatetime != "2025-02-14T12:00:30+00:00" {
		t.Errorf("mid_datetime = %q", m.MidDatetime)
	}
}
