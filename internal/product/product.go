// Package product decodes capture records: the TLE, scan-line timestamps and
// imager projection shipped alongside an image, as JSON or CBOR.
package product

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/Danselem/dara-opsc/internal/footprint"
	"github.com/Danselem/dara-opsc/internal/timeconv"
	"github.com/Danselem/dara-opsc/internal/tle"
)

// ErrUnsupportedFormat is returned for inputs that are neither JSON nor CBOR.
var ErrUnsupportedFormat = errors.New("unsupported record format")

// Format is a record encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatCBOR
)

func (f Format) String() string {
	if f == FormatCBOR {
		return "cbor"
	}
	return "json"
}

// Record is a decoded capture record. Timestamps and projection values are
// kept as decoded so the engines decide what counts as a valid sample.
type Record struct {
	TLE        *tle.TLE       `json:"tle" cbor:"tle"`
	Timestamps []any          `json:"timestamps" cbor:"timestamps"`
	Projection map[string]any `json:"projection_cfg,omitempty" cbor:"projection_cfg,omitempty"`
}

// decMode decodes maps into map[string]any so CBOR and JSON records look alike.
var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// Decode parses a record in the given format.
func Decode(data []byte, format Format) (*Record, error) {
	var rec Record
	if err := Unmarshal(data, format, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Unmarshal decodes data into v the way records are decoded: JSON numbers
// stay json.Number and CBOR maps become map[string]any. v may embed Record.
func Unmarshal(data []byte, format Format, v any) error {
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("decoding JSON record: %w", err)
		}
	case FormatCBOR:
		if err := decMode.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decoding CBOR record: %w", err)
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	return nil
}

// ReadFile reads and decodes the record at path, choosing the format from the
// file extension.
func ReadFile(path string) (*Record, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}
	return Decode(data, format)
}

// FormatFromPath maps .json and .cbor extensions to a Format.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".cbor":
		return FormatCBOR, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// FormatFromContentType maps an HTTP Content-Type to a Format. An empty type
// is treated as JSON.
func FormatFromContentType(ct string) (Format, error) {
	mt, _, _ := strings.Cut(ct, ";")
	switch strings.ToLower(strings.TrimSpace(mt)) {
	case "", "application/json":
		return FormatJSON, nil
	case "application/cbor":
		return FormatCBOR, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ct)
	}
}

// Discover returns the first *.cbor file in dir, in lexical order.
func Discover(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".cbor") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no .cbor file found in %s", dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}

// ElementSet returns the record's TLE, or tle.ErrMissingTLE when it has none
// or a line is blank.
func (r *Record) ElementSet() (tle.TLE, error) {
	if r.TLE == nil {
		return tle.TLE{}, tle.ErrMissingTLE
	}
	if err := r.TLE.Validate(); err != nil {
		return tle.TLE{}, err
	}
	return *r.TLE, nil
}

// Series converts the timestamps to seconds. Values that are not numbers
// become NaN, which the engines reject as invalid timestamps.
func (r *Record) Series() []float64 {
	out := make([]float64, len(r.Timestamps))
	for i, v := range r.Timestamps {
		ts, err := timeconv.FromValue(v)
		if err != nil {
			ts = math.NaN()
		}
		out[i] = ts
	}
	return out
}

// ProjectionConfig reads projection_cfg. image_width is required and
// truncated to an integer; a missing scan_angle means zero.
func (r *Record) ProjectionConfig() (footprint.Projection, error) {
	if r.Projection == nil {
		return footprint.Projection{}, fmt.Errorf("%w: projection_cfg missing", footprint.ErrInvalidProjection)
	}

	w, ok := r.Projection["image_width"]
	if !ok {
		return footprint.Projection{}, fmt.Errorf("%w: image_width missing", footprint.ErrInvalidProjection)
	}
	width, err := timeconv.FromValue(w)
	if err != nil || math.IsNaN(width) || math.IsInf(width, 0) {
		return footprint.Projection{}, fmt.Errorf("%w: image_width %v", footprint.ErrInvalidProjection, w)
	}

	var scan float64
	if s, ok := r.Projection["scan_angle"]; ok && s != nil {
		scan, err = timeconv.FromValue(s)
		if err != nil {
			return footprint.Projection{}, fmt.Errorf("%w: scan_angle %v", footprint.ErrInvalidProjection, s)
		}
	}

	return footprint.Projection{ImageWidth: int(width), ScanAngleDeg: scan}, nil
}

// ToJSON re-encodes a CBOR document as indented JSON. Byte strings become
// base64 strings.
func ToJSON(data []byte) ([]byte, error) {
	var v any
	if err := decMode.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding CBOR: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}
	return buf.Bytes(), nil
}
