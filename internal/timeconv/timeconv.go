// Package timeconv normalizes POSIX capture timestamps into the instants the
// orbit propagator consumes.
//
// A capture timestamp is a non-negative, finite number of seconds since the Unix
// epoch (UTC). Sub-second fractions are kept to the microsecond, which is the
// resolution the footprint midpoint is computed at.
package timeconv

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

var (
	// ErrInvalidTimestamp is returned for values that are not finite,
	// non-negative numbers of seconds.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrEmptyTimestampSeries is returned when a series has no samples at all.
	ErrEmptyTimestampSeries = errors.New("empty timestamp series")
)

// maxTimestamp is 9999-12-31T23:59:59Z, the last second a calendar year can
// still be written with four digits.
const maxTimestamp = 253402300799.0

const (
	labelLayout = "2006-01-02 15:04:05"
	isoLayout   = "2006-01-02T15:04:05"
)

// Instant is the propagator's view of a capture time: a UTC calendar time with
// microsecond resolution plus its Julian date.
type Instant struct {
	UTC time.Time
	JD  float64
}

// Normalize converts POSIX seconds into an Instant.
func Normalize(ts float64) (Instant, error) {
	if math.IsNaN(ts) || math.IsInf(ts, 0) || ts < 0 || ts > maxTimestamp {
		return Instant{}, fmt.Errorf("%w: %v", ErrInvalidTimestamp, ts)
	}

	sec, frac := math.Modf(ts)
	usec := int64(math.Round(frac * 1e6))
	if usec == 1_000_000 {
		sec++
		usec = 0
	}

	return FromTime(time.Unix(int64(sec), usec*int64(time.Microsecond))), nil
}

// FromTime builds an Instant from an arbitrary time, converted to UTC and
// truncated to the microsecond.
func FromTime(t time.Time) Instant {
	t = t.UTC().Truncate(time.Microsecond)
	return Instant{UTC: t, JD: julian.TimeToJD(t)}
}

// Calendar returns the UTC calendar fields of the instant. The second carries
// the sub-second fraction.
func (i Instant) Calendar() (year, month, day, hour, minute int, second float64) {
	t := i.UTC
	second = float64(t.Second()) + float64(t.Nanosecond())/1e9
	return t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), second
}

// Truncate drops the sub-second part of the instant.
func (i Instant) Truncate() Instant {
	if i.UTC.Nanosecond() == 0 {
		return i
	}
	return FromTime(i.UTC.Truncate(time.Second))
}

// Unix returns the instant as POSIX seconds.
func (i Instant) Unix() float64 {
	return float64(i.UTC.Unix()) + float64(i.UTC.Nanosecond())/1e9
}

// Label formats the instant as "YYYY-MM-DD HH:MM:SS".
func (i Instant) Label() string {
	return i.UTC.Format(labelLayout)
}

// ISO formats the instant as ISO-8601 with an explicit +00:00 offset. The
// fraction is written with six digits, and only when it is non-zero.
func (i Instant) ISO() string {
	s := i.UTC.Format(isoLayout)
	if usec := i.UTC.Nanosecond() / 1000; usec != 0 {
		s += fmt.Sprintf(".%06d", usec)
	}
	return s + "+00:00"
}

// FromValue coerces a decoded record element into POSIX seconds. Anything that
// is not a number (strings, booleans, nil, nested values) is rejected with
// ErrInvalidTimestamp; range checks are left to Normalize.
func FromValue(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, n.String())
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %v (%T)", ErrInvalidTimestamp, v, v)
	}
}

// NormalizeValue is FromValue followed by Normalize.
func NormalizeValue(v any) (Instant, error) {
	ts, err := FromValue(v)
	if err != nil {
		return Instant{}, err
	}
	return Normalize(ts)
}
