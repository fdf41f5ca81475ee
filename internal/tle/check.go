package tle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedTLE is returned by CheckLines for lines that cannot be handed to
// the SGP4 parser.
var ErrMalformedTLE = errors.New("malformed TLE")

const lineLength = 69

// CheckLines validates the fixed-column layout of both lines: length, line
// numbers, matching catalog numbers, numeric fields and the modulo-10
// checksum in column 69.
//
// go-satellite calls log.Fatal on input it cannot parse, so anything reaching
// the propagator must pass this first.
func CheckLines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != lineLength {
		return fmt.Errorf("%w: line1 length %d, expected %d", ErrMalformedTLE, len(line1), lineLength)
	}
	if len(line2) != lineLength {
		return fmt.Errorf("%w: line2 length %d, expected %d", ErrMalformedTLE, len(line2), lineLength)
	}
	if line1[0] != '1' {
		return fmt.Errorf("%w: line1 must start with '1', got '%c'", ErrMalformedTLE, line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("%w: line2 must start with '2', got '%c'", ErrMalformedTLE, line2[0])
	}

	id1 := strings.TrimSpace(line1[2:7])
	id2 := strings.TrimSpace(line2[2:7])
	if _, err := strconv.Atoi(id1); err != nil {
		return fmt.Errorf("%w: invalid catalog number %q", ErrMalformedTLE, id1)
	}
	if id1 != id2 {
		return fmt.Errorf("%w: catalog numbers differ between lines (%s vs %s)", ErrMalformedTLE, id1, id2)
	}

	if err := checkFields(line1, line2); err != nil {
		return err
	}

	for i, line := range []string{line1, line2} {
		want := int(line[lineLength-1] - '0')
		if want < 0 || want > 9 {
			return fmt.Errorf("%w: line%d checksum column is %q", ErrMalformedTLE, i+1, line[lineLength-1])
		}
		if got := Checksum(line); got != want {
			return fmt.Errorf("%w: line%d checksum mismatch: expected %d, computed %d", ErrMalformedTLE, i+1, want, got)
		}
	}
	return nil
}

// field is one numeric column range as the SGP4 parser reads it.
type field struct {
	name  string
	value string
	isInt bool
}

// squeeze drops the first two spaces, matching the SGP4 parser.
func squeeze(s string) string {
	return strings.Replace(s, " ", "", 2)
}

// checkFields parses every numeric field the SGP4 parser reads, with the same
// column ranges and string rewrites, so bad digits are reported here instead
// of terminating the process there.
func checkFields(line1, line2 string) error {
	fields := []field{
		{"epoch year", line1[18:20], true},
		{"epoch day", line1[20:32], false},
		{"mean motion derivative", squeeze(line1[33:43]), false},
		{"mean motion second derivative", squeeze(line1[44:45] + "." + line1[45:50] + "e" + line1[50:52]), false},
		{"bstar", squeeze(line1[53:54] + "." + line1[54:59] + "e" + line1[59:61]), false},
		{"inclination", squeeze(line2[8:16]), false},
		{"right ascension", squeeze(line2[17:25]), false},
		{"eccentricity", "." + line2[26:33], false},
		{"argument of perigee", squeeze(line2[34:42]), false},
		{"mean anomaly", squeeze(line2[43:51]), false},
		{"mean motion", squeeze(line2[52:63]), false},
	}
	for _, f := range fields {
		var err error
		if f.isInt {
			_, err = strconv.ParseInt(f.value, 10, 0)
		} else {
			_, err = strconv.ParseFloat(f.value, 64)
		}
		if err != nil {
			return fmt.Errorf("%w: %s %q is not a number", ErrMalformedTLE, f.name, f.value)
		}
	}
	return nil
}

// Checksum computes the modulo-10 checksum of the first 68 columns of a TLE
// line: digits count their value, '-' counts 1, everything else 0.
func Checksum(line string) int {
	n := min(len(line), lineLength-1)
	sum := 0
	for i := range n {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}
