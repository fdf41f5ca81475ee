package tle

import (
	"errors"
	"strings"
	"time"
)

// ErrMissingTLE is returned when an element set is absent or one of its two
// lines is empty.
var ErrMissingTLE = errors.New("TLE lines missing")

// TLE is a named two-line element set. It is read once per request and never
// mutated.
type TLE struct {
	Name  string `json:"name"`
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// Validate reports ErrMissingTLE when either line is blank. Line content is
// not inspected here; see CheckLines.
func (t TLE) Validate() error {
	if strings.TrimSpace(t.Line1) == "" || strings.TrimSpace(t.Line2) == "" {
		return ErrMissingTLE
	}
	return nil
}

// DisplayName returns the TLE name, or "sat" when it has none.
func (t TLE) DisplayName() string {
	if name := strings.TrimSpace(t.Name); name != "" {
		return name
	}
	return "sat"
}

// Key identifies the element set by its two lines, ignoring surrounding space.
func (t TLE) Key() string {
	return strings.TrimSpace(t.Line1) + "\n" + strings.TrimSpace(t.Line2)
}

// Entry is a TLE read from 3-line NORAD text, with the catalog number and epoch
// decoded from line 1.
type Entry struct {
	TLE
	NORADID int
	Epoch   time.Time
}
