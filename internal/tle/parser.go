package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// Parse reads 3-line (name, line 1, line 2) TLE text. Entries whose lines fail
// CheckLines or carry an unreadable epoch are logged and skipped; when a
// triple is out of step the parser moves on one line and tries again.
func Parse(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r "); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	i := 0
	for i+2 < len(lines) {
		name, l1, l2 := lines[i], lines[i+1], lines[i+2]
		if !strings.HasPrefix(l1, "1 ") || !strings.HasPrefix(l2, "2 ") {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}
		i += 3

		e, err := newEntry(name, l1, l2)
		if err != nil {
			logger.Warn("skipping TLE entry", "name", name, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func newEntry(name, l1, l2 string) (Entry, error) {
	if err := CheckLines(l1, l2); err != nil {
		return Entry{}, err
	}
	// CheckLines guarantees 69 columns and a numeric catalog field.
	id, _ := strconv.Atoi(strings.TrimSpace(l1[2:7]))
	epoch, err := parseEpoch(strings.TrimSpace(l1[18:32]))
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		TLE:     TLE{Name: strings.TrimSpace(name), Line1: l1, Line2: l2},
		NORADID: id,
		Epoch:   epoch,
	}, nil
}

// Select returns the entry whose name matches name (case-insensitive), or the
// first entry when none matches.
func Select(entries []Entry, name string) (Entry, error) {
	if len(entries) == 0 {
		return Entry{}, ErrMissingTLE
	}
	if name = strings.TrimSpace(name); name != "" {
		for _, e := range entries {
			if strings.EqualFold(e.Name, name) {
				return e, nil
			}
		}
	}
	return entries[0], nil
}

// parseEpoch reads the YYDDD.DDDDDDDD epoch field. Two-digit years 57-99 are
// 19xx, 00-56 are 20xx; day 1.0 is midnight on 1 January.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch %q too short", s)
	}
	yy, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("epoch year %q: %w", s[:2], err)
	}
	day, err := strconv.ParseFloat(s[2:], 64)
	if err != nil || day < 1 || day >= 367 {
		return time.Time{}, fmt.Errorf("epoch day %q out of range", s[2:])
	}

	year := 2000 + yy
	if yy >= 57 {
		year = 1900 + yy
	}
	whole, frac := math.Modf(day)
	return time.Date(year, 1, int(whole), 0, 0, 0, 0, time.UTC).
		Add(time.Duration(frac * float64(24*time.Hour))), nil
}
