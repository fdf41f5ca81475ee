package tle

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const defaultMaxFiles = 5

// Cache keeps recent downloads of TLE text on disk, one tle_<unix>.txt file per
// download, so a run can fall back to them when the source is unreachable.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache stores files in dir and keeps at most maxFiles of them (5 when
// maxFiles is not positive).
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}
	return &Cache{dir: dir, maxFiles: maxFiles}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Write stores data as the download taken at ts, then drops the oldest files
// beyond the limit.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	name := snapshot{unix: ts.Unix()}.fileName()
	if err := os.WriteFile(filepath.Join(c.dir, name), data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return c.prune()
}

// LoadLatest returns the newest download and when it was taken.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	snaps, err := c.snapshots()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(snaps) == 0 {
		return nil, time.Time{}, fmt.Errorf("no cache files in %s", c.dir)
	}

	newest := snaps[len(snaps)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, newest.fileName()))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, time.Unix(newest.unix, 0), nil
}

type snapshot struct {
	unix int64
}

func (s snapshot) fileName() string {
	return fmt.Sprintf("tle_%d.txt", s.unix)
}

// snapshots lists cache files oldest first. Other files in dir are ignored.
func (c *Cache) snapshots() ([]snapshot, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var snaps []snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var s snapshot
		if n, err := fmt.Sscanf(e.Name(), "tle_%d.txt", &s.unix); err != nil || n != 1 || s.fileName() != e.Name() {
			continue
		}
		snaps = append(snaps, s)
	}
	slices.SortFunc(snaps, func(a, b snapshot) int { return cmp.Compare(a.unix, b.unix) })
	return snaps, nil
}

func (c *Cache) prune() error {
	snaps, err := c.snapshots()
	if err != nil {
		return err
	}
	for len(snaps) > c.maxFiles {
		name := snaps[0].fileName()
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", name, err)
		}
		snaps = snaps[1:]
	}
	return nil
}
