package tle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Source resolves an element set from a remote feed, falling back to the newest
// cached download when the feed is unreachable.
type Source struct {
	fetcher *Fetcher
	cache   *Cache
	logger  *slog.Logger
}

// NewSource wires a fetcher to a cache. cache may be nil.
func NewSource(fetcher *Fetcher, cache *Cache, logger *slog.Logger) *Source {
	return &Source{fetcher: fetcher, cache: cache, logger: logger}
}

// Lookup returns the entry named name from the feed (or the first entry when no
// name matches).
func (s *Source) Lookup(ctx context.Context, name string) (Entry, error) {
	data, err := s.load(ctx)
	if err != nil {
		return Entry{}, err
	}

	entries, err := Parse(bytes.NewReader(data), s.logger)
	if err != nil {
		return Entry{}, err
	}
	e, err := Select(entries, name)
	if err != nil {
		return Entry{}, fmt.Errorf("no usable TLE in %s: %w", s.fetcher.SourceURL(), err)
	}

	s.logger.Info("TLE resolved",
		"name", e.Name,
		"norad_id", e.NORADID,
		"epoch", e.Epoch.UTC().Format(time.RFC3339),
	)
	return e, nil
}

func (s *Source) load(ctx context.Context) ([]byte, error) {
	data, err := s.fetcher.Fetch(ctx)
	if err == nil {
		if s.cache != nil {
			if werr := s.cache.Write(data, time.Now()); werr != nil {
				s.logger.Warn("failed to cache TLE data", "dir", s.cache.Dir(), "error", werr)
			}
		}
		return data, nil
	}

	if s.cache == nil {
		return nil, err
	}

	s.logger.Warn("TLE fetch failed, trying cache", "url", s.fetcher.SourceURL(), "error", err)
	cached, ts, cerr := s.cache.LoadLatest()
	if cerr != nil {
		return nil, fmt.Errorf("%w (cache: %v)", err, cerr)
	}
	s.logger.Info("using cached TLE data", "cached_at", ts.UTC().Format(time.RFC3339))
	return cached, nil
}
