package tle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxBodyBytes caps a single TLE response. A full CelesTrak catalogue is a few MB.
const maxBodyBytes = 50 << 20

// Fetcher retrieves raw 3-line TLE text over HTTP.
type Fetcher struct {
	sourceURL  string
	extraURLs  []string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given source URL. Extra URLs are fetched
// after the primary one and appended to its body; their failures are logged and
// otherwise ignored.
func NewFetcher(sourceURL string, logger *slog.Logger, extraURLs ...string) *Fetcher {
	return &Fetcher{
		sourceURL: sourceURL,
		extraURLs: extraURLs,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch downloads the primary source and any extra sources.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	if f.sourceURL == "" {
		return nil, fmt.Errorf("no TLE source URL configured")
	}

	body, err := f.get(ctx, f.sourceURL)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(body)
	for _, u := range f.extraURLs {
		extra, err := f.get(ctx, u)
		if err != nil {
			f.logger.Warn("extra TLE source failed", "url", u, "error", err)
			continue
		}
		if buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteByte('\n')
		}
		buf.Write(extra)
	}

	f.logger.Debug("TLE fetch complete", "url", f.sourceURL, "extra_urls", len(f.extraURLs), "bytes", buf.Len())
	return buf.Bytes(), nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", url, maxBodyBytes)
	}

	return body, nil
}
