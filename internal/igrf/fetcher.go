package igrf

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultCoeffURL = "https://www.ngdc.noaa.gov/IAGA/vmod/coeffs/igrf13coeffs.txt"

// maxFetchBytes caps coefficient downloads; the distribution file is ~60 KB.
const maxFetchBytes = 4 << 20

// Fetcher retrieves a raw coefficient file from a remote source.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
}

// NewFetcher creates a Fetcher for the given source URL. An empty URL
// selects the NOAA IAGA distribution file.
func NewFetcher(sourceURL string) *Fetcher {
	if sourceURL == "" {
		sourceURL = defaultCoeffURL
	}
	return &Fetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch performs an HTTP GET and returns the raw coefficient file bytes.
// The bytes are not parsed here; callers run Parse so a bad download can
// never displace a good model set.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching coefficient file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.sourceURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxFetchBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", f.sourceURL, maxFetchBytes)
	}

	return body, nil
}
