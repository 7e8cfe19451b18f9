// Package fetch retrieves recipe pages for URL conversions, either directly
// or through a running fetch proxy, and trims the markup before it is sent
// to the model.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"swedify/internal/convert"
)

// Default configuration values.
const (
	DefaultTimeout = 30 * time.Second
	MaxBodyBytes   = 10 << 20

	// Some recipe sites refuse requests without a browser User-Agent.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

var _ convert.Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcher downloads pages itself.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with the given timeout (DefaultTimeout
// when zero).
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// FetchMarkup GETs url. Non-2xx answers keep their status code.
func (f *HTTPFetcher) FetchMarkup(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("fetch: create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en;q=0.9,sv;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", convert.WrapTransport(convert.SourceOrigin, fmt.Errorf("fetch %s: %w", url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", convert.StatusError(convert.SourceOrigin, resp.StatusCode,
			fmt.Errorf("failed to fetch URL: %s", http.StatusText(resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return "", convert.WrapTransport(convert.SourceOrigin, fmt.Errorf("fetch %s: read body: %w", url, err))
	}
	return string(body), nil
}
