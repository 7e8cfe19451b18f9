package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"swedify/internal/convert"
)

var _ convert.Fetcher = (*ProxyClient)(nil)

// FailureHeader is set by the proxy when it got no HTTP answer from the
// origin. Its value is "network" or "timeout".
const FailureHeader = "X-Fetch-Failure"

// ProxyRequest is the body of POST /api/fetch-recipe.
type ProxyRequest struct {
	URL string `json:"url"`
}

// ProxyResponse is the success body of POST /api/fetch-recipe. Error is set
// instead on failure.
type ProxyResponse struct {
	HTML  string `json:"html,omitempty"`
	Error string `json:"error,omitempty"`
}

// ProxyClient fetches pages through a fetch proxy.
type ProxyClient struct {
	client  *http.Client
	baseURL string
}

// NewProxyClient creates a client for the proxy at baseURL, for example
// "http://localhost:3001".
func NewProxyClient(baseURL string, timeout time.Duration) *ProxyClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &ProxyClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// FetchMarkup asks the proxy for url. The proxy passes the origin status
// through, so it is reported as an origin status here.
func (p *ProxyClient) FetchMarkup(ctx context.Context, url string) (string, error) {
	body, err := json.Marshal(ProxyRequest{URL: url})
	if err != nil {
		return "", fmt.Errorf("fetch: marshal proxy request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/fetch-recipe", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("fetch: create proxy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", convert.WrapTransport(convert.SourceOrigin, fmt.Errorf("fetch proxy unreachable: %w", err))
	}
	defer resp.Body.Close()

	var out ProxyResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, MaxBodyBytes*2)).Decode(&out)

	// The proxy could not reach the origin at all.
	switch convert.TransportKind(resp.Header.Get(FailureHeader)) {
	case convert.KindNetwork:
		return "", &convert.TransportError{Source: convert.SourceOrigin, Kind: convert.KindNetwork, Err: errors.New(out.Error)}
	case convert.KindTimeout:
		return "", &convert.TransportError{Source: convert.SourceOrigin, Kind: convert.KindTimeout, Err: errors.New(out.Error)}
	}

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", convert.StatusError(convert.SourceOrigin, resp.StatusCode, errors.New(msg))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("fetch: decode proxy response: %w", decodeErr)
	}
	return out.HTML, nil
}
