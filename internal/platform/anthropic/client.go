// Package anthropic implements the conversion model provider on top of the
// Anthropic Messages API.
package anthropic

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

var _ convert.Provider = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL      = "https://api.anthropic.com"
	DefaultFastModel    = "claude-haiku-4-5"
	DefaultQualityModel = "claude-sonnet-4-5"
	DefaultTimeout      = 120 * time.Second

	anthropicVersion = "2023-06-01"
	maxErrorBody     = 64 << 10
)

// Config holds the Anthropic client settings. Zero values take defaults.
type Config struct {
	BaseURL      string
	FastModel    string
	QualityModel string
	Timeout      time.Duration
}

// Client calls POST /v1/messages. The API key is supplied per call.
type Client struct {
	client  *http.Client
	baseURL string
	fast    string
	quality string
}

type messagesRequest struct {
	Model     string            `json:"model"`
	MaxTokens int               `json:"max_tokens"`
	System    string            `json:"system,omitempty"`
	Messages  []messagesMessage `json:"messages"`
}

type messagesMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient creates an Anthropic client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.FastModel == "" {
		cfg.FastModel = DefaultFastModel
	}
	if cfg.QualityModel == "" {
		cfg.QualityModel = DefaultQualityModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		fast:    cfg.FastModel,
		quality: cfg.QualityModel,
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return "anthropic" }

// ModelFor resolves a profile to a model id.
func (c *Client) ModelFor(p convert.Profile) string {
	if p == convert.ProfileFast {
		return c.fast
	}
	return c.quality
}

// Complete sends req and returns the concatenated text blocks of the reply.
func (c *Client) Complete(ctx context.Context, credential string, req convert.Request) (string, error) {
	body := messagesRequest{
		Model:     c.ModelFor(req.Profile),
		MaxTokens: req.MaxOutputTokens,
		System:    req.System,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, messagesMessage{Role: "user", Content: blocks(m)})
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", credential)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", convert.WrapTransport(convert.SourceProvider, fmt.Errorf("anthropic: send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", convert.StatusError(convert.SourceProvider, resp.StatusCode, apiError(resp.Body))
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}

	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	if result.Len() == 0 {
		return "", fmt.Errorf("anthropic: no text content in response (stop reason %q)", msgResp.StopReason)
	}
	return result.String(), nil
}

func blocks(m convert.Message) []contentBlock {
	out := make([]contentBlock, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Type {
		case convert.PartImage:
			out = append(out, contentBlock{
				Type:   "image",
				Source: &imageSource{Type: "base64", MediaType: p.MediaType, Data: p.Data},
			})
		case convert.PartText:
			out = append(out, contentBlock{Type: "text", Text: p.Text})
		}
	}
	return out
}

// apiError extracts the message of an Anthropic error body.
func apiError(r io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return fmt.Errorf("anthropic: read error body: %w", err)
	}
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
		return fmt.Errorf("anthropic: %s: %s", e.Error.Type, e.Error.Message)
	}
	return errors.New("anthropic: " + strings.TrimSpace(string(raw)))
}
