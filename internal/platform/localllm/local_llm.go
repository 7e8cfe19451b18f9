package localllm

import (
	"bytes"
	"context"
	"encoding/json"
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
	DefaultURL     = "http://localhost:1234/v1/chat/completions"
	DefaultModel   = "gemma-3-12b-it"
	DefaultTimeout = 120 * time.Second
)

// Config holds the local LLM settings. Zero values take defaults.
type Config struct {
	URL          string
	FastModel    string
	QualityModel string
	Timeout      time.Duration
}

// Client represents a client for an OpenAI-compatible chat completions
// endpoint such as LM Studio, llama.cpp server or Ollama.
type Client struct {
	httpClient *http.Client
	apiURL     string
	fast       string
	quality    string
}

// NewClient creates a new client for the local LLM.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.QualityModel == "" {
		cfg.QualityModel = DefaultModel
	}
	if cfg.FastModel == "" {
		cfg.FastModel = cfg.QualityModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiURL:     cfg.URL,
		fast:       cfg.FastModel,
		quality:    cfg.QualityModel,
	}
}

// Request represents the request body for the local LLM.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Message represents a message in the request.
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

// Content represents the content of a message.
type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents the image URL in the content.
type ImageURL struct {
	URL string `json:"url"`
}

// Response represents the response from the local LLM.
type Response struct {
	Choices []Choice `json:"choices"`
}

// Choice represents a choice in the response.
type Choice struct {
	Message ResponseMessage `json:"message"`
}

// ResponseMessage represents a message in the response.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Name returns the provider name.
func (c *Client) Name() string { return "localllm" }

// ModelFor resolves a profile to a model name.
func (c *Client) ModelFor(p convert.Profile) string {
	if p == convert.ProfileFast {
		return c.fast
	}
	return c.quality
}

// Complete sends req to the local LLM and returns the first choice. The
// credential is sent as a bearer token. Servers without authentication
// still need a placeholder key configured since conversion refuses a blank one.
func (c *Client) Complete(ctx context.Context, credential string, req convert.Request) (string, error) {
	reqBody := Request{
		Model: c.ModelFor(req.Profile),
		Messages: []Message{
			{Role: "system", Content: []Content{{Type: "text", Text: req.System}}},
		},
		Temperature: 0.3,
		MaxTokens:   req.MaxOutputTokens,
	}
	for _, m := range req.Messages {
		reqBody.Messages = append(reqBody.Messages, Message{Role: "user", Content: contents(m)})
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("localllm: failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", fmt.Errorf("localllm: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(credential))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", convert.WrapTransport(convert.SourceProvider, fmt.Errorf("localllm: failed to send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", convert.StatusError(convert.SourceProvider, resp.StatusCode,
			fmt.Errorf("localllm: %s", strings.TrimSpace(string(body))))
	}

	var llmResp Response
	if err := json.NewDecoder(resp.Body).Decode(&llmResp); err != nil {
		return "", fmt.Errorf("localllm: failed to decode response body: %w", err)
	}

	if len(llmResp.Choices) == 0 || llmResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("localllm: no content found in response")
	}
	return llmResp.Choices[0].Message.Content, nil
}

func contents(m convert.Message) []Content {
	out := make([]Content, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Type {
		case convert.PartImage:
			out = append(out, Content{
				Type:     "image_url",
				ImageURL: &ImageURL{URL: "data:" + p.MediaType + ";base64," + p.Data},
			})
		case convert.PartText:
			out = append(out, Content{Type: "text", Text: p.Text})
		}
	}
	return out
}
