package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"swedify/internal/convert"
)

var _ convert.Provider = (*Client)(nil)

// Default configuration values.
const (
	DefaultFastModel    = "gemini-1.5-flash"
	DefaultQualityModel = "gemini-1.5-pro"
	DefaultTimeout      = 120 * time.Second
)

// Config holds the Gemini client settings. Zero values take defaults.
type Config struct {
	FastModel    string
	QualityModel string
	Timeout      time.Duration
	// Endpoint overrides the API endpoint, mostly for testing.
	Endpoint string
}

// Client is a convert.Provider backed by the Gemini API. A genai client is
// created per call because the API key arrives with each conversion.
type Client struct {
	fast     string
	quality  string
	timeout  time.Duration
	endpoint string
}

// NewClient creates a new Gemini client.
func NewClient(cfg Config) *Client {
	if cfg.FastModel == "" {
		cfg.FastModel = DefaultFastModel
	}
	if cfg.QualityModel == "" {
		cfg.QualityModel = DefaultQualityModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{fast: cfg.FastModel, quality: cfg.QualityModel, timeout: cfg.Timeout, endpoint: cfg.Endpoint}
}

// Name returns the provider name.
func (c *Client) Name() string { return "gemini" }

// ModelFor resolves a profile to a model name.
func (c *Client) ModelFor(p convert.Profile) string {
	if p == convert.ProfileFast {
		return c.fast
	}
	return c.quality
}

// Complete generates content for req and returns the text of the first
// candidate.
func (c *Client) Complete(ctx context.Context, credential string, req convert.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := []option.ClientOption{option.WithAPIKey(credential)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("gemini: create client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(c.ModelFor(req.Profile))
	model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	model.ResponseMIMEType = "application/json"

	var prompt []genai.Part
	for _, m := range req.Messages {
		parts, err := Parts(m)
		if err != nil {
			return "", err
		}
		prompt = append(prompt, parts...)
	}

	resp, err := model.GenerateContent(ctx, prompt...)
	if err != nil {
		return "", mapError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}

	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("gemini: unexpected response format")
	}
	return text.String(), nil
}

// Parts converts a message into genai parts. Images become blobs.
func Parts(m convert.Message) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Type {
		case convert.PartImage:
			data, err := base64.StdEncoding.DecodeString(p.Data)
			if err != nil {
				return nil, fmt.Errorf("gemini: decode image: %w", err)
			}
			parts = append(parts, genai.Blob{MIMEType: p.MediaType, Data: data})
		case convert.PartText:
			parts = append(parts, genai.Text(p.Text))
		}
	}
	return parts, nil
}

// mapError keeps the HTTP status of API errors visible to Classify.
func mapError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		status := gErr.Code
		// Gemini reports a bad key as 400 API_KEY_INVALID.
		if status == http.StatusBadRequest && strings.Contains(gErr.Error(), "API_KEY_INVALID") {
			status = http.StatusUnauthorized
		}
		return convert.StatusError(convert.SourceProvider, status, fmt.Errorf("gemini: %w", err))
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("gemini: %w", err)
	}
	return convert.WrapTransport(convert.SourceProvider, fmt.Errorf("gemini: %w", err))
}
