package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"swedify/internal/convert"
	"swedify/internal/credential"
	"swedify/internal/imaging"
	"swedify/internal/logger"
	"swedify/internal/platform/fetch"
	"swedify/internal/recipe"
)

// APIKeyHeader lets a client send its own provider key with a conversion.
const APIKeyHeader = "X-API-Key"

// maxUploadBytes bounds image uploads before downscaling.
const maxUploadBytes = 20 << 20

// Converter defines the conversion pipeline used by the handler.
type Converter interface {
	Convert(ctx context.Context, credential string, in convert.Input, opts convert.Options) (*recipe.Recipe, error)
}

// CredentialStore defines the operations on the stored provider key.
type CredentialStore interface {
	Lookup() (string, string)
	Set(key string) error
	Clear() error
}

// Handler handles HTTP requests.
type Handler struct {
	Converter   Converter
	Fetcher     convert.Fetcher
	RecipeStore recipe.Store
	Credentials CredentialStore
	Log         *logger.Logger

	// Now stamps export file names.
	Now func() time.Time

	limiter *rate.Limiter
	busy    sync.Mutex
}

// NewHandler creates a new Handler. fetcher serves the fetch proxy endpoint
// and must reach origins directly. A nil limiter disables rate limiting.
func NewHandler(converter Converter, fetcher convert.Fetcher, store recipe.Store, creds CredentialStore, limiter *rate.Limiter, log *logger.Logger) *Handler {
	return &Handler{
		Converter:   converter,
		Fetcher:     fetcher,
		RecipeStore: store,
		Credentials: creds,
		Log:         log,
		Now:         time.Now,
		limiter:     limiter,
	}
}

// StatusFor maps a failure category to the HTTP status of the response.
func StatusFor(c convert.Category) int {
	switch c {
	case convert.CategoryMissingCredential, convert.CategoryInvalidCredential:
		return http.StatusUnauthorized
	case convert.CategoryInvalidInput:
		return http.StatusBadRequest
	case convert.CategoryRemoteTimeout:
		return http.StatusGatewayTimeout
	case convert.CategoryNetworkUnavailable,
		convert.CategoryRemoteAccessDenied,
		convert.CategoryRemoteNotFound,
		convert.CategoryInvalidStructuredOutput:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Index describes the service.
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Swedify recipe service",
		"status":  "running",
		"endpoints": gin.H{
			"health":       "GET /health",
			"fetchRecipe":  "POST /api/fetch-recipe",
			"convert":      "POST /api/convert",
			"convertImage": "POST /api/convert/image",
			"key":          "GET|PUT|DELETE /api/key",
			"recipes":      "GET|POST|DELETE /recipes",
		},
	})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": h.Now().UTC().Format(time.RFC3339)})
}

// NotFound answers unknown routes.
func (h *Handler) NotFound(c *gin.Context) {
	h.Log.Debug("404 - route not found: %s %s", c.Request.Method, c.Request.URL.Path)
	c.JSON(http.StatusNotFound, gin.H{"error": "Not Found", "path": c.Request.URL.Path})
}

// FetchRecipe fetches a recipe page on behalf of a browser client. The
// origin status is passed through; when the origin gave no answer the
// failure kind is reported in fetch.FailureHeader.
func (h *Handler) FetchRecipe(c *gin.Context) {
	if h.limiter != nil && !h.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, try again shortly"})
		return
	}

	var req fetch.ProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}
	url := strings.TrimSpace(req.URL)
	if err := convert.ValidateInput(convert.URLInput{URL: url}); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL format"})
		return
	}

	h.Log.Info("fetching recipe from %s", url)
	html, err := h.Fetcher.FetchMarkup(c.Request.Context(), url)
	if err == nil {
		c.JSON(http.StatusOK, fetch.ProxyResponse{HTML: html})
		return
	}

	h.Log.Warn("fetch of %s failed: %v", url, err)
	var te *convert.TransportError
	if !errors.As(err, &te) {
		c.JSON(http.StatusInternalServerError, fetch.ProxyResponse{Error: err.Error()})
		return
	}
	switch te.Kind {
	case convert.KindHTTPStatus:
		c.JSON(te.Status, fetch.ProxyResponse{Error: fmt.Sprintf("Failed to fetch URL: %s", http.StatusText(te.Status))})
	case convert.KindTimeout:
		c.Header(fetch.FailureHeader, string(convert.KindTimeout))
		c.JSON(http.StatusGatewayTimeout, fetch.ProxyResponse{Error: err.Error()})
	default:
		c.Header(fetch.FailureHeader, string(convert.KindNetwork))
		c.JSON(http.StatusBadGateway, fetch.ProxyResponse{Error: err.Error()})
	}
}

// ConvertRequest is the body of POST /api/convert. Kind may be omitted when
// exactly one of URL, Text and ImageData is set. UseFastModel defaults to
// true.
type ConvertRequest struct {
	Kind         string `json:"kind"`
	URL          string `json:"url"`
	Text         string `json:"text"`
	ImageData    string `json:"imageData"`
	UseFastModel *bool  `json:"useFastModel"`
}

// Input returns the conversion input the request describes.
func (r ConvertRequest) Input() (convert.Input, error) {
	kind := strings.ToLower(strings.TrimSpace(r.Kind))
	if kind == "" {
		switch {
		case r.URL != "":
			kind = "url"
		case r.ImageData != "":
			kind = "image"
		default:
			kind = "text"
		}
	}
	switch kind {
	case "url":
		return convert.URLInput{URL: r.URL}, nil
	case "text":
		return convert.TextInput{Text: r.Text}, nil
	case "image":
		return convert.ImageInput{DataURL: r.ImageData}, nil
	}
	return nil, fmt.Errorf("unknown input kind %q", r.Kind)
}

// Options returns the routing options of the request.
func (r ConvertRequest) Options() convert.Options {
	return convert.Options{UseFastModel: r.UseFastModel == nil || *r.UseFastModel}
}

// Convert converts a URL, text or data URL image.
func (h *Handler) Convert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"category": convert.CategoryInvalidInput, "message": "Ogiltig förfrågan."})
		return
	}
	in, err := req.Input()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"category": convert.CategoryInvalidInput, "message": "Okänd typ av recept: " + req.Kind})
		return
	}
	h.convert(c, in, req.Options())
}

// ConvertImage converts an uploaded photo. Wide photos are downscaled
// before they are sent to the model.
func (h *Handler) ConvertImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"category": convert.CategoryInvalidInput, "message": "Ingen bild bifogades."})
		return
	}
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("open file err: %s", err.Error())})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("read image err: %s", err.Error())})
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"category": convert.CategoryInvalidInput, "message": "Bilden är för stor."})
		return
	}

	dataURL, err := imaging.Prepare(data)
	if err != nil {
		h.Log.Warn("could not prepare upload %s: %v", file.Filename, err)
		c.JSON(http.StatusBadRequest, gin.H{"category": convert.CategoryInvalidInput, "message": "Bilden kunde inte läsas."})
		return
	}

	fast := true
	if v := c.PostForm("useFastModel"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			fast = b
		}
	}
	h.convert(c, convert.ImageInput{DataURL: dataURL}, convert.Options{UseFastModel: fast})
}

func (h *Handler) convert(c *gin.Context, in convert.Input, opts convert.Options) {
	if !h.busy.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"category": "Busy", "message": "En konvertering pågår redan. Vänta tills den är klar."})
		return
	}
	defer h.busy.Unlock()

	key := strings.TrimSpace(c.GetHeader(APIKeyHeader))
	if key == "" {
		key, _ = h.Credentials.Lookup()
	}

	r, err := h.Converter.Convert(c.Request.Context(), key, in, opts)
	if err != nil {
		f := convert.Classify(err)
		c.JSON(StatusFor(f.Category), gin.H{"category": f.Category, "message": f.Message})
		return
	}
	c.JSON(http.StatusOK, r)
}

// KeyStatus is the body of the /api/key responses.
type KeyStatus struct {
	Configured bool   `json:"configured"`
	Source     string `json:"source,omitempty"`
	Masked     string `json:"masked,omitempty"`
}

func (h *Handler) keyStatus() KeyStatus {
	key, src := h.Credentials.Lookup()
	if src == credential.SourceNone {
		return KeyStatus{}
	}
	return KeyStatus{Configured: true, Source: src, Masked: credential.Mask(key)}
}

// GetKey reports whether a provider key is configured.
func (h *Handler) GetKey(c *gin.Context) {
	c.JSON(http.StatusOK, h.keyStatus())
}

// SetKey stores a provider key.
func (h *Handler) SetKey(c *gin.Context) {
	var body struct {
		APIKey string `json:"apiKey"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "apiKey is required"})
		return
	}
	if err := h.Credentials.Set(body.APIKey); err != nil {
		if errors.Is(err, credential.ErrBlank) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "apiKey is required"})
			return
		}
		h.Log.Error("could not store api key: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.keyStatus())
}

// DeleteKey removes the stored provider key.
func (h *Handler) DeleteKey(c *gin.Context) {
	if err := h.Credentials.Clear(); err != nil {
		h.Log.Error("could not clear api key: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.keyStatus())
}
