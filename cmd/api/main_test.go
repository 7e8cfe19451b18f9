package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"swedify/internal/api"
	"swedify/internal/convert"
	"swedify/internal/credential"
	"swedify/internal/logger"
	"swedify/internal/platform/fetch"
	"swedify/internal/recipe"
)

// mockConverter is a mock of the conversion pipeline.
type mockConverter struct {
	mu               sync.Mutex
	returnError      error
	calls            int
	receivedKey      string
	receivedInput    convert.Input
	receivedOptions  convert.Options
	started, release chan struct{}
}

// SetError sets the error to be returned by Convert.
func (m *mockConverter) SetError(err error) {
	m.returnError = err
}

// Convert mocks the Convert method.
func (m *mockConverter) Convert(ctx context.Context, key string, in convert.Input, opts convert.Options) (*recipe.Recipe, error) {
	m.mu.Lock()
	m.calls++
	m.receivedKey = key
	m.receivedInput = in
	m.receivedOptions = opts
	m.mu.Unlock()

	if m.started != nil {
		close(m.started)
		<-m.release
	}
	if m.returnError != nil {
		return nil, m.returnError
	}
	return &recipe.Recipe{
		Title:        "Köttbullar",
		Ingredients:  []string{"500 g blandfärs"},
		Instructions: []string{"Rulla bullarna."},
		Notes:        []string{},
	}, nil
}

// mockFetcher is a mock of the page fetcher behind the proxy endpoint.
type mockFetcher struct {
	html        string
	returnError error
	receivedURL string
}

// FetchMarkup mocks the FetchMarkup method.
func (m *mockFetcher) FetchMarkup(ctx context.Context, url string) (string, error) {
	m.receivedURL = url
	return m.html, m.returnError
}

// mockCredentials is a mock of the credential store.
type mockCredentials struct {
	key    string
	source string
}

func (m *mockCredentials) Lookup() (string, string) { return m.key, m.source }

func (m *mockCredentials) Set(key string) error {
	if strings.TrimSpace(key) == "" {
		return credential.ErrBlank
	}
	m.key, m.source = strings.TrimSpace(key), credential.SourceFile
	return nil
}

func (m *mockCredentials) Clear() error {
	m.key, m.source = "", credential.SourceNone
	return nil
}

// failingStore fails every operation.
type failingStore struct {
	recipe.Store
}

func (failingStore) List(ctx context.Context) ([]*recipe.SavedRecipe, error) {
	return nil, errors.New("disk on fire")
}

type testServer struct {
	router    *gin.Engine
	handler   *api.Handler
	converter *mockConverter
	fetcher   *mockFetcher
	creds     *mockCredentials
	store     *recipe.FileStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := recipe.NewFileStore(filepath.Join(t.TempDir(), "recipes.json"))
	require.NoError(t, err)

	ts := &testServer{
		converter: &mockConverter{},
		fetcher:   &mockFetcher{},
		creds:     &mockCredentials{key: "sk-stored", source: credential.SourceFile},
		store:     store,
	}
	ts.handler = api.NewHandler(ts.converter, ts.fetcher, store, ts.creds, nil, logger.Discard())
	ts.handler.Now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	ts.router = setupRouter(ts.handler, []string{"http://localhost:5173"})
	return ts
}

func (ts *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestIndexAndHealth(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "POST /api/fetch-recipe")

	rr = ts.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	health := decode[map[string]string](t, rr)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "2026-03-14T09:30:00Z", health["timestamp"])
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	body := decode[map[string]string](t, rr)
	assert.Equal(t, "Not Found", body["error"])
	assert.Equal(t, "/nope", body["path"])
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/convert", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-API-Key")
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestConvert_Text(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/convert", api.ConvertRequest{Kind: "text", Text: "Swedish meatballs..."})
	assert.Equal(t, http.StatusOK, rr.Code)

	r := decode[recipe.Recipe](t, rr)
	assert.Equal(t, "Köttbullar", r.Title)
	assert.Equal(t, []string{}, r.Notes)

	assert.Equal(t, 1, ts.converter.calls)
	assert.Equal(t, "sk-stored", ts.converter.receivedKey)
	assert.Equal(t, convert.TextInput{Text: "Swedish meatballs..."}, ts.converter.receivedInput)
	assert.True(t, ts.converter.receivedOptions.UseFastModel, "fast model is the default")
}

func TestConvert_InputKinds(t *testing.T) {
	quality := false
	tests := []struct {
		name string
		req  api.ConvertRequest
		want convert.Input
		fast bool
	}{
		{"url by kind", api.ConvertRequest{Kind: "url", URL: "https://example.com/r"}, convert.URLInput{URL: "https://example.com/r"}, true},
		{"url inferred", api.ConvertRequest{URL: "https://example.com/r"}, convert.URLInput{URL: "https://example.com/r"}, true},
		{"image inferred", api.ConvertRequest{ImageData: "data:image/png;base64,aGVq"}, convert.ImageInput{DataURL: "data:image/png;base64,aGVq"}, true},
		{"quality model", api.ConvertRequest{Kind: "TEXT", Text: "x", UseFastModel: &quality}, convert.TextInput{Text: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rr := ts.do(http.MethodPost, "/api/convert", tt.req)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.want, ts.converter.receivedInput)
			assert.Equal(t, tt.fast, ts.converter.receivedOptions.UseFastModel)
		})
	}
}

func TestConvert_BadRequest(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/convert", `{"kind":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodPost, "/api/convert", api.ConvertRequest{Kind: "video"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode[map[string]string](t, rr)
	assert.Equal(t, string(convert.CategoryInvalidInput), body["category"])
	assert.Equal(t, 0, ts.converter.calls)
}

func TestConvert_HeaderKeyWins(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/convert", api.ConvertRequest{Text: "x"}, api.APIKeyHeader, " sk-header ")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "sk-header", ts.converter.receivedKey)
}

func TestConvert_FailureStatus(t *testing.T) {
	tests := []struct {
		category convert.Category
		status   int
	}{
		{convert.CategoryMissingCredential, http.StatusUnauthorized},
		{convert.CategoryInvalidCredential, http.StatusUnauthorized},
		{convert.CategoryNetworkUnavailable, http.StatusBadGateway},
		{convert.CategoryRemoteAccessDenied, http.StatusBadGateway},
		{convert.CategoryRemoteNotFound, http.StatusBadGateway},
		{convert.CategoryRemoteTimeout, http.StatusGatewayTimeout},
		{convert.CategoryInvalidStructuredOutput, http.StatusBadGateway},
		{convert.CategoryInvalidInput, http.StatusBadRequest},
		{convert.CategoryUnclassified, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			ts := newTestServer(t)
			ts.converter.SetError(&convert.Failure{Category: tt.category, Message: "Något gick fel."})

			rr := ts.do(http.MethodPost, "/api/convert", api.ConvertRequest{Text: "x"})
			assert.Equal(t, tt.status, rr.Code)
			body := decode[map[string]string](t, rr)
			assert.Equal(t, string(tt.category), body["category"])
			assert.Equal(t, "Något gick fel.", body["message"])
		})
	}
}

func TestConvert_RawErrorIsClassified(t *testing.T) {
	ts := newTestServer(t)
	ts.converter.SetError(convert.StatusError(convert.SourceOrigin, http.StatusNotFound, errors.New("gone")))

	rr := ts.do(http.MethodPost, "/api/convert", api.ConvertRequest{URL: "https://example.com/r"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), string(convert.CategoryRemoteNotFound))
}

func TestConvert_OneAtATime(t *testing.T) {
	ts := newTestServer(t)
	ts.converter.started = make(chan struct{})
	ts.converter.release = make(chan struct{})

	first := make(chan int)
	go func() {
		first <- ts.do(http.MethodPost, "/api/convert", api.ConvertRequest{Text: "x"}).Code
	}()
	<-ts.converter.started

	rr := ts.do(http.MethodPost, "/api/convert", api.ConvertRequest{Text: "y"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	close(ts.converter.release)
	assert.Equal(t, http.StatusOK, <-first)
	assert.Equal(t, 1, ts.converter.calls)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestConvertImage(t *testing.T) {
	ts := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "recept.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t, 40, 30))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("useFastModel", "false"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/convert/image", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	in, ok := ts.converter.receivedInput.(convert.ImageInput)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(in.DataURL, "data:image/png;base64,"))
	assert.False(t, ts.converter.receivedOptions.UseFastModel)
}

func TestConvertImage_NoFile(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/convert/image", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, ts.converter.calls)
}

func TestFetchRecipe(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		html       string
		err        error
		wantStatus int
		wantHeader string
		wantError  string
	}{
		{name: "ok", body: fetch.ProxyRequest{URL: " https://example.com/r "}, html: "<html>ok</html>", wantStatus: http.StatusOK},
		{name: "missing url", body: `{}`, wantStatus: http.StatusBadRequest, wantError: "URL is required"},
		{name: "invalid url", body: fetch.ProxyRequest{URL: "not a url"}, wantStatus: http.StatusBadRequest, wantError: "Invalid URL format"},
		{
			name:       "origin status passthrough",
			body:       fetch.ProxyRequest{URL: "https://example.com/r"},
			err:        convert.StatusError(convert.SourceOrigin, http.StatusForbidden, errors.New("blocked")),
			wantStatus: http.StatusForbidden,
			wantError:  "Failed to fetch URL: Forbidden",
		},
		{
			name:       "origin unreachable",
			body:       fetch.ProxyRequest{URL: "https://example.com/r"},
			err:        &convert.TransportError{Source: convert.SourceOrigin, Kind: convert.KindNetwork, Err: errors.New("dial tcp: connection refused")},
			wantStatus: http.StatusBadGateway,
			wantHeader: "network",
		},
		{
			name:       "origin timeout",
			body:       fetch.ProxyRequest{URL: "https://example.com/r"},
			err:        &convert.TransportError{Source: convert.SourceOrigin, Kind: convert.KindTimeout, Err: context.DeadlineExceeded},
			wantStatus: http.StatusGatewayTimeout,
			wantHeader: "timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.fetcher.html = tt.html
			ts.fetcher.returnError = tt.err

			rr := ts.do(http.MethodPost, "/api/fetch-recipe", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantHeader, rr.Header().Get(fetch.FailureHeader))

			resp := decode[fetch.ProxyResponse](t, rr)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.html, resp.HTML)
				assert.Equal(t, "https://example.com/r", ts.fetcher.receivedURL)
			}
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp.Error)
			}
		})
	}
}

func TestFetchRecipe_RateLimited(t *testing.T) {
	ts := newTestServer(t)
	ts.handler = api.NewHandler(ts.converter, ts.fetcher, ts.store, ts.creds, rate.NewLimiter(rate.Every(time.Hour), 1), logger.Discard())
	ts.router = setupRouter(ts.handler, nil)

	rr := ts.do(http.MethodPost, "/api/fetch-recipe", fetch.ProxyRequest{URL: "https://example.com/r"})
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = ts.do(http.MethodPost, "/api/fetch-recipe", fetch.ProxyRequest{URL: "https://example.com/r"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

// The proxy client and the proxy endpoint agree on how failures travel.
func TestFetchRecipe_ProxyClientRoundTrip(t *testing.T) {
	tests := []struct {
		err  error
		want convert.Category
	}{
		{convert.StatusError(convert.SourceOrigin, http.StatusNotFound, errors.New("gone")), convert.CategoryRemoteNotFound},
		{convert.StatusError(convert.SourceOrigin, http.StatusUnauthorized, errors.New("login")), convert.CategoryRemoteAccessDenied},
		{&convert.TransportError{Source: convert.SourceOrigin, Kind: convert.KindNetwork, Err: errors.New("refused")}, convert.CategoryNetworkUnavailable},
		{&convert.TransportError{Source: convert.SourceOrigin, Kind: convert.KindTimeout, Err: context.DeadlineExceeded}, convert.CategoryRemoteTimeout},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			ts := newTestServer(t)
			ts.fetcher.returnError = tt.err
			server := httptest.NewServer(ts.router)
			defer server.Close()

			_, err := fetch.NewProxyClient(server.URL, time.Second).FetchMarkup(context.Background(), "https://example.com/r")
			require.Error(t, err)
			assert.Equal(t, tt.want, convert.Classify(err).Category)
		})
	}
}

func TestKeyEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.creds.key, ts.creds.source = "", credential.SourceNone

	rr := ts.do(http.MethodGet, "/api/key", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decode[api.KeyStatus](t, rr).Configured)

	rr = ts.do(http.MethodPut, "/api/key", map[string]string{"apiKey": "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodPut, "/api/key", map[string]string{"apiKey": "sk-ant-api03-abcdefgh"})
	assert.Equal(t, http.StatusOK, rr.Code)
	status := decode[api.KeyStatus](t, rr)
	assert.True(t, status.Configured)
	assert.Equal(t, credential.SourceFile, status.Source)
	assert.Equal(t, "sk-a...efgh", status.Masked)
	assert.NotContains(t, rr.Body.String(), "sk-ant-api03-abcdefgh")

	rr = ts.do(http.MethodDelete, "/api/key", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decode[api.KeyStatus](t, rr).Configured)
}

func TestRecipes_CRUD(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/recipes", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = ts.do(http.MethodPost, "/recipes", recipe.Recipe{Title: "Köttbullar", Ingredients: []string{"500 g blandfärs"}})
	require.Equal(t, http.StatusCreated, rr.Code)
	saved := decode[recipe.SavedRecipe](t, rr)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, []string{}, saved.Notes)

	rr = ts.do(http.MethodPost, "/recipes", recipe.Recipe{Title: "Pannkakor", Ingredients: []string{"6 dl mjölk"}})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.do(http.MethodGet, "/recipes?q=MJÖLK", nil)
	found := decode[[]recipe.SavedRecipe](t, rr)
	require.Len(t, found, 1)
	assert.Equal(t, "Pannkakor", found[0].Title)

	rr = ts.do(http.MethodGet, "/recipes/"+saved.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Köttbullar", decode[recipe.SavedRecipe](t, rr).Title)

	rr = ts.do(http.MethodPut, "/recipes/"+saved.ID, recipe.Recipe{Title: "Mormors köttbullar"})
	assert.Equal(t, http.StatusOK, rr.Code)
	replaced := decode[recipe.SavedRecipe](t, rr)
	assert.Equal(t, saved.ID, replaced.ID)
	assert.Equal(t, "Mormors köttbullar", replaced.Title)

	rr = ts.do(http.MethodGet, "/recipes/"+saved.ID+"/text", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Mormors köttbullar\n\n"))

	rr = ts.do(http.MethodGet, "/recipes/"+saved.ID+"/pdf", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")))

	rr = ts.do(http.MethodDelete, "/recipes/"+saved.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = ts.do(http.MethodGet, "/recipes/"+saved.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = ts.do(http.MethodDelete, "/recipes/"+saved.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(http.MethodDelete, "/recipes", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = ts.do(http.MethodGet, "/recipes", nil)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestRecipes_SaveRequiresTitle(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/recipes", recipe.Recipe{Title: "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = ts.do(http.MethodPost, "/recipes", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecipes_ExportImport(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.store.Save(context.Background(), recipe.Recipe{Title: "Kanelbullar"})
	require.NoError(t, err)

	rr := ts.do(http.MethodGet, "/recipes/export", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="swedish-recipes-2026-03-14.json"`, rr.Header().Get("Content-Disposition"))
	exported := rr.Body.String()

	rr = ts.do(http.MethodPost, "/recipes/import", exported)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"imported":1}`, rr.Body.String())

	all, err := ts.store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	rr = ts.do(http.MethodPost, "/recipes/import", `{"title":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecipes_StoreFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.handler.RecipeStore = failingStore{}

	rr := ts.do(http.MethodGet, "/recipes", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "disk on fire")
}
