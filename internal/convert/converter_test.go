package convert

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swedify/internal/logger"
	"swedify/internal/recipe"
)

type mockFetcher struct {
	calls  int
	gotURL string
	markup string
	err    error
}

func (m *mockFetcher) FetchMarkup(ctx context.Context, url string) (string, error) {
	m.calls++
	m.gotURL = url
	return m.markup, m.err
}

type mockProvider struct {
	calls   int
	gotCred string
	gotReq  Request
	reply   string
	err     error
}

func (m *mockProvider) Complete(ctx context.Context, credential string, req Request) (string, error) {
	m.calls++
	m.gotCred = credential
	m.gotReq = req
	return m.reply, m.err
}

func (m *mockProvider) Name() string { return "mock" }

type mockSimplifier struct {
	out string
	err error
}

func (m mockSimplifier) Simplify(markup string) (string, error) {
	return m.out, m.err
}

const fencedKoettbullar = "```json\n{\"title\":\"Köttbullar\",\"ingredients\":[\"500 g nötfärs\"],\"instructions\":[\"Forma bollar\"]}\n```"

func TestConvert_TextEndToEnd(t *testing.T) {
	fetcher := &mockFetcher{}
	provider := &mockProvider{reply: fencedKoettbullar}
	c := NewConverter(fetcher, provider, logger.Discard())

	text := strings.Repeat("Meatballs with gravy and lingonberries. ", 3)
	require.Len(t, text, 120)

	got, err := c.Convert(context.Background(), "sk-test", TextInput{Text: text}, Options{UseFastModel: true})
	require.NoError(t, err)
	assert.Equal(t, &recipe.Recipe{
		Title:        "Köttbullar",
		Ingredients:  []string{"500 g nötfärs"},
		Instructions: []string{"Forma bollar"},
		Notes:        []string{},
	}, got)
	assert.Empty(t, got.OriginalURL)

	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "sk-test", provider.gotCred)
	assert.Equal(t, ProfileFast, provider.gotReq.Profile)
	assert.Equal(t, Rulebook, provider.gotReq.System)
	assert.Equal(t, MaxOutputTokens, provider.gotReq.MaxOutputTokens)
}

func TestConvert_URLAccessDeniedSkipsModel(t *testing.T) {
	fetcher := &mockFetcher{err: StatusError(SourceOrigin, http.StatusForbidden, errors.New("Forbidden"))}
	provider := &mockProvider{reply: fencedKoettbullar}
	c := NewConverter(fetcher, provider, logger.Discard())

	_, err := c.Convert(context.Background(), "sk-test", URLInput{URL: "https://badsite.example/x"}, Options{})

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, CategoryRemoteAccessDenied, f.Category)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, "https://badsite.example/x", fetcher.gotURL)
	assert.Equal(t, 0, provider.calls)
}

func TestConvert_MissingCredentialBeforeAnyIO(t *testing.T) {
	inputs := []Input{
		URLInput{URL: "https://example.com/r"},
		TextInput{Text: pastedRecipe},
		ImageInput{DataURL: dataURL("image/png", 16)},
		TextInput{Text: ""},
	}
	for _, in := range inputs {
		t.Run(in.Kind(), func(t *testing.T) {
			fetcher := &mockFetcher{markup: "<html></html>"}
			provider := &mockProvider{reply: fencedKoettbullar}
			c := NewConverter(fetcher, provider, logger.Discard())

			_, err := c.Convert(context.Background(), "  ", in, Options{})

			var f *Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, CategoryMissingCredential, f.Category)
			assert.ErrorIs(t, err, ErrMissingCredential)
			assert.Equal(t, 0, fetcher.calls)
			assert.Equal(t, 0, provider.calls)
		})
	}
}

func TestConvert_URLSetsProvenanceAndUsesSimplifiedMarkup(t *testing.T) {
	fetcher := &mockFetcher{markup: "<html><script>x</script><h1>Meatballs</h1></html>"}
	provider := &mockProvider{reply: `{"title":"Köttbullar","originalUrl":"https://wrong.example"}`}
	c := NewConverter(fetcher, provider, logger.Discard(), WithSimplifier(mockSimplifier{out: "# Meatballs"}))

	got, err := c.Convert(context.Background(), "sk-test", URLInput{URL: " https://example.com/r "}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/r", got.OriginalURL)
	assert.Equal(t, "https://example.com/r", fetcher.gotURL)

	require.Len(t, provider.gotReq.Messages, 1)
	prompt := provider.gotReq.Messages[0].Text()
	assert.Contains(t, prompt, "# Meatballs")
	assert.NotContains(t, prompt, "<script>")
	assert.Equal(t, ProfileQuality, provider.gotReq.Profile)
}

func TestConvert_SimplifierFailureFallsBackToMarkup(t *testing.T) {
	fetcher := &mockFetcher{markup: "<h1>Meatballs</h1>"}
	provider := &mockProvider{reply: `{"title":"Köttbullar"}`}
	c := NewConverter(fetcher, provider, logger.Discard(), WithSimplifier(mockSimplifier{err: errors.New("bad html")}))

	_, err := c.Convert(context.Background(), "sk-test", URLInput{URL: "https://example.com/r"}, Options{})
	require.NoError(t, err)
	assert.Contains(t, provider.gotReq.Messages[0].Text(), "<h1>Meatballs</h1>")
}

func TestConvert_InvalidInputSkipsIO(t *testing.T) {
	fetcher := &mockFetcher{}
	provider := &mockProvider{}
	c := NewConverter(fetcher, provider, logger.Discard())

	_, err := c.Convert(context.Background(), "sk-test", URLInput{URL: "not a url"}, Options{})

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, CategoryInvalidInput, f.Category)
	assert.True(t, IsValidation(err, MalformedURL))
	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, 0, provider.calls)
}

func TestConvert_InvalidJSONIsLogged(t *testing.T) {
	var buf bytes.Buffer
	provider := &mockProvider{reply: "```json\n{\"title\": \"Köttbullar\",\n```"}
	c := NewConverter(nil, provider, logger.New(logger.LevelNormal, &buf))

	_, err := c.Convert(context.Background(), "sk-test", TextInput{Text: pastedRecipe}, Options{})

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, CategoryInvalidStructuredOutput, f.Category)
	assert.Contains(t, buf.String(), "raw response: ```json")
	assert.Contains(t, buf.String(), "stripped response: {\"title\": \"Köttbullar\",")
}

func TestConvert_LongInvalidReplyIsTruncatedInLog(t *testing.T) {
	var buf bytes.Buffer
	provider := &mockProvider{reply: "{\"title\": \"" + strings.Repeat("x", 3*maxLoggedReply)}
	c := NewConverter(nil, provider, logger.New(logger.LevelNormal, &buf))

	_, err := c.Convert(context.Background(), "sk-test", TextInput{Text: pastedRecipe}, Options{})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "...")
	assert.Less(t, buf.Len(), 3*maxLoggedReply)
}

func TestConvert_NilLogger(t *testing.T) {
	provider := &mockProvider{reply: `{"title":"Köttbullar"}`}
	c := NewConverter(nil, provider, nil)

	var (
		got *recipe.Recipe
		err error
	)
	require.NotPanics(t, func() {
		got, err = c.Convert(context.Background(), "sk-test", TextInput{Text: pastedRecipe}, Options{})
	})
	require.NoError(t, err)
	assert.Equal(t, "Köttbullar", got.Title)

	require.NotPanics(t, func() {
		_, err = c.Convert(context.Background(), "", TextInput{Text: pastedRecipe}, Options{})
	})
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestConvert_ProviderErrorsAreClassified(t *testing.T) {
	provider := &mockProvider{err: StatusError(SourceProvider, http.StatusUnauthorized, errors.New("invalid x-api-key"))}
	c := NewConverter(nil, provider, logger.Discard())

	_, err := c.Convert(context.Background(), "sk-wrong", TextInput{Text: pastedRecipe}, Options{})

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, CategoryInvalidCredential, f.Category)
}

func TestConvert_URLWithoutFetcher(t *testing.T) {
	provider := &mockProvider{}
	c := NewConverter(nil, provider, logger.Discard())

	_, err := c.Convert(context.Background(), "sk-test", URLInput{URL: "https://example.com/r"}, Options{})

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, CategoryUnclassified, f.Category)
	assert.Equal(t, 0, provider.calls)
}
