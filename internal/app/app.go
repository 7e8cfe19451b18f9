// Package app builds the recipe store, the model provider and the
// conversion pipeline from a loaded configuration. It is shared by the
// server and the CLI.
package app

import (
	"fmt"
	"io"

	"swedify/internal/config"
	"swedify/internal/convert"
	"swedify/internal/credential"
	"swedify/internal/logger"
	"swedify/internal/platform/anthropic"
	"swedify/internal/platform/fetch"
	"swedify/internal/platform/gemini"
	"swedify/internal/platform/localllm"
	"swedify/internal/recipe"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore opens the recipe store selected by cfg. The returned closer is
// never nil.
func OpenStore(cfg *config.Config) (recipe.Store, io.Closer, error) {
	switch cfg.Store {
	case config.StoreSQLite, config.StorePostgres:
		s, err := recipe.NewSQLStore(cfg.Store, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		s, err := recipe.NewFileStore(cfg.RecipesFile())
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	}
}

// NewProvider returns the model provider selected by cfg.
func NewProvider(cfg *config.Config) (convert.Provider, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.NewClient(anthropic.Config{
			BaseURL:      cfg.Anthropic.BaseURL,
			FastModel:    cfg.Anthropic.FastModel,
			QualityModel: cfg.Anthropic.QualityModel,
			Timeout:      cfg.ModelTimeout.Duration,
		}), nil
	case config.ProviderGemini:
		return gemini.NewClient(gemini.Config{
			Endpoint:     cfg.Gemini.BaseURL,
			FastModel:    cfg.Gemini.FastModel,
			QualityModel: cfg.Gemini.QualityModel,
			Timeout:      cfg.ModelTimeout.Duration,
		}), nil
	case config.ProviderLocalLLM:
		return localllm.NewClient(localllm.Config{
			URL:          cfg.LocalLLM.BaseURL,
			FastModel:    cfg.LocalLLM.FastModel,
			QualityModel: cfg.LocalLLM.QualityModel,
			Timeout:      cfg.ModelTimeout.Duration,
		}), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// NewFetcher returns the page fetcher for URL inputs: the fetch proxy when
// cfg.ProxyURL is set, a direct fetcher otherwise.
func NewFetcher(cfg *config.Config) convert.Fetcher {
	if cfg.ProxyURL != "" {
		return fetch.NewProxyClient(cfg.ProxyURL, cfg.FetchTimeout.Duration)
	}
	return fetch.NewHTTPFetcher(cfg.FetchTimeout.Duration)
}

// NewConverter wires the conversion pipeline described by cfg.
func NewConverter(cfg *config.Config, log *logger.Logger) (*convert.Converter, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return convert.NewConverter(NewFetcher(cfg), provider, log, convert.WithSimplifier(fetch.NewSimplifier())), nil
}

// NewCredentials opens the credential file in cfg.DataDir with the
// environment key as fallback.
func NewCredentials(cfg *config.Config) (*credential.FileStore, error) {
	return credential.NewFileStore(cfg.DataDir, cfg.APIKey)
}
