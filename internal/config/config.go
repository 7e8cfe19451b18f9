// Package config loads swedify settings from a JSON file, an optional .env
// file and the environment, in increasing order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported providers and recipe stores.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderLocalLLM  = "localllm"

	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Duration is a time.Duration written as "30s" in JSON.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// ModelConfig names the models behind the fast and quality profiles.
type ModelConfig struct {
	BaseURL      string `json:"baseUrl,omitempty"`
	FastModel    string `json:"fastModel,omitempty"`
	QualityModel string `json:"qualityModel,omitempty"`
}

// Config holds every setting of the server and the CLI.
type Config struct {
	Addr           string   `json:"addr"`
	Provider       string   `json:"provider"`
	Store          string   `json:"store"`
	DatabaseURL    string   `json:"databaseUrl,omitempty"`
	DataDir        string   `json:"dataDir,omitempty"`
	ProxyURL       string   `json:"proxyUrl,omitempty"`
	AllowedOrigins []string `json:"allowedOrigins"`
	LogLevel       string   `json:"logLevel"`

	FetchTimeout Duration `json:"fetchTimeout"`
	ModelTimeout Duration `json:"modelTimeout"`

	// Fetch proxy rate limit, requests per second and burst.
	ProxyRate  float64 `json:"proxyRate"`
	ProxyBurst int     `json:"proxyBurst"`

	Anthropic ModelConfig `json:"anthropic"`
	Gemini    ModelConfig `json:"gemini"`
	// LocalLLM servers without authentication still need a placeholder API
	// key (any non-blank value) since conversion refuses a blank credential.
	LocalLLM  ModelConfig `json:"localllm"`

	// APIKey is the environment fallback credential. It is never read from
	// or written to the JSON file.
	APIKey string `json:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:           ":3001",
		Provider:       ProviderAnthropic,
		Store:          StoreFile,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		LogLevel:       "normal",
		FetchTimeout:   Duration{30 * time.Second},
		ModelTimeout:   Duration{120 * time.Second},
		ProxyRate:      2,
		ProxyBurst:     5,
	}
}

// Load reads path (a missing file means defaults), then the .env file named
// by SWEDIFY_ENV_FILE (default ".env"), then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := json.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	envFile := os.Getenv("SWEDIFY_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	if err := cfg.applyEnv(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"SWEDIFY_ADDR":         &c.Addr,
		"SWEDIFY_PROVIDER":     &c.Provider,
		"SWEDIFY_STORE":        &c.Store,
		"SWEDIFY_DATABASE_URL": &c.DatabaseURL,
		"SWEDIFY_DATA_DIR":     &c.DataDir,
		"SWEDIFY_PROXY_URL":    &c.ProxyURL,
		"SWEDIFY_LOG_LEVEL":    &c.LogLevel,
		"SWEDIFY_LOCALLLM_URL": &c.LocalLLM.BaseURL,
		"ANTHROPIC_BASE_URL":   &c.Anthropic.BaseURL,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	if v := getenv("SWEDIFY_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	for key, dst := range map[string]*Duration{
		"SWEDIFY_FETCH_TIMEOUT": &c.FetchTimeout,
		"SWEDIFY_MODEL_TIMEOUT": &c.ModelTimeout,
	} {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			dst.Duration = d
		}
	}

	if v := getenv("SWEDIFY_PROXY_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SWEDIFY_PROXY_RATE: %w", err)
		}
		c.ProxyRate = r
	}

	c.APIKey = strings.TrimSpace(getenv("SWEDIFY_API_KEY"))
	if c.APIKey == "" {
		switch c.Provider {
		case ProviderAnthropic:
			c.APIKey = strings.TrimSpace(getenv("ANTHROPIC_API_KEY"))
		case ProviderGemini:
			c.APIKey = strings.TrimSpace(getenv("GEMINI_API_KEY"))
		}
	}
	return nil
}

// Validate rejects unknown providers and stores and fills derived defaults.
func (c *Config) Validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))

	switch c.Provider {
	case ProviderAnthropic, ProviderGemini, ProviderLocalLLM:
	default:
		return fmt.Errorf("unknown provider %q (want %s, %s or %s)", c.Provider, ProviderAnthropic, ProviderGemini, ProviderLocalLLM)
	}

	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".swedify")
	}

	switch c.Store {
	case StoreFile:
	case StoreSQLite:
		if c.DatabaseURL == "" {
			c.DatabaseURL = filepath.Join(c.DataDir, "recipes.db")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("store postgres needs databaseUrl or SWEDIFY_DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s, %s or %s)", c.Store, StoreFile, StoreSQLite, StorePostgres)
	}

	if c.FetchTimeout.Duration <= 0 || c.ModelTimeout.Duration <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.ProxyRate <= 0 {
		return errors.New("proxyRate must be positive")
	}
	if c.ProxyBurst < 1 {
		c.ProxyBurst = 1
	}
	return nil
}

// RecipesFile is the FileStore location.
func (c *Config) RecipesFile() string {
	return filepath.Join(c.DataDir, "recipes.json")
}
