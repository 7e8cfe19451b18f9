// Package credential keeps the model provider API key in a TOML file in
// the user's swedify directory.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// ErrBlank is returned by Set for an empty key.
var ErrBlank = errors.New("credential is blank")

// Where a credential came from.
const (
	SourceNone = ""
	SourceFile = "file"
	SourceEnv  = "env"
)

type fileData struct {
	APIKey string `toml:"api_key"`
}

// FileStore stores one API key in <dir>/credentials.toml with mode 0600.
// A fallback key (usually from the environment) is returned when the file
// holds none.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	fallback string
}

// NewFileStore creates a store in dir. If dir is empty, defaults to
// ~/.swedify.
func NewFileStore(dir, fallback string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".swedify")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &FileStore{
		path:     filepath.Join(dir, "credentials.toml"),
		fallback: strings.TrimSpace(fallback),
	}, nil
}

// Path returns the credential file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the stored key, or the fallback.
func (s *FileStore) Get() (string, bool) {
	key, src := s.Lookup()
	return key, src != SourceNone
}

// Lookup returns the key and where it came from.
func (s *FileStore) Lookup() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key := s.read(); key != "" {
		return key, SourceFile
	}
	if s.fallback != "" {
		return s.fallback, SourceEnv
	}
	return "", SourceNone
}

func (s *FileStore) read() string {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	var data fileData
	if err := toml.Unmarshal(raw, &data); err != nil {
		return ""
	}
	return strings.TrimSpace(data.APIKey)
}

// Set writes key to the credential file.
func (s *FileStore) Set(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrBlank
	}

	raw, err := toml.Marshal(fileData{APIKey: key})
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict credential file: %w", err)
	}
	return nil
}

// Clear removes the credential file. The fallback is unaffected.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}

// Mask shortens key for display, keeping a short prefix and suffix.
func Mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}
