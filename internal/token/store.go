// Package token supplies valid platform access tokens per publishing
// account, refreshing them through the platform OAuth endpoints shortly
// before expiry. The OAuth authorization flow itself happens elsewhere;
// this package only consumes and rotates the stored grants.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Token is one account's stored grant for one platform.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	OpenID       string    `json:"open_id,omitempty"` // TikTok account identity
}

// FileStore persists tokens keyed by "<account>/<platform>" in one JSON
// file. Writes are mutex-serialized, mirroring the video record store.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a token store backed by the given file.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func key(account, platform string) string {
	return account + "/" + platform
}

// Get returns the stored token for the account and platform, or ok=false.
func (s *FileStore) Get(account, platform string) (Token, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load()
	if err != nil {
		return Token{}, false, err
	}
	t, ok := tokens[key(account, platform)]
	return t, ok, nil
}

// Put stores a token for the account and platform.
func (s *FileStore) Put(account, platform string, t Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load()
	if err != nil {
		return err
	}
	tokens[key(account, platform)] = t
	return s.write(tokens)
}

func (s *FileStore) load() (map[string]Token, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]Token{}, nil
		}
		return nil, fmt.Errorf("failed to read token store: %w", err)
	}
	if len(b) == 0 {
		return map[string]Token{}, nil
	}

	var tokens map[string]Token
	if err := json.Unmarshal(b, &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token store: %w", err)
	}
	return tokens, nil
}

func (s *FileStore) write(tokens map[string]Token) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create token store directory: %w", err)
	}
	b, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("failed to write token store: %w", err)
	}
	return os.Rename(tmp, s.path)
}
