package apiclient

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// TokenStore holds the access and refresh tokens between requests.
type TokenStore interface {
	Tokens() (access, refresh string)
	SetTokens(access, refresh string) error
	Clear() error
}

// MemoryTokenStore keeps tokens for the life of the process.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func NewMemoryTokenStore(access, refresh string) *MemoryTokenStore {
	return &MemoryTokenStore{access: access, refresh: refresh}
}

func (s *MemoryTokenStore) Tokens() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access, s.refresh
}

func (s *MemoryTokenStore) SetTokens(access, refresh string) error {
	s.mu.Lock()
	s.access, s.refresh = access, refresh
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	return s.SetTokens("", "")
}

type tokenFile struct {
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
}

// FileTokenStore persists tokens to a YAML file readable only by the
// owner, so CLI invocations share a login. Tokens are cached in memory
// after the first read.
type FileTokenStore struct {
	Path string

	mu     sync.Mutex
	loaded bool
	cached tokenFile
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{Path: path}
}

func (s *FileTokenStore) Tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.cached, _ = s.read()
		s.loaded = true
	}
	return s.cached.AccessToken, s.cached.RefreshToken
}

func (s *FileTokenStore) read() (tokenFile, error) {
	var tf tokenFile
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return tf, nil
	}
	if err != nil {
		return tf, err
	}
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return tf, fmt.Errorf("parse token file %s: %w", s.Path, err)
	}
	return tf, nil
}

func (s *FileTokenStore) SetTokens(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf := tokenFile{AccessToken: access, RefreshToken: refresh}
	data, err := yaml.Marshal(tf)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return err
	}
	s.cached, s.loaded = tf, true
	return nil
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached, s.loaded = tokenFile{}, true
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
