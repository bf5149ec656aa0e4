// Package credstore persists the signed-in identity between CLI runs.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nefziamine/skill-evaluator/internal/model"
)

// ErrNoCredentials is returned by Load when nobody is signed in.
var ErrNoCredentials = errors.New("not logged in")

// Credentials is the token and role kept after a successful login.
type Credentials struct {
	Token     string     `json:"token"`
	Role      model.Role `json:"role"`
	Username  string     `json:"username"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Expired reports whether the token is past its expiry.
func (c *Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Store gets, sets and clears the persisted credentials.
type Store interface {
	Load() (*Credentials, error)
	Save(c *Credentials) error
	Clear() error
}

// ─── File store ─────────────────────────────────────────────────────

// FileStore keeps credentials in a JSON file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath is <user config dir>/skilleval/credentials.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "skilleval", "credentials.json"), nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var c Credentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if c.Token == "" {
		return nil, ErrNoCredentials
	}
	return &c, nil
}

// Save writes through a temp file and rename so a crash never leaves half a file.
func (s *FileStore) Save(c *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// ─── Memory store ───────────────────────────────────────────────────

// MemoryStore keeps credentials for the lifetime of the process.
type MemoryStore struct {
	mu    sync.Mutex
	creds *Credentials
}

func NewMemoryStore(c *Credentials) *MemoryStore {
	return &MemoryStore{creds: c}
}

func (s *MemoryStore) Load() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return nil, ErrNoCredentials
	}
	c := *s.creds
	return &c, nil
}

func (s *MemoryStore) Save(c *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.creds = &cp
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	return nil
}
