package tokenstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rileyhilliard/proxmon/internal/logger"
	"gopkg.in/yaml.v3"
)

// CredentialsFile is the file name used inside the config directory.
const CredentialsFile = "credentials.yaml"

// credentials is the on-disk layout of the credentials file.
type credentials struct {
	Token   string    `yaml:"token"`
	Server  string    `yaml:"server,omitempty"`
	SavedAt time.Time `yaml:"saved_at"`
}

// FileStore persists the credential as YAML with 0600 permissions.
// Writes go through a temp file and rename so a crash never leaves a
// half-written token behind.
type FileStore struct {
	mu     sync.Mutex
	path   string
	server string
	log    logger.Logger
}

// NewFileStore returns a store backed by path. When server is non-empty,
// the credential is tagged with it and a credential saved for a different
// server reads as absent.
func NewFileStore(path, server string) *FileStore {
	return &FileStore{
		path:   path,
		server: server,
		log:    logger.New("tokenstore"),
	}
}

// Path returns the credentials file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(credentials{Token: token, Server: s.server, SavedAt: time.Now().UTC()})
}

func (s *FileStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.read()
	if !ok {
		return "", false
	}
	return c.Token, true
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove()
}

func (s *FileStore) ClearIf(token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.read()
	if !ok || c.Token != token {
		return false, nil
	}
	if err := s.remove(); err != nil {
		return false, err
	}
	return true, nil
}

// read loads the file. Missing, empty, unparsable or foreign-server
// credentials all read as absent.
func (s *FileStore) read() (credentials, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("cannot read %s: %v", s.path, err)
		}
		return credentials{}, false
	}

	var c credentials
	if err := yaml.Unmarshal(data, &c); err != nil {
		s.log.Warn("ignoring unparsable credentials file %s: %v", s.path, err)
		return credentials{}, false
	}
	if c.Token == "" {
		return credentials{}, false
	}
	if s.server != "" && c.Server != "" && c.Server != s.server {
		s.log.Debug("stored credential belongs to %s, not %s", c.Server, s.server)
		return credentials{}, false
	}
	return c, true
}

func (s *FileStore) write(c credentials) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func (s *FileStore) remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
