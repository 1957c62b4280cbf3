// Package session caches the store's auth token between CLI invocations.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Session is what a successful login leaves behind
type Session struct {
	Email    string    `yaml:"email"`
	Token    string    `yaml:"token"`
	StoreURL string    `yaml:"store_url"`
	IssuedAt time.Time `yaml:"issued_at"`
}

// File is a session stored as YAML at a fixed path
type File struct {
	path string

	mu      sync.Mutex
	current *Session
	loaded  bool
}

// NewFile creates a session file handle; nothing is read until needed
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location
func (f *File) Path() string {
	return f.path
}

// Load reads the session. A missing file yields an empty session.
func (f *File) Load() (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadLocked()
}

func (f *File) loadLocked() (*Session, error) {
	if f.loaded {
		s := *f.current
		return &s, nil
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.current, f.loaded = &Session{}, true
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", f.path, err)
	}

	f.current, f.loaded = &s, true
	out := s
	return &out, nil
}

// Save writes the session readable by the owner only
func (f *File) Save(s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(f.path, 0600); err != nil {
		return fmt.Errorf("chmod session: %w", err)
	}

	cp := *s
	f.current, f.loaded = &cp, true
	return nil
}

// Clear removes the cached session
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	f.current, f.loaded = &Session{}, true
	return nil
}

// Token returns the cached bearer token, or "" when logged out or when the
// file cannot be read
func (f *File) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.loadLocked()
	if err != nil {
		return ""
	}
	return s.Token
}
