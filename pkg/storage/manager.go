// Package storage manages the shared temporary directory that holds media
// between download and relay.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager creates, tracks and removes transient asset files
type Manager struct {
	dir  string
	live map[string]struct{}
	mu   sync.RWMutex
}

// NewManager creates a new storage manager rooted at dir
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &Manager{
		dir:  dir,
		live: make(map[string]struct{}),
	}, nil
}

// Dir returns the managed directory path
func (m *Manager) Dir() string {
	return m.dir
}

// Create opens a new file called name inside the managed directory and
// starts tracking it. It fails if the file already exists.
func (m *Manager) Create(name string) (*os.File, string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, "", fmt.Errorf("invalid asset name %q", name)
	}

	// Clean may have raced with us and removed the directory itself.
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	path := filepath.Join(m.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create asset file: %w", err)
	}

	m.mu.Lock()
	m.live[path] = struct{}{}
	m.mu.Unlock()

	return f, path, nil
}

// Remove deletes an asset and stops tracking it. A missing file is not an error.
func (m *Manager) Remove(path string) error {
	m.mu.Lock()
	delete(m.live, path)
	m.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove asset: %w", err)
	}
	return nil
}

// Clean deletes every entry in the managed directory and returns how many
// were removed. Files being written concurrently are deleted too; their
// writers see the failure on their own.
func (m *Manager) Clean() (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read temp directory: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		path := filepath.Join(m.dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++

		m.mu.Lock()
		delete(m.live, path)
		m.mu.Unlock()
	}
	return removed, errors.Join(errs...)
}

// Count returns the number of entries currently in the managed directory
func (m *Manager) Count() int {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0
	}
	return len(entries)
}

// Tracked returns the number of assets created and not yet removed
func (m *Manager) Tracked() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// RemoveAll deletes every tracked asset. It is called at shutdown so that
// nothing downloaded but not yet relayed is left behind.
func (m *Manager) RemoveAll() int {
	m.mu.Lock()
	paths := make([]string, 0, len(m.live))
	for p := range m.live {
		paths = append(paths, p)
	}
	m.live = make(map[string]struct{})
	m.mu.Unlock()

	removed := 0
	for _, p := range paths {
		if err := os.Remove(p); err == nil {
			removed++
		}
	}
	return removed
}
